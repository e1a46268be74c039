// Package startup holds the one-off data routines run when the server boots.
// Each routine is recorded in the migration ledger so it runs once per
// database even when several instances start together.
package startup

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/dmitrijs2005/vpnkeeper/internal/common"
	"github.com/dmitrijs2005/vpnkeeper/internal/dbx"
	"github.com/dmitrijs2005/vpnkeeper/internal/logging"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/config"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/models"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/repositories/repomanager"
)

// Ledger runs fn once per name.
type Ledger interface {
	Apply(ctx context.Context, name string, fn func(ctx context.Context, tx dbx.DBTX) error) (bool, error)
}

// SeedName is the ledger entry for seeding the server at ip.
func SeedName(ip string) string {
	return "seed_server:" + ip
}

// SeedServers creates the configured servers. A server whose ip already
// exists, for example one added by an admin, is left untouched.
func SeedServers(ctx context.Context, ledger Ledger, m repomanager.RepositoryManager,
	seeds []config.ServerSeed, defaultPort int, log logging.Logger) error {

	log = log.With("module", "startup")

	for _, seed := range seeds {
		if net.ParseIP(seed.IPAddress) == nil {
			return fmt.Errorf("%w: seeded server has bad ip %q", common.ErrInvalidArgument, seed.IPAddress)
		}

		srv := &models.Server{
			Username:  seed.Username,
			Password:  seed.Password,
			Location:  seed.Location,
			IPAddress: seed.IPAddress,
			Port:      seed.Port,
		}
		if srv.Port == 0 {
			srv.Port = defaultPort
		}
		if seed.PublicKey != "" {
			pk := seed.PublicKey
			srv.PublicKey = &pk
		}

		applied, err := ledger.Apply(ctx, SeedName(seed.IPAddress), func(ctx context.Context, tx dbx.DBTX) error {
			repo := m.Servers(tx)
			_, err := repo.FindByIP(ctx, srv.IPAddress)
			if err == nil {
				return nil
			}
			if !errors.Is(err, common.ErrorNotFound) {
				return err
			}
			_, err = repo.Create(ctx, srv)
			return err
		})
		if err != nil {
			return fmt.Errorf("seed server %s: %w", seed.IPAddress, err)
		}
		if applied {
			log.Info(ctx, "server seeded", "ip", seed.IPAddress, "location", seed.Location)
		}
	}
	return nil
}
