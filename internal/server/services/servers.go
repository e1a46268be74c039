package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/dmitrijs2005/vpnkeeper/internal/common"
	"github.com/dmitrijs2005/vpnkeeper/internal/logging"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/models"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/repositories/repomanager"
)

const defaultServerPort = 443

// ServerService is the admin surface over VPN servers.
type ServerService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	log         logging.Logger
}

func NewServerService(db *sql.DB, m repomanager.RepositoryManager, log logging.Logger) *ServerService {
	return &ServerService{db: db, repomanager: m, log: log.With("module", "servers")}
}

// Create validates and stores a server. A duplicate ip or public key matches
// common.ErrConstraintViolation.
func (s *ServerService) Create(ctx context.Context, srv *models.Server) (*models.Server, error) {
	srv.Location = strings.TrimSpace(srv.Location)
	srv.IPAddress = strings.TrimSpace(srv.IPAddress)
	if srv.Location == "" {
		return nil, fmt.Errorf("%w: location is required", common.ErrInvalidArgument)
	}
	if net.ParseIP(srv.IPAddress) == nil {
		return nil, fmt.Errorf("%w: bad ip address %q", common.ErrInvalidArgument, srv.IPAddress)
	}
	if srv.Port == 0 {
		srv.Port = defaultServerPort
	}
	if srv.Port < 0 || srv.Port > 65535 {
		return nil, fmt.Errorf("%w: bad port %d", common.ErrInvalidArgument, srv.Port)
	}
	if srv.PublicKey != nil && *srv.PublicKey == "" {
		srv.PublicKey = nil
	}

	srv, err := s.repomanager.Servers(s.db).Create(ctx, srv)
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "server created", "server_id", srv.ID, "ip", srv.IPAddress, "location", srv.Location)
	return srv, nil
}

func (s *ServerService) Get(ctx context.Context, id string) (*models.Server, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	return s.repomanager.Servers(s.db).FindByID(ctx, id)
}

func (s *ServerService) List(ctx context.Context) ([]*models.Server, error) {
	return s.repomanager.Servers(s.db).List(ctx)
}

// Delete removes the server; its keys and their associations go with it.
func (s *ServerService) Delete(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	if err := s.repomanager.Servers(s.db).Delete(ctx, id); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return err
		}
		return fmt.Errorf("error deleting server: %w", err)
	}
	s.log.Info(ctx, "server deleted", "server_id", id)
	return nil
}
