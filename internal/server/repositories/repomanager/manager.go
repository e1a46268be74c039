package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/vpnkeeper/internal/dbx"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/repositories/groups"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/repositories/migrations"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/repositories/servers"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/repositories/uservpnkeys"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/repositories/vpnkeys"
)

// RepositoryManager vends repositories bound to either a *sql.DB or a
// *sql.Tx, so services decide the transactional scope.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Servers(db dbx.DBTX) servers.Repository
	VPNKeys(db dbx.DBTX) vpnkeys.Repository
	UserVPNKeys(db dbx.DBTX) uservpnkeys.Repository
	Groups(db dbx.DBTX) groups.Repository
	Migrations(db dbx.DBTX) migrations.Repository
}
