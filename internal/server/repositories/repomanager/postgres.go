// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and schema migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/vpnkeeper/internal/dbx"
	schema "github.com/dmitrijs2005/vpnkeeper/internal/server/migrations"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/repositories/groups"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/repositories/migrations"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/repositories/servers"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/repositories/uservpnkeys"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/repositories/vpnkeys"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Servers(db dbx.DBTX) servers.Repository {
	return servers.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) VPNKeys(db dbx.DBTX) vpnkeys.Repository {
	return vpnkeys.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) UserVPNKeys(db dbx.DBTX) uservpnkeys.Repository {
	return uservpnkeys.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Groups(db dbx.DBTX) groups.Repository {
	return groups.NewPostgresRepository(db)
}

// Migrations returns the ledger of named one-off routines.
func (m *PostgresRepositoryManager) Migrations(db dbx.DBTX) migrations.Repository {
	return migrations.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded schema versions with goose.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(schema.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}
