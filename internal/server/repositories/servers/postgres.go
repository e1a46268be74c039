package servers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/vpnkeeper/internal/common"
	"github.com/dmitrijs2005/vpnkeeper/internal/dbx"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/models"
	"github.com/google/uuid"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectColumns = `id, username, password, location, ip_address, public_key, port, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanServer(row scanner) (*models.Server, error) {
	s := &models.Server{}
	err := row.Scan(&s.ID, &s.Username, &s.Password, &s.Location, &s.IPAddress, &s.PublicKey, &s.Port, &s.CreatedAt)
	return s, err
}

// Create inserts a server. Duplicate IP or public key yields common.ErrConstraintViolation.
func (r *PostgresRepository) Create(ctx context.Context, server *models.Server) (*models.Server, error) {
	query := `
		INSERT INTO servers (id, username, password, location, ip_address, public_key, port)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	id := uuid.NewString()
	err := r.db.QueryRowContext(ctx, query,
		id, server.Username, server.Password, server.Location, server.IPAddress, server.PublicKey, server.Port).
		Scan(&server.CreatedAt)
	if err != nil {
		return nil, dbx.MapWriteError("insert server", err)
	}
	server.ID = id
	return server, nil
}

func (r *PostgresRepository) findOne(ctx context.Context, where string, arg any) (*models.Server, error) {
	query := `SELECT ` + selectColumns + ` FROM servers WHERE ` + where
	s, err := scanServer(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

// FindByID returns common.ErrorNotFound when the server does not exist.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.Server, error) {
	return r.findOne(ctx, `id = $1`, id)
}

// FindByIP returns common.ErrorNotFound when no server has that address.
func (r *PostgresRepository) FindByIP(ctx context.Context, ip string) (*models.Server, error) {
	return r.findOne(ctx, `ip_address = $1`, ip)
}

// List returns all servers ordered by location.
func (r *PostgresRepository) List(ctx context.Context) ([]*models.Server, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM servers ORDER BY location, ip_address`)
	if err != nil {
		return nil, fmt.Errorf("failed to select servers: %w", err)
	}
	defer rows.Close()

	var result []*models.Server
	for rows.Next() {
		s, err := scanServer(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes a server by id. The FK cascade drops its keys and their
// user associations in the same statement.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM servers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
