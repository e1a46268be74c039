package vpnkeys

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

// PostgresRepository implements Repository over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts key, filling ID and timestamps. An empty Status means valid.
func (r *PostgresRepository) Create(ctx context.Context, key *models.VPNKey) error {
	query := `
		INSERT INTO vpn_keys (id, server_id, name, key, qr_code, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	if key.Status == "" {
		key.Status = models.KeyStatusValid
	}
	id := uuid.NewString()
	err := r.db.QueryRowContext(ctx, query, id, key.ServerID, key.Name, key.Key, key.QRCode, string(key.Status)).
		Scan(&key.CreatedAt, &key.UpdatedAt)
	if err != nil {
		return dbx.MapWriteError("insert vpn key", err)
	}
	key.ID = id
	return nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.VPNKey, error) {
	query := `
		SELECT id, server_id, name, key, qr_code, status, created_at, updated_at
		FROM vpn_keys
		WHERE id = $1
	`
	k := &models.VPNKey{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&k.ID, &k.ServerID, &k.Name, &k.Key, &k.QRCode, &k.Status, &k.CreatedAt, &k.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return k, nil
}

// SetStatus moves a key to status and bumps updated_at.
func (r *PostgresRepository) SetStatus(ctx context.Context, id string, status models.KeyStatus) error {
	query := `
		UPDATE vpn_keys SET status = $2, updated_at = now()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id, string(status))
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

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, status models.KeyStatus) ([]*models.VPNKey, error) {
	query := `
		SELECT k.id, k.server_id, k.name, k.key, k.qr_code, k.status, k.created_at, k.updated_at
		FROM vpn_keys k
		JOIN user_vpn_keys uk ON uk.vpn_key_id = k.id
		WHERE uk.user_id = $1 AND k.status = $2
		ORDER BY k.created_at
	`
	rows, err := r.db.QueryContext(ctx, query, userID, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to select keys: %w", err)
	}
	defer rows.Close()

	var result []*models.VPNKey
	for rows.Next() {
		k := &models.VPNKey{}
		if err := rows.Scan(&k.ID, &k.ServerID, &k.Name, &k.Key, &k.QRCode, &k.Status, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
