package uservpnkeys

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

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, userID, vpnKeyID string) (*models.UserVPNKey, error) {
	query := `
		INSERT INTO user_vpn_keys (id, user_id, vpn_key_id)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`
	a := &models.UserVPNKey{ID: uuid.NewString(), UserID: userID, VPNKeyID: vpnKeyID}
	if err := r.db.QueryRowContext(ctx, query, a.ID, userID, vpnKeyID).Scan(&a.CreatedAt); err != nil {
		return nil, dbx.MapWriteError("insert user vpn key", err)
	}
	return a, nil
}

func (r *PostgresRepository) CountValid(ctx context.Context, userID string) (int, error) {
	query := `
		SELECT count(*)
		FROM user_vpn_keys uk
		JOIN vpn_keys k ON k.id = uk.vpn_key_id
		WHERE uk.user_id = $1 AND k.status = 'valid'
	`
	var n int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) FindLive(ctx context.Context, userID, vpnKeyID string) (*models.UserVPNKey, error) {
	query := `
		SELECT uk.id, uk.user_id, uk.vpn_key_id, uk.created_at
		FROM user_vpn_keys uk
		JOIN vpn_keys k ON k.id = uk.vpn_key_id
		WHERE uk.user_id = $1 AND uk.vpn_key_id = $2 AND k.status = 'valid'
	`
	a := &models.UserVPNKey{}
	err := r.db.QueryRowContext(ctx, query, userID, vpnKeyID).Scan(&a.ID, &a.UserID, &a.VPNKeyID, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}
