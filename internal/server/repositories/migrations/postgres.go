package migrations

import (
	"context"
	"fmt"

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

func (r *PostgresRepository) Create(ctx context.Context, name string) (*models.Migration, error) {
	query := `
		INSERT INTO migrations (id, name)
		VALUES ($1, $2)
		RETURNING applied_at
	`
	m := &models.Migration{ID: uuid.NewString(), Name: name}
	if err := r.db.QueryRowContext(ctx, query, m.ID, name).Scan(&m.AppliedAt); err != nil {
		return nil, dbx.MapWriteError("insert migration", err)
	}
	return m, nil
}

func (r *PostgresRepository) Exists(ctx context.Context, name string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM migrations WHERE name = $1)`
	var ok bool
	if err := r.db.QueryRowContext(ctx, query, name).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Migration, error) {
	query := `SELECT id, name, applied_at FROM migrations ORDER BY applied_at, name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select migrations: %w", err)
	}
	defer rows.Close()

	var result []*models.Migration
	for rows.Next() {
		m := &models.Migration{}
		if err := rows.Scan(&m.ID, &m.Name, &m.AppliedAt); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
