package groups

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

func (r *PostgresRepository) Create(ctx context.Context, g *models.Group) error {
	query := `
		INSERT INTO groups (id, group_id, title, description, bio, invite_link, location, username)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	id := uuid.NewString()
	err := r.db.QueryRowContext(ctx, query, id, g.GroupID, g.Title,
		g.Description, g.Bio, g.InviteLink, g.Location, g.UserName).Scan(&g.CreatedAt)
	if err != nil {
		return dbx.MapWriteError("insert group", err)
	}
	g.ID = id
	return nil
}

func (r *PostgresRepository) FindByGroupID(ctx context.Context, groupID int64) (*models.Group, error) {
	query := `
		SELECT id, group_id, title, description, bio, invite_link, location, username, created_at
		FROM groups
		WHERE group_id = $1
	`
	g := &models.Group{}
	err := r.db.QueryRowContext(ctx, query, groupID).Scan(&g.ID, &g.GroupID, &g.Title,
		&g.Description, &g.Bio, &g.InviteLink, &g.Location, &g.UserName, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return g, nil
}
