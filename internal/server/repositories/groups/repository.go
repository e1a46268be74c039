// Package groups persists chats and channels the bot has observed.
package groups

import (
	"context"

	"github.com/dmitrijs2005/vpnkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, g *models.Group) error
	FindByGroupID(ctx context.Context, groupID int64) (*models.Group, error)
}
