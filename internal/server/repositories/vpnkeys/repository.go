// Package vpnkeys declares and implements persistence of issued VPN keys.
package vpnkeys

import (
	"context"

	"github.com/dmitrijs2005/vpnkeeper/internal/server/models"
)

type Repository interface {
	// Create inserts a key; a duplicate connection string is a constraint violation.
	Create(ctx context.Context, key *models.VPNKey) error
	FindByID(ctx context.Context, id string) (*models.VPNKey, error)
	SetStatus(ctx context.Context, id string, status models.KeyStatus) error
	// ListByUser returns the keys associated with a user (internal id) in the
	// given status, oldest first.
	ListByUser(ctx context.Context, userID string, status models.KeyStatus) ([]*models.VPNKey, error)
}
