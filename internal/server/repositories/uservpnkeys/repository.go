// Package uservpnkeys persists the association between users and the keys
// they hold.
package uservpnkeys

import (
	"context"

	"github.com/dmitrijs2005/vpnkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, userID, vpnKeyID string) (*models.UserVPNKey, error)
	// CountValid counts the user's associations whose key is still valid.
	CountValid(ctx context.Context, userID string) (int, error)
	// FindLive returns the association of userID with a valid vpnKeyID, or
	// common.ErrorNotFound.
	FindLive(ctx context.Context, userID, vpnKeyID string) (*models.UserVPNKey, error)
}
