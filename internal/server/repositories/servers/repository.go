// Package servers declares and implements persistence of VPN servers.
package servers

import (
	"context"

	"github.com/dmitrijs2005/vpnkeeper/internal/server/models"
)

// Repository stores VPN servers. IP address and public key are unique.
type Repository interface {
	Create(ctx context.Context, server *models.Server) (*models.Server, error)
	FindByID(ctx context.Context, id string) (*models.Server, error)
	FindByIP(ctx context.Context, ip string) (*models.Server, error)
	List(ctx context.Context) ([]*models.Server, error)
	// Delete removes the server; its keys and their associations go with it.
	Delete(ctx context.Context, id string) error
}
