// Package migrations persists the ledger of named one-off routines. Schema
// changes are versioned by goose separately; this ledger records data
// routines that must run exactly once per deployment.
package migrations

import (
	"context"

	"github.com/dmitrijs2005/vpnkeeper/internal/server/models"
)

type Repository interface {
	// Create records name as applied. A second Create with the same name is
	// a constraint violation.
	Create(ctx context.Context, name string) (*models.Migration, error)
	Exists(ctx context.Context, name string) (bool, error)
	List(ctx context.Context) ([]*models.Migration, error)
}
