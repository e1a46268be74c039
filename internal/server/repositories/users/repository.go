// Package users declares and implements persistence of bot users.
package users

import (
	"context"

	"github.com/dmitrijs2005/vpnkeeper/internal/server/models"
)

type Repository interface {
	// Create inserts a user; a duplicate Telegram id is a constraint violation.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	// FindByUserID returns common.ErrorNotFound when no such Telegram id exists.
	FindByUserID(ctx context.Context, userID int64) (*models.User, error)
	SetSubscribed(ctx context.Context, userID int64, subscribed bool) error
	// LockByID takes a row lock on the user for the rest of the transaction.
	LockByID(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}
