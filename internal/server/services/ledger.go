package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/vpnkeeper/internal/common"
	"github.com/dmitrijs2005/vpnkeeper/internal/dbx"
	"github.com/dmitrijs2005/vpnkeeper/internal/logging"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/models"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/repositories/repomanager"
)

// LedgerService records named one-off routines so each runs once per
// database.
type LedgerService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	log         logging.Logger
}

func NewLedgerService(db *sql.DB, m repomanager.RepositoryManager, log logging.Logger) *LedgerService {
	return &LedgerService{db: db, repomanager: m, log: log.With("module", "ledger")}
}

func (s *LedgerService) HasApplied(ctx context.Context, name string) (bool, error) {
	ok, err := s.repomanager.Migrations(s.db).Exists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("error checking migration %q: %w", name, err)
	}
	return ok, nil
}

// RecordApplied fails with common.ErrDuplicateMigration when name is already
// in the ledger.
func (s *LedgerService) RecordApplied(ctx context.Context, name string) error {
	if _, err := s.repomanager.Migrations(s.db).Create(ctx, name); err != nil {
		if errors.Is(err, common.ErrConstraintViolation) {
			return fmt.Errorf("%w: %s", common.ErrDuplicateMigration, name)
		}
		return fmt.Errorf("error recording migration %q: %w", name, err)
	}
	return nil
}

// List returns the ledger in application order.
func (s *LedgerService) List(ctx context.Context) ([]*models.Migration, error) {
	return s.repomanager.Migrations(s.db).List(ctx)
}

// Apply runs fn and records name in one transaction, unless name is already
// recorded. The ledger row is written first, so a concurrent Apply of the
// same name blocks on the unique index and then reports applied=false.
func (s *LedgerService) Apply(ctx context.Context, name string, fn func(ctx context.Context, tx dbx.DBTX) error) (applied bool, err error) {
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Migrations(tx)

		done, err := repo.Exists(ctx, name)
		if err != nil {
			return fmt.Errorf("error checking migration %q: %w", name, err)
		}
		if done {
			return nil
		}

		if _, err := repo.Create(ctx, name); err != nil {
			if errors.Is(err, common.ErrConstraintViolation) {
				return fmt.Errorf("%w: %s", common.ErrDuplicateMigration, name)
			}
			return fmt.Errorf("error recording migration %q: %w", name, err)
		}
		if err := fn(ctx, tx); err != nil {
			return fmt.Errorf("migration %q: %w", name, err)
		}
		applied = true
		return nil
	})

	if errors.Is(err, common.ErrDuplicateMigration) {
		s.log.Debug(ctx, "migration applied concurrently", "name", name)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if applied {
		s.log.Info(ctx, "migration applied", "name", name)
	}
	return applied, nil
}
