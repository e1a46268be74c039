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

// GroupService remembers the chats the bot has been added to.
type GroupService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	log         logging.Logger
}

func NewGroupService(db *sql.DB, m repomanager.RepositoryManager, log logging.Logger) *GroupService {
	return &GroupService{db: db, repomanager: m, log: log.With("module", "groups")}
}

// Observe stores g the first time its chat id is seen and reports whether a
// row was created.
func (s *GroupService) Observe(ctx context.Context, g *models.Group) (bool, error) {
	created := false
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Groups(tx)
		_, err := repo.FindByGroupID(ctx, g.GroupID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("error searching group: %w", err)
		}
		if err := repo.Create(ctx, g); err != nil {
			return err
		}
		created = true
		return nil
	})
	if errors.Is(err, common.ErrConstraintViolation) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if created {
		s.log.Info(ctx, "group observed", "group_id", g.GroupID, "title", g.Title)
	}
	return created, nil
}
