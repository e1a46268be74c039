package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/vpnkeeper/internal/common"
	"github.com/dmitrijs2005/vpnkeeper/internal/dbx"
	"github.com/dmitrijs2005/vpnkeeper/internal/lockx"
	"github.com/dmitrijs2005/vpnkeeper/internal/logging"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/models"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// DefaultMaxKeys is the per-user quota when none is configured.
const DefaultMaxKeys = 3

// Usage is a user's live key count against the quota.
type Usage struct {
	Count int
	Max   int
}

// Remaining is how many more keys may be granted.
func (u Usage) Remaining() int {
	if u.Count >= u.Max {
		return 0
	}
	return u.Max - u.Count
}

// KeyService grants and revokes VPN keys under a per-user quota.
//
// Grant and Revoke for the same user are serialized twice: by a
// process-local keyed mutex and by a row lock on the user inside the
// transaction, so the quota also holds across processes.
type KeyService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	generator   ArtifactGenerator
	max         int
	locks       *lockx.KeyedMutex
	log         logging.Logger
}

func NewKeyService(db *sql.DB, m repomanager.RepositoryManager, gen ArtifactGenerator, maxKeys int, log logging.Logger) *KeyService {
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	return &KeyService{
		db:          db,
		repomanager: m,
		generator:   gen,
		max:         maxKeys,
		locks:       lockx.NewKeyedMutex(),
		log:         log.With("module", "keys"),
	}
}

// checkID rejects ids that cannot name a stored row. Key and server ids
// arrive from callback data and admin arguments.
func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: malformed id %q", common.ErrorNotFound, id)
	}
	return nil
}

func (s *KeyService) findUser(ctx context.Context, identity int64) (*models.User, error) {
	u, err := s.repomanager.Users(s.db).FindByUserID(ctx, identity)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("error searching user: %w", err)
	}
	return u, nil
}

// Grant issues a new key on serverID to the user. The artifact generator runs
// before the transaction; a generator failure creates no rows.
func (s *KeyService) Grant(ctx context.Context, identity int64, serverID string) (*models.VPNKey, error) {
	if err := checkID(serverID); err != nil {
		return nil, err
	}

	user, err := s.findUser(ctx, identity)
	if err != nil {
		return nil, err
	}

	server, err := s.repomanager.Servers(s.db).FindByID(ctx, serverID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("error searching server: %w", err)
	}

	// cheap pre-check so a full quota does not cost an artifact
	n, err := s.repomanager.UserVPNKeys(s.db).CountValid(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("error counting keys: %w", err)
	}
	if n >= s.max {
		return nil, common.ErrQuotaExceeded
	}

	connection, qrRef, err := s.generator.Generate(ctx, server, server.Location)
	if err != nil {
		s.log.Error(ctx, "artifact generation failed", "user_id", identity, "server_id", serverID, "error", err)
		return nil, fmt.Errorf("%w: generate artifact: %v", common.ErrExternalCollaborator, err)
	}

	unlock := s.locks.Lock(user.ID)
	defer unlock()

	key := &models.VPNKey{
		ServerID: server.ID,
		Name:     server.Location,
		Key:      connection,
		QRCode:   qrRef,
		Status:   models.KeyStatusValid,
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).LockByID(ctx, user.ID); err != nil {
			return fmt.Errorf("error locking user: %w", err)
		}

		n, err := s.repomanager.UserVPNKeys(tx).CountValid(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("error counting keys: %w", err)
		}
		if n >= s.max {
			return common.ErrQuotaExceeded
		}

		if err := s.repomanager.VPNKeys(tx).Create(ctx, key); err != nil {
			return fmt.Errorf("error creating key: %w", err)
		}
		if _, err := s.repomanager.UserVPNKeys(tx).Create(ctx, user.ID, key.ID); err != nil {
			return fmt.Errorf("error linking key: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrQuotaExceeded) {
			s.log.Warn(ctx, "quota reached after generation, artifact discarded", "user_id", identity, "qr", qrRef)
		}
		return nil, err
	}

	s.log.Info(ctx, "key granted", "user_id", identity, "key_id", key.ID, "server_id", server.ID)
	return key, nil
}

// Revoke soft-revokes keyID. It returns common.ErrorNotFound when the user
// has no live association with the key.
func (s *KeyService) Revoke(ctx context.Context, identity int64, keyID string) error {
	if err := checkID(keyID); err != nil {
		return err
	}

	user, err := s.findUser(ctx, identity)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(user.ID)
	defer unlock()

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).LockByID(ctx, user.ID); err != nil {
			return fmt.Errorf("error locking user: %w", err)
		}
		if _, err := s.repomanager.UserVPNKeys(tx).FindLive(ctx, user.ID, keyID); err != nil {
			return err
		}
		return s.repomanager.VPNKeys(tx).SetStatus(ctx, keyID, models.KeyStatusRevoked)
	})
	if err != nil {
		return err
	}

	s.log.Info(ctx, "key revoked", "user_id", identity, "key_id", keyID)
	return nil
}

// Usage is read-only.
func (s *KeyService) Usage(ctx context.Context, identity int64) (Usage, error) {
	user, err := s.findUser(ctx, identity)
	if err != nil {
		return Usage{}, err
	}
	n, err := s.repomanager.UserVPNKeys(s.db).CountValid(ctx, user.ID)
	if err != nil {
		return Usage{}, fmt.Errorf("error counting keys: %w", err)
	}
	return Usage{Count: n, Max: s.max}, nil
}

// List returns the user's valid keys, oldest first.
func (s *KeyService) List(ctx context.Context, identity int64) ([]*models.VPNKey, error) {
	user, err := s.findUser(ctx, identity)
	if err != nil {
		return nil, err
	}
	keys, err := s.repomanager.VPNKeys(s.db).ListByUser(ctx, user.ID, models.KeyStatusValid)
	if err != nil {
		return nil, fmt.Errorf("error listing keys: %w", err)
	}
	return keys, nil
}

// Get returns one of the user's valid keys.
func (s *KeyService) Get(ctx context.Context, identity int64, keyID string) (*models.VPNKey, error) {
	if err := checkID(keyID); err != nil {
		return nil, err
	}

	user, err := s.findUser(ctx, identity)
	if err != nil {
		return nil, err
	}
	if _, err := s.repomanager.UserVPNKeys(s.db).FindLive(ctx, user.ID, keyID); err != nil {
		return nil, err
	}
	return s.repomanager.VPNKeys(s.db).FindByID(ctx, keyID)
}
