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

// State is the position of a user in the subscription gate.
type State int

const (
	// StateNew means no User row exists yet. It is derived, never stored.
	StateNew State = iota
	StateUnsubscribed
	StateSubscribed
	// StatePrivileged is reported for allow-listed ids regardless of the
	// stored subscription flag.
	StatePrivileged
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateUnsubscribed:
		return "unsubscribed"
	case StateSubscribed:
		return "subscribed"
	case StatePrivileged:
		return "privileged"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Open reports whether the state grants access to key management.
func (s State) Open() bool {
	return s == StateSubscribed || s == StatePrivileged
}

// Event drives the gate.
type Event int

const (
	// EventContact is any inbound message from a non allow-listed id.
	EventContact Event = iota
	// EventPrivilegedContact is any inbound message from an allow-listed id.
	EventPrivilegedContact
	EventMemberConfirmed
	EventMemberRejected
)

// Transition returns the state reached from s on e. It is pure; persisting
// the result is the caller's job.
func Transition(s State, e Event) State {
	if e == EventPrivilegedContact {
		return StatePrivileged
	}
	switch s {
	case StateNew:
		if e == EventContact {
			return StateUnsubscribed
		}
	case StateUnsubscribed:
		switch e {
		case EventMemberConfirmed:
			return StateSubscribed
		case EventMemberRejected:
			return StateUnsubscribed
		}
	}
	// subscribed and privileged are terminal
	return s
}

// stateOf derives the stored state of an existing user.
func stateOf(u *models.User) State {
	if u.IsSubscribed {
		return StateSubscribed
	}
	return StateUnsubscribed
}

// Profile is what the chat transport knows about the sender.
type Profile struct {
	UserID    int64
	FullName  string
	UserName  string
	IsPremium *bool
}

type GateService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	checker     MembershipChecker
	allow       AllowList
	channelID   string
	log         logging.Logger
}

func NewGateService(db *sql.DB, m repomanager.RepositoryManager, checker MembershipChecker,
	allow AllowList, channelID string, log logging.Logger) *GateService {
	return &GateService{
		db:          db,
		repomanager: m,
		checker:     checker,
		allow:       allow,
		channelID:   channelID,
		log:         log.With("module", "gate"),
	}
}

// Contact evaluates the gate for an inbound message, creating the User row on
// first contact. Allow-listed ids always come out privileged.
func (s *GateService) Contact(ctx context.Context, p Profile) (State, *models.User, error) {
	privileged := s.allow.Contains(p.UserID)
	event := EventContact
	if privileged {
		event = EventPrivilegedContact
	}

	var (
		user    *models.User
		current = StateNew
	)

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		u, err := repo.FindByUserID(ctx, p.UserID)
		if err == nil {
			user = u
			current = stateOf(u)
			if !privileged && !u.IsSubscribed {
				return repo.SetSubscribed(ctx, p.UserID, false)
			}
			return nil
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("error searching user: %w", err)
		}

		user, err = repo.Create(ctx, &models.User{
			UserID:       p.UserID,
			FullName:     p.FullName,
			UserName:     p.UserName,
			IsPremium:    p.IsPremium,
			IsSubscribed: privileged,
		})
		if err != nil {
			return fmt.Errorf("error creating user: %w", err)
		}
		return nil
	})

	if errors.Is(err, common.ErrConstraintViolation) {
		// lost a first-contact race; the winner's row is authoritative
		user, err = s.repomanager.Users(s.db).FindByUserID(ctx, p.UserID)
		if err == nil {
			current = stateOf(user)
		}
	}
	if err != nil {
		return StateNew, nil, err
	}

	next := Transition(current, event)
	if current == StateNew {
		s.log.Info(ctx, "user registered", "user_id", p.UserID, "state", next.String())
	}
	return next, user, nil
}

// Current reports the gate state without writing anything.
func (s *GateService) Current(ctx context.Context, identity int64) (State, error) {
	if s.allow.Contains(identity) {
		return StatePrivileged, nil
	}
	u, err := s.repomanager.Users(s.db).FindByUserID(ctx, identity)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return StateNew, nil
		}
		return StateNew, err
	}
	return stateOf(u), nil
}

// Confirm runs the membership check for a user who claims to have joined the
// channel. The check happens outside any transaction; if it fails nothing is
// persisted and the error matches common.ErrExternalCollaborator.
func (s *GateService) Confirm(ctx context.Context, identity int64) (State, error) {
	if s.allow.Contains(identity) {
		return StatePrivileged, nil
	}

	u, err := s.repomanager.Users(s.db).FindByUserID(ctx, identity)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return StateNew, err
		}
		return StateNew, fmt.Errorf("error searching user: %w", err)
	}

	current := stateOf(u)
	if current == StateSubscribed {
		return current, nil
	}

	member, err := s.checker.IsChannelMember(ctx, s.channelID, identity)
	if err != nil {
		s.log.Warn(ctx, "membership check failed", "user_id", identity, "error", err)
		return current, fmt.Errorf("%w: membership check: %v", common.ErrExternalCollaborator, err)
	}

	event := EventMemberRejected
	if member {
		event = EventMemberConfirmed
	}
	next := Transition(current, event)

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Users(tx).SetSubscribed(ctx, identity, next == StateSubscribed)
	})
	if err != nil {
		return current, fmt.Errorf("error saving subscription: %w", err)
	}

	if next != current {
		s.log.Info(ctx, "user subscribed", "user_id", identity)
	}
	return next, nil
}

// UserCount reports how many users have contacted the bot.
func (s *GateService) UserCount(ctx context.Context) (int64, error) {
	return s.repomanager.Users(s.db).Count(ctx)
}
