package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dmitrijs2005/vpnkeeper/internal/common"
	"github.com/dmitrijs2005/vpnkeeper/internal/logging"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		name  string
		from  State
		event Event
		want  State
	}{
		{"first contact", StateNew, EventContact, StateUnsubscribed},
		{"first privileged contact", StateNew, EventPrivilegedContact, StatePrivileged},
		{"confirmed", StateUnsubscribed, EventMemberConfirmed, StateSubscribed},
		{"rejected loops", StateUnsubscribed, EventMemberRejected, StateUnsubscribed},
		{"contact keeps unsubscribed", StateUnsubscribed, EventContact, StateUnsubscribed},
		{"allow-list pre-empts stored state", StateUnsubscribed, EventPrivilegedContact, StatePrivileged},
		{"subscribed is terminal on reject", StateSubscribed, EventMemberRejected, StateSubscribed},
		{"subscribed is terminal on confirm", StateSubscribed, EventMemberConfirmed, StateSubscribed},
		{"privileged is terminal", StatePrivileged, EventContact, StatePrivileged},
		{"new ignores confirmation", StateNew, EventMemberConfirmed, StateNew},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Transition(tt.from, tt.event))
		})
	}
}

func TestState_StringAndOpen(t *testing.T) {
	assert.Equal(t, "unsubscribed", StateUnsubscribed.String())
	assert.Equal(t, "State(9)", State(9).String())
	assert.False(t, StateNew.Open())
	assert.False(t, StateUnsubscribed.Open())
	assert.True(t, StateSubscribed.Open())
	assert.True(t, StatePrivileged.Open())
}

type gateFixture struct {
	store   *memStore
	checker *fakeChecker
	svc     *GateService
}

func newGate(t *testing.T, admins ...int64) *gateFixture {
	t.Helper()
	store := newMemStore()
	checker := &fakeChecker{}
	svc := NewGateService(newTxDB(t), &fakeManager{s: store}, checker, NewAllowList(admins), "@channel", logging.Nop())
	return &gateFixture{store: store, checker: checker, svc: svc}
}

func TestGate_FirstContactThenConfirm(t *testing.T) {
	f := newGate(t)
	ctx := context.Background()

	state, user, err := f.svc.Contact(ctx, Profile{UserID: 1, FullName: "u1", UserName: "u1"})
	require.NoError(t, err)
	assert.Equal(t, StateUnsubscribed, state)
	assert.False(t, user.IsSubscribed)
	assert.False(t, f.store.users[1].IsSubscribed)

	f.checker.member = true
	state, err = f.svc.Confirm(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, StateSubscribed, state)
	assert.True(t, f.store.users[1].IsSubscribed)
}

func TestGate_ConfirmRejectedStaysUnsubscribed(t *testing.T) {
	f := newGate(t)
	ctx := context.Background()

	_, _, err := f.svc.Contact(ctx, Profile{UserID: 2})
	require.NoError(t, err)

	state, err := f.svc.Confirm(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, StateUnsubscribed, state)
	assert.False(t, f.store.users[2].IsSubscribed)
}

func TestGate_ConfirmCheckerFailurePersistsNothing(t *testing.T) {
	f := newGate(t)
	ctx := context.Background()

	_, _, err := f.svc.Contact(ctx, Profile{UserID: 3})
	require.NoError(t, err)
	before := f.store.users[3].UpdatedAt

	f.checker.err = errors.New("telegram down")
	state, err := f.svc.Confirm(ctx, 3)
	require.ErrorIs(t, err, common.ErrExternalCollaborator)
	assert.Equal(t, StateUnsubscribed, state)
	assert.False(t, f.store.users[3].IsSubscribed)
	assert.Equal(t, before, f.store.users[3].UpdatedAt)
}

func TestGate_ConfirmCancelledContext(t *testing.T) {
	f := newGate(t)
	_, _, err := f.svc.Contact(context.Background(), Profile{UserID: 4})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.checker.member = true

	_, err = f.svc.Confirm(ctx, 4)
	require.ErrorIs(t, err, common.ErrExternalCollaborator)
	assert.False(t, f.store.users[4].IsSubscribed)
}

func TestGate_SubscribedIsIdempotent(t *testing.T) {
	f := newGate(t)
	ctx := context.Background()

	_, _, err := f.svc.Contact(ctx, Profile{UserID: 5})
	require.NoError(t, err)
	f.checker.member = true
	_, err = f.svc.Confirm(ctx, 5)
	require.NoError(t, err)

	state, err := f.svc.Confirm(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, StateSubscribed, state)

	state, _, err = f.svc.Contact(ctx, Profile{UserID: 5})
	require.NoError(t, err)
	assert.Equal(t, StateSubscribed, state)

	assert.Len(t, f.store.users, 1)
	assert.True(t, f.store.users[5].IsSubscribed)
	assert.Equal(t, 1, f.checker.calls)
}

func TestGate_PrivilegedBypassesSubscription(t *testing.T) {
	f := newGate(t, 42)
	ctx := context.Background()

	state, user, err := f.svc.Contact(ctx, Profile{UserID: 42, FullName: "admin"})
	require.NoError(t, err)
	assert.Equal(t, StatePrivileged, state)
	assert.True(t, user.IsSubscribed)

	// stored flag does not matter for allow-listed ids
	f.store.users[42].IsSubscribed = false
	state, _, err = f.svc.Contact(ctx, Profile{UserID: 42})
	require.NoError(t, err)
	assert.Equal(t, StatePrivileged, state)

	state, err = f.svc.Confirm(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, StatePrivileged, state)
	assert.Zero(t, f.checker.calls)

	state, err = f.svc.Current(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, StatePrivileged, state)
}

func TestGate_Current(t *testing.T) {
	f := newGate(t)
	ctx := context.Background()

	state, err := f.svc.Current(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, StateNew, state)
	assert.Empty(t, f.store.users)

	_, _, err = f.svc.Contact(ctx, Profile{UserID: 7})
	require.NoError(t, err)
	state, err = f.svc.Current(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, StateUnsubscribed, state)
}

func TestGate_ConfirmUnknownUser(t *testing.T) {
	f := newGate(t)
	state, err := f.svc.Confirm(context.Background(), 99)
	require.ErrorIs(t, err, common.ErrorNotFound)
	assert.Equal(t, StateNew, state)
}

func TestGate_ConcurrentFirstContactCreatesOneRow(t *testing.T) {
	f := newGate(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.svc.Contact(ctx, Profile{UserID: 8})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.Len(t, f.store.users, 1)
}

func TestGate_LostCreateRaceRereads(t *testing.T) {
	f := newGate(t)
	ctx := context.Background()

	// another worker inserts the row between our lookup and insert
	f.store.raceWinner = &models.User{ID: "u-9", UserID: 9, IsSubscribed: true}

	state, user, err := f.svc.Contact(ctx, Profile{UserID: 9})
	require.NoError(t, err)
	assert.Equal(t, "u-9", user.ID)
	assert.Equal(t, StateSubscribed, state)
	assert.Len(t, f.store.users, 1)
}

func TestGate_ContactStoreError(t *testing.T) {
	f := newGate(t)
	f.store.userCreateErr = errors.New("disk full")

	_, _, err := f.svc.Contact(context.Background(), Profile{UserID: 10})
	require.ErrorContains(t, err, "error creating user")
	assert.Empty(t, f.store.users)
}

func TestGate_UserCount(t *testing.T) {
	f := newGate(t)
	ctx := context.Background()
	for id := int64(1); id <= 3; id++ {
		_, _, err := f.svc.Contact(ctx, Profile{UserID: id})
		require.NoError(t, err)
	}
	n, err := f.svc.UserCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
