package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/vpnkeeper/internal/common"
	"github.com/dmitrijs2005/vpnkeeper/internal/dbx"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/models"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/repositories/groups"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/repositories/migrations"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/repositories/servers"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/repositories/uservpnkeys"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/repositories/vpnkeys"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// newTxDB returns a real *sql.DB so dbx.WithTx can begin and commit; the
// fake repositories below ignore the handle they are bound to.
func newTxDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// memStore is an in-memory stand-in for the Postgres schema, enforcing the
// same unique constraints.
type memStore struct {
	mu         sync.Mutex
	users      map[int64]*models.User
	servers    map[string]*models.Server
	keys       map[string]*models.VPNKey
	links      []*models.UserVPNKey
	groups     map[int64]*models.Group
	migrations []*models.Migration

	// set to make the next user insert fail
	userCreateErr error
	// inserted in place of the next user insert, which then fails as a duplicate
	raceWinner *models.User
}

func newMemStore() *memStore {
	return &memStore{
		users:   map[int64]*models.User{},
		servers: map[string]*models.Server{},
		keys:    map[string]*models.VPNKey{},
		groups:  map[int64]*models.Group{},
	}
}

type fakeManager struct{ s *memStore }

func (m *fakeManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeManager) Users(dbx.DBTX) users.Repository             { return (*fakeUsers)(m.s) }
func (m *fakeManager) Servers(dbx.DBTX) servers.Repository         { return (*fakeServers)(m.s) }
func (m *fakeManager) VPNKeys(dbx.DBTX) vpnkeys.Repository         { return (*fakeKeys)(m.s) }
func (m *fakeManager) UserVPNKeys(dbx.DBTX) uservpnkeys.Repository { return (*fakeLinks)(m.s) }
func (m *fakeManager) Groups(dbx.DBTX) groups.Repository           { return (*fakeGroups)(m.s) }
func (m *fakeManager) Migrations(dbx.DBTX) migrations.Repository   { return (*fakeMigrations)(m.s) }

// users

type fakeUsers memStore

func (f *fakeUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.userCreateErr != nil {
		err := f.userCreateErr
		f.userCreateErr = nil
		return nil, err
	}
	if f.raceWinner != nil {
		f.users[f.raceWinner.UserID] = f.raceWinner
		f.raceWinner = nil
		return nil, common.ErrConstraintViolation
	}
	if _, ok := f.users[u.UserID]; ok {
		return nil, common.ErrConstraintViolation
	}
	u.ID = uuid.NewString()
	u.CreatedAt, u.UpdatedAt = time.Now(), time.Now()
	c := *u
	f.users[u.UserID] = &c
	return u, nil
}

func (f *fakeUsers) FindByUserID(_ context.Context, userID int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeUsers) SetSubscribed(_ context.Context, userID int64, subscribed bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return common.ErrorNotFound
	}
	u.IsSubscribed = subscribed
	u.UpdatedAt = time.Now()
	return nil
}

func (f *fakeUsers) LockByID(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			return nil
		}
	}
	return common.ErrorNotFound
}

func (f *fakeUsers) Count(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.users)), nil
}

// servers

type fakeServers memStore

func (f *fakeServers) Create(_ context.Context, s *models.Server) (*models.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.servers {
		if o.IPAddress == s.IPAddress {
			return nil, common.ErrConstraintViolation
		}
	}
	s.ID = uuid.NewString()
	c := *s
	f.servers[s.ID] = &c
	return s, nil
}

func (f *fakeServers) FindByID(_ context.Context, id string) (*models.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.servers[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *s
	return &c, nil
}

func (f *fakeServers) FindByIP(_ context.Context, ip string) (*models.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.servers {
		if s.IPAddress == ip {
			c := *s
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeServers) List(context.Context) ([]*models.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Server
	for _, s := range f.servers {
		c := *s
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Location < out[j].Location })
	return out, nil
}

func (f *fakeServers) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.servers[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.servers, id)
	kept := f.links[:0]
	for _, l := range f.links {
		if k := f.keys[l.VPNKeyID]; k != nil && k.ServerID == id {
			continue
		}
		kept = append(kept, l)
	}
	f.links = kept
	for kid, k := range f.keys {
		if k.ServerID == id {
			delete(f.keys, kid)
		}
	}
	return nil
}

// vpn keys

type fakeKeys memStore

func (f *fakeKeys) Create(_ context.Context, k *models.VPNKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.keys {
		if o.Key == k.Key {
			return common.ErrConstraintViolation
		}
	}
	if k.Status == "" {
		k.Status = models.KeyStatusValid
	}
	k.ID = uuid.NewString()
	k.CreatedAt, k.UpdatedAt = time.Now(), time.Now()
	c := *k
	f.keys[k.ID] = &c
	return nil
}

func (f *fakeKeys) FindByID(_ context.Context, id string) (*models.VPNKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k, ok := f.keys[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *k
	return &c, nil
}

func (f *fakeKeys) SetStatus(_ context.Context, id string, status models.KeyStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k, ok := f.keys[id]
	if !ok {
		return common.ErrorNotFound
	}
	k.Status = status
	return nil
}

func (f *fakeKeys) ListByUser(_ context.Context, userID string, status models.KeyStatus) ([]*models.VPNKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.VPNKey
	for _, l := range f.links {
		if k := f.keys[l.VPNKeyID]; l.UserID == userID && k != nil && k.Status == status {
			c := *k
			out = append(out, &c)
		}
	}
	return out, nil
}

// user <-> key links

type fakeLinks memStore

func (f *fakeLinks) Create(_ context.Context, userID, vpnKeyID string) (*models.UserVPNKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.links {
		if l.UserID == userID && l.VPNKeyID == vpnKeyID {
			return nil, common.ErrConstraintViolation
		}
	}
	l := &models.UserVPNKey{ID: uuid.NewString(), UserID: userID, VPNKeyID: vpnKeyID, CreatedAt: time.Now()}
	f.links = append(f.links, l)
	return l, nil
}

func (f *fakeLinks) CountValid(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, l := range f.links {
		if k := f.keys[l.VPNKeyID]; l.UserID == userID && k != nil && k.IsValid() {
			n++
		}
	}
	return n, nil
}

func (f *fakeLinks) FindLive(_ context.Context, userID, vpnKeyID string) (*models.UserVPNKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.links {
		if k := f.keys[l.VPNKeyID]; l.UserID == userID && l.VPNKeyID == vpnKeyID && k != nil && k.IsValid() {
			c := *l
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

// groups

type fakeGroups memStore

func (f *fakeGroups) Create(_ context.Context, g *models.Group) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.groups[g.GroupID]; ok {
		return common.ErrConstraintViolation
	}
	g.ID = uuid.NewString()
	c := *g
	f.groups[g.GroupID] = &c
	return nil
}

func (f *fakeGroups) FindByGroupID(_ context.Context, id int64) (*models.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *g
	return &c, nil
}

// migration ledger

type fakeMigrations memStore

func (f *fakeMigrations) Create(_ context.Context, name string) (*models.Migration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.migrations {
		if m.Name == name {
			return nil, common.ErrConstraintViolation
		}
	}
	m := &models.Migration{ID: uuid.NewString(), Name: name, AppliedAt: time.Now()}
	f.migrations = append(f.migrations, m)
	return m, nil
}

func (f *fakeMigrations) Exists(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.migrations {
		if m.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeMigrations) List(context.Context) ([]*models.Migration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.Migration(nil), f.migrations...), nil
}

// collaborators

type fakeChecker struct {
	mu     sync.Mutex
	member bool
	err    error
	calls  int
}

func (f *fakeChecker) IsChannelMember(ctx context.Context, channelID string, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.member, ctx.Err()
}

type fakeGenerator struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeGenerator) Generate(_ context.Context, s *models.Server, name string) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", "", f.err
	}
	id := uuid.NewString()
	return "vless://" + id + "@" + s.IPAddress + ":443?type=tcp#" + name, "qr/" + id + ".png", nil
}
