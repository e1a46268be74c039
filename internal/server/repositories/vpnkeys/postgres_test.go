package vpnkeys

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/vpnkeeper/internal/common"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

var columns = []string{"id", "server_id", "name", "key", "qr_code", "status", "created_at", "updated_at"}

const connection = "vless://3fa85f64-5717-4562-b3fc-2c963f66afa6@10.0.0.1:443?type=tcp"

func TestCreate_DefaultsToValid(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+vpn_keys\s*\(id,\s*server_id,\s*name,\s*key,\s*qr_code,\s*status\).*RETURNING\s+created_at,\s*updated_at`).
		WithArgs(sqlmock.AnyArg(), "s-1", "Amsterdam", connection, "qr/abc.png", "valid").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	k := &models.VPNKey{ServerID: "s-1", Name: "Amsterdam", Key: connection, QRCode: "qr/abc.png"}
	require.NoError(t, repo.Create(context.Background(), k))
	assert.NotEmpty(t, k.ID)
	assert.Equal(t, models.KeyStatusValid, k.Status)
	assert.True(t, k.IsValid())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DuplicateKey(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+vpn_keys`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "vpn_keys_key_key"})

	err := repo.Create(context.Background(), &models.VPNKey{Key: connection})
	require.ErrorIs(t, err, common.ErrConstraintViolation)
}

func TestFindByID(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`(?s)SELECT.*FROM\s+vpn_keys\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("k-1").
		WillReturnRows(sqlmock.NewRows(columns).AddRow("k-1", "s-1", "Amsterdam", connection, "qr/abc.png", "revoked", now, now))

	k, err := repo.FindByID(context.Background(), "k-1")
	require.NoError(t, err)
	assert.Equal(t, models.KeyStatusRevoked, k.Status)
	assert.False(t, k.IsValid())

	mock.ExpectQuery(`(?s)FROM\s+vpn_keys`).WithArgs("none").WillReturnError(sql.ErrNoRows)
	_, err = repo.FindByID(context.Background(), "none")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSetStatus(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	q := `(?s)UPDATE\s+vpn_keys\s+SET\s+status\s*=\s*\$2,\s*updated_at\s*=\s*now\(\)\s+WHERE\s+id\s*=\s*\$1`

	mock.ExpectExec(q).WithArgs("k-1", "revoked").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SetStatus(context.Background(), "k-1", models.KeyStatusRevoked))

	mock.ExpectExec(q).WithArgs("k-2", "revoked").WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, repo.SetStatus(context.Background(), "k-2", models.KeyStatusRevoked), common.ErrorNotFound)

	mock.ExpectExec(q).WithArgs("k-3", "expired").WillReturnError(errors.New("db err"))
	require.ErrorContains(t, repo.SetStatus(context.Background(), "k-3", models.KeyStatusExpired), "db error")
}

func TestListByUser(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`(?s)FROM\s+vpn_keys\s+k\s+JOIN\s+user_vpn_keys\s+uk.*WHERE\s+uk.user_id\s*=\s*\$1\s+AND\s+k.status\s*=\s*\$2`).
		WithArgs("u-1", "valid").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("k-1", "s-1", "Amsterdam", connection, "qr/1.png", "valid", now, now).
			AddRow("k-2", "s-2", "Berlin", "vless://x", "qr/2.png", "valid", now, now))

	keys, err := repo.ListByUser(context.Background(), "u-1", models.KeyStatusValid)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, "k-2", keys[1].ID)

	mock.ExpectQuery(`(?s)FROM\s+vpn_keys`).WillReturnError(errors.New("boom"))
	_, err = repo.ListByUser(context.Background(), "u-1", models.KeyStatusValid)
	require.ErrorContains(t, err, "failed to select keys")
}
