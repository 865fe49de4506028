package clients

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/tastediary/syncserver/internal/common"
)

func newMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func TestAcquireLease(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"granted", 1, true},
		{"sibling holds lease", 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock := newMock(t)
			mock.ExpectExec(`UPDATE clients SET lock_expire = now\(\)`).
				WithArgs(int64(7), int64(1), float64(300)).
				WillReturnResult(sqlmock.NewResult(0, tc.affected))

			ok, err := repo.AcquireLease(context.Background(), 1, 7, 5*time.Minute)
			require.NoError(t, err)
			require.Equal(t, tc.want, ok)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRenewLease_ExpiredIsRejected(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(`UPDATE clients SET lock_expire = now\(\)`).
		WithArgs(int64(7), int64(1), float64(60)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.RenewLease(context.Background(), 1, 7, time.Minute)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReleaseLease(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(`UPDATE clients\s+SET last_sync = now\(\), lock_expire = NULL, changes_pending = FALSE`).
		WithArgs(int64(7), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.ReleaseLease(context.Background(), 1, 7))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_NotFound(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(`SELECT id, user_id, push_token`).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.Get(context.Background(), 99)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestGet_MapsLockExpire(t *testing.T) {
	repo, mock := newMock(t)
	exp := time.Now().Add(time.Minute)
	rows := sqlmock.NewRows([]string{"id", "user_id", "push_token", "last_sync", "lock_expire", "changes_pending"}).
		AddRow(int64(7), int64(1), "tok", time.Unix(0, 0), exp, true)
	mock.ExpectQuery(`SELECT id, user_id, push_token`).
		WithArgs(int64(7)).
		WillReturnRows(rows)

	c, err := repo.Get(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, int64(1), c.UserID)
	require.NotNil(t, c.LockExpire)
	require.True(t, c.ChangesPending)
}

func TestListPushTokens(t *testing.T) {
	repo, mock := newMock(t)
	rows := sqlmock.NewRows([]string{"id", "push_token"}).
		AddRow(int64(1), "a1").
		AddRow(int64(2), "b1")
	mock.ExpectQuery(`SELECT id, push_token FROM clients`).
		WithArgs(int64(5)).
		WillReturnRows(rows)

	tokens, err := repo.ListPushTokens(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, map[int64]string{1: "a1", 2: "b1"}, tokens)
}
