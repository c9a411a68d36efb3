package metadata

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE session_kv (
  key        TEXT PRIMARY KEY,
  value      TEXT NOT NULL,
  updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`)
	require.NoError(t, err)
	return db
}

func TestPutAndGet(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, map[string]string{"token": "abc", "user_id": "7"}))

	v, ok, err := r.Get(ctx, "token")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "abc", v)

	v, ok, err = r.Get(ctx, "user_id")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "7", v)
}

func TestGet_Absent(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	v, ok, err := r.Get(context.Background(), "worker_id")
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, v)
}

func TestPut_UpsertOverwrites(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, map[string]string{"token": "old"}))
	require.NoError(t, r.Put(ctx, map[string]string{"token": "new"}))

	v, _, err := r.Get(ctx, "token")
	require.NoError(t, err)
	require.Equal(t, "new", v)
}

func TestDelete_RemovesKeysAndIsIdempotent(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, map[string]string{"a": "1", "b": "2", "c": "3"}))
	require.NoError(t, r.Delete(ctx, "a", "b"))
	require.NoError(t, r.Delete(ctx, "a", "b"))

	for key, want := range map[string]bool{"a": false, "b": false, "c": true} {
		_, ok, err := r.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, want, ok, key)
	}
}

func TestPut_RollsBackWhenSecondWriteFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO session_kv").WithArgs("token", "abc").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO session_kv").WithArgs("user_id", "7").WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	r := NewSQLiteRepository(db)
	err = r.Put(context.Background(), map[string]string{"user_id": "7", "token": "abc"})

	require.ErrorContains(t, err, "failed to set session_kv[user_id]")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_RollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM session_kv").WithArgs("worker_id").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM session_kv").WithArgs("worker_email").WillReturnError(errors.New("locked"))
	mock.ExpectRollback()

	r := NewSQLiteRepository(db)
	err = r.Delete(context.Background(), "worker_id", "worker_email")

	require.ErrorContains(t, err, "failed to delete session_kv[worker_email]")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestErrorsAreWrapped(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, db.Close())

	_, _, err := r.Get(ctx, "k")
	require.ErrorContains(t, err, "failed to get session_kv[k]")

	err = r.Put(ctx, map[string]string{"k": "v"})
	require.Error(t, err)

	err = r.Delete(ctx, "k")
	require.Error(t, err)
}

func TestEmptyBatchesAreNoops(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := NewSQLiteRepository(db)
	require.NoError(t, r.Put(context.Background(), nil))
	require.NoError(t, r.Delete(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
