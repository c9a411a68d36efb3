package session

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/expertease/internal/client/client"
	"github.com/dmitrijs2005/expertease/internal/client/repositories/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func newSQLiteStore(t *testing.T) *KVStore {
	t.Helper()
	db, err := client.InitDatabase(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewKVStore(metadata.NewSQLiteRepository(db), nil)
}

// brokenRepo fails every call.
type brokenRepo struct{}

var errBroken = errors.New("disk I/O error")

func (brokenRepo) Get(context.Context, string) (string, bool, error) { return "", false, errBroken }
func (brokenRepo) Put(context.Context, map[string]string) error     { return errBroken }
func (brokenRepo) Delete(context.Context, ...string) error          { return errBroken }

// flakyStore fails Set for one key.
type flakyStore struct {
	*MemoryStore
	failKey string
}

func (s *flakyStore) Set(ctx context.Context, key, value string) error {
	if key == s.failKey {
		return errBroken
	}
	return s.MemoryStore.Set(ctx, key, value)
}

func TestKVStore_RoundTrip(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	_, ok := s.Get(ctx, KeyToken)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, KeyToken, "abc"))
	require.NoError(t, s.SetAll(ctx, map[string]string{KeyWorkerID: "9", KeyWorkerEmail: "doc@x.com"}))

	v, ok := s.Get(ctx, KeyToken)
	require.True(t, ok)
	assert.Equal(t, "abc", v)

	v, ok = s.Get(ctx, KeyWorkerEmail)
	require.True(t, ok)
	assert.Equal(t, "doc@x.com", v)

	require.NoError(t, s.Remove(ctx, AllKeys...))
	for _, k := range AllKeys {
		_, ok := s.Get(ctx, k)
		assert.False(t, ok, k)
	}
}

func TestKVStore_UnavailableReadsAsAbsent(t *testing.T) {
	s := NewKVStore(brokenRepo{}, nil)

	v, ok := s.Get(context.Background(), KeyToken)
	assert.False(t, ok)
	assert.Empty(t, v)
	assert.ErrorIs(t, s.Set(context.Background(), KeyToken, "x"), errBroken)
}

func TestTokenSource(t *testing.T) {
	s := NewMemoryStore()
	ts := TokenSource(s)
	ctx := context.Background()

	assert.Empty(t, ts(ctx))
	require.NoError(t, s.Set(ctx, KeyToken, "tok"))
	assert.Equal(t, "tok", ts(ctx))
}

func TestPersistAll_RollsBackOnPartialWrite(t *testing.T) {
	ctx := context.Background()

	t.Run("keys absent before", func(t *testing.T) {
		s := &flakyStore{MemoryStore: NewMemoryStore(), failKey: KeyUserID}

		err := persistAll(ctx, s, map[string]string{KeyToken: "new", KeyUserID: "1"})
		require.ErrorIs(t, err, errBroken)

		_, ok := s.Get(ctx, KeyToken)
		assert.False(t, ok, "token must not outlive a failed user_id write")
	})

	t.Run("previous values restored", func(t *testing.T) {
		s := &flakyStore{MemoryStore: NewMemoryStore(), failKey: KeyUserID}
		require.NoError(t, s.MemoryStore.Set(ctx, KeyToken, "old"))
		require.NoError(t, s.MemoryStore.Set(ctx, KeyUserID, "7"))

		err := persistAll(ctx, s, map[string]string{KeyToken: "new", KeyUserID: "1"})
		require.ErrorIs(t, err, errBroken)

		v, _ := s.Get(ctx, KeyToken)
		assert.Equal(t, "old", v)
		v, _ = s.Get(ctx, KeyUserID)
		assert.Equal(t, "7", v)
	})
}

func TestPersistAll_BatchStore(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, persistAll(ctx, s, map[string]string{KeyToken: "t", KeyUserID: "1"}))
	v, ok := s.Get(ctx, KeyUserID)
	require.True(t, ok)
	assert.Equal(t, "1", v)
}
