package session

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/dmitrijs2005/expertease/internal/client/client"
	"github.com/dmitrijs2005/expertease/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/expertease/internal/logging"
)

// Persisted keys.
const (
	KeyToken       = "token"
	KeyUserID      = "user_id"
	KeyWorkerID    = "worker_id"
	KeyWorkerEmail = "worker_email"
)

// AllKeys lists every key the controller may persist.
var AllKeys = []string{KeyToken, KeyUserID, KeyWorkerID, KeyWorkerEmail}

// Store is the durable key/value store behind the session. Get never fails:
// an unreadable store reads as absent.
type Store interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, keys ...string) error
}

// BatchStore is implemented by stores that can write several keys
// atomically.
type BatchStore interface {
	SetAll(ctx context.Context, values map[string]string) error
}

// KVStore adapts a metadata repository to Store.
type KVStore struct {
	repo   metadata.Repository
	logger logging.Logger
}

var (
	_ Store      = (*KVStore)(nil)
	_ BatchStore = (*KVStore)(nil)
)

func NewKVStore(repo metadata.Repository, logger logging.Logger) *KVStore {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &KVStore{repo: repo, logger: logger.With("component", "session_store")}
}

func (s *KVStore) Get(ctx context.Context, key string) (string, bool) {
	v, ok, err := s.repo.Get(ctx, key)
	if err != nil {
		s.logger.Warn(ctx, "session store unavailable, treating key as absent", "key", key, "error", err)
		return "", false
	}
	return v, ok
}

func (s *KVStore) Set(ctx context.Context, key, value string) error {
	return s.repo.Put(ctx, map[string]string{key: value})
}

func (s *KVStore) SetAll(ctx context.Context, values map[string]string) error {
	return s.repo.Put(ctx, values)
}

func (s *KVStore) Remove(ctx context.Context, keys ...string) error {
	return s.repo.Delete(ctx, keys...)
}

// MemoryStore keeps keys in process memory. Nothing survives a restart.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, keys ...string) error {
	s.mu.Lock()
	for _, k := range keys {
		delete(s.data, k)
	}
	s.mu.Unlock()
	return nil
}

// TokenSource reads the bearer token straight from the store, so every
// request is signed with whatever is persisted at the time it is sent.
func TokenSource(s Store) client.TokenSource {
	return func(ctx context.Context) string {
		t, _ := s.Get(ctx, KeyToken)
		return t
	}
}

// persistAll writes values as one unit. Batch stores do it natively;
// otherwise keys are written one by one and, on failure, the keys already
// written get their previous values back.
func persistAll(ctx context.Context, s Store, values map[string]string) error {
	if bs, ok := s.(BatchStore); ok {
		return bs.SetAll(ctx, values)
	}

	type prior struct {
		value string
		ok    bool
	}
	written := make(map[string]prior, len(values))

	for _, key := range slices.Sorted(maps.Keys(values)) {
		v, ok := s.Get(ctx, key)
		if err := s.Set(ctx, key, values[key]); err != nil {
			for k, p := range written {
				if p.ok {
					_ = s.Set(ctx, k, p.value)
				} else {
					_ = s.Remove(ctx, k)
				}
			}
			return err
		}
		written[key] = prior{value: v, ok: ok}
	}
	return nil
}
