package cache

import (
	"context"
	"sync"
	"time"

	"github.com/aq2208/gcart-api/internal/usecase"
)

// MemoryIdempotencyStore is the single-process fallback for RedisIdempotencyStore.
// Expired keys are swept on every TryLock.
type MemoryIdempotencyStore struct {
	mu   sync.Mutex
	ttls scopeTTLs
	now  func() time.Time
	keys map[string]time.Time
}

func NewMemoryIdempotencyStore(ttl time.Duration, opts ...DedupOption) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{ttls: newScopeTTLs(ttl, opts), now: time.Now, keys: make(map[string]time.Time)}
}

func (s *MemoryIdempotencyStore) TryLock(_ context.Context, scope, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, exp := range s.keys {
		if !now.Before(exp) {
			delete(s.keys, k)
		}
	}
	k := dedupKey(scope, key)
	if _, held := s.keys[k]; held {
		return false, nil
	}
	s.keys[k] = now.Add(s.ttls.of(scope))
	return true, nil
}

func (s *MemoryIdempotencyStore) Release(_ context.Context, scope, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, dedupKey(scope, key))
	return nil
}

var _ usecase.IdempotencyStore = (*MemoryIdempotencyStore)(nil)
