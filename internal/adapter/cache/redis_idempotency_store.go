package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aq2208/gcart-api/internal/usecase"
	"github.com/redis/go-redis/v9"
)

// DedupOption tunes an idempotency store.
type DedupOption func(*scopeTTLs)

// WithScopeTTL overrides the default TTL for one scope.
func WithScopeTTL(scope string, ttl time.Duration) DedupOption {
	return func(s *scopeTTLs) { s.byScope[scope] = ttl }
}

type scopeTTLs struct {
	def     time.Duration
	byScope map[string]time.Duration
}

func newScopeTTLs(def time.Duration, opts []DedupOption) scopeTTLs {
	s := scopeTTLs{def: def, byScope: map[string]time.Duration{}}
	for _, o := range opts {
		o(&s)
	}
	return s
}

func (s scopeTTLs) of(scope string) time.Duration {
	if ttl, ok := s.byScope[scope]; ok {
		return ttl
	}
	return s.def
}

// RedisIdempotencyStore claims keys with SET NX; the value is the claim time
// in unix millis.
type RedisIdempotencyStore struct {
	rdb  redis.Cmdable
	ttls scopeTTLs
	now  func() time.Time
}

func NewRedisIdempotencyStore(rdb redis.Cmdable, ttl time.Duration, opts ...DedupOption) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{rdb: rdb, ttls: newScopeTTLs(ttl, opts), now: time.Now}
}

func dedupKey(scope, key string) string { return "gcart:dedup:" + scope + ":" + key }

func (s *RedisIdempotencyStore) TryLock(ctx context.Context, scope, key string) (bool, error) {
	claimed := strconv.FormatInt(s.now().UnixMilli(), 10)
	err := s.rdb.SetArgs(ctx, dedupKey(scope, key), claimed, redis.SetArgs{Mode: "NX", TTL: s.ttls.of(scope)}).Err()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("dedup claim %s: %w", scope, err)
	}
	return true, nil
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, scope, key string) error {
	if err := s.rdb.Del(ctx, dedupKey(scope, key)).Err(); err != nil {
		return fmt.Errorf("dedup release %s: %w", scope, err)
	}
	return nil
}

var _ usecase.IdempotencyStore = (*RedisIdempotencyStore)(nil)
