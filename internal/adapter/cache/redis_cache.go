package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aq2208/gcart-api/internal/usecase"
	"github.com/redis/go-redis/v9"
)

// RedisCache keeps the latest projected cart summary per session.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func summaryKey(sessionID string) string { return "cart:summary:" + sessionID }

func (r *RedisCache) SetSummary(ctx context.Context, ev usecase.CartEventMsg) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, summaryKey(ev.SessionID), b, r.ttl).Err()
}

func (r *RedisCache) GetSummary(ctx context.Context, sessionID string) (*usecase.CartEventMsg, bool, error) {
	b, err := r.rdb.Get(ctx, summaryKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var ev usecase.CartEventMsg
	if err := json.Unmarshal(b, &ev); err != nil {
		return nil, false, fmt.Errorf("decode summary %s: %w", sessionID, err)
	}
	return &ev, true, nil
}

var _ usecase.CartSummaryCache = (*RedisCache)(nil)
