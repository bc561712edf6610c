package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	domain "github.com/aq2208/gcart-api/internal/entity"
	"github.com/aq2208/gcart-api/internal/usecase"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func sampleSession() *domain.Session {
	s := domain.NewSession("abc", time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	s.Cart.Add(domain.Product{ID: "MOU002", Name: "Gaming Mouse Pro", Price: decimal.NewFromInt(80), Stock: 15}, 2)
	s.Cart.DiscountCode = "SAVE20"
	s.RecordSearch("mouse")
	return s
}

func assertSameSession(t *testing.T, want, got *domain.Session) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.SearchHistory, got.SearchHistory)
	assert.Equal(t, want.Cart.DiscountCode, got.Cart.DiscountCode)
	require.Len(t, got.Cart.Items, len(want.Cart.Items))
	for i := range want.Cart.Items {
		assert.Equal(t, want.Cart.Items[i].ProductID, got.Cart.Items[i].ProductID)
		assert.Equal(t, want.Cart.Items[i].Quantity, got.Cart.Items[i].Quantity)
		assert.True(t, want.Cart.Items[i].Subtotal.Equal(got.Cart.Items[i].Subtotal))
	}
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
}

func TestRedisSessionStore(t *testing.T) {
	mr, rdb := newRedis(t)
	store := NewRedisSessionStore(rdb, 30*time.Minute)
	ctx := context.Background()

	_, ok, err := store.Load(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	want := sampleSession()
	require.NoError(t, store.Save(ctx, want))
	assert.Equal(t, 30*time.Minute, mr.TTL("cart:session:abc"))

	got, ok, err := store.Load(ctx, "abc")
	require.NoError(t, err)
	require.True(t, ok)
	assertSameSession(t, want, got)

	deleted, err := store.Delete(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = store.Delete(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestRedisSessionStore_Expires(t *testing.T) {
	mr, rdb := newRedis(t)
	store := NewRedisSessionStore(rdb, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleSession()))
	mr.FastForward(2 * time.Minute)

	_, ok, err := store.Load(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemorySessionStore_IsolatesCallers(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	want := sampleSession()
	require.NoError(t, store.Save(ctx, want))
	want.Cart.Clear()

	got, ok, err := store.Load(ctx, "abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, got.Cart.Units())

	deleted, _ := store.Delete(ctx, "abc")
	assert.True(t, deleted)
	_, ok, _ = store.Load(ctx, "abc")
	assert.False(t, ok)
}

func TestRedisIdempotencyStore(t *testing.T) {
	mr, rdb := newRedis(t)
	store := NewRedisIdempotencyStore(rdb, 5*time.Minute)
	ctx := context.Background()

	ok, err := store.TryLock(ctx, "relay:seen", "h1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.TryLock(ctx, "relay:seen", "h1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, _ = store.TryLock(ctx, "relay:inflight", "h1")
	assert.True(t, ok, "scopes are independent")

	require.NoError(t, store.Release(ctx, "relay:inflight", "h1"))
	ok, _ = store.TryLock(ctx, "relay:inflight", "h1")
	assert.True(t, ok)

	mr.FastForward(6 * time.Minute)
	ok, _ = store.TryLock(ctx, "relay:seen", "h1")
	assert.True(t, ok)
}

func TestRedisIdempotencyStore_ScopeTTL(t *testing.T) {
	mr, rdb := newRedis(t)
	store := NewRedisIdempotencyStore(rdb, 5*time.Minute, WithScopeTTL(usecase.ScopeInflight, time.Minute))
	store.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	ctx := context.Background()

	_, _ = store.TryLock(ctx, usecase.ScopeInflight, "m1")
	_, _ = store.TryLock(ctx, usecase.ScopeSeen, "h1")

	assert.Equal(t, time.Minute, mr.TTL("gcart:dedup:relay:inflight:m1"))
	assert.Equal(t, 5*time.Minute, mr.TTL("gcart:dedup:relay:seen:h1"))
	v, err := mr.Get("gcart:dedup:relay:seen:h1")
	require.NoError(t, err)
	assert.Equal(t, "1700000000000", v)

	mr.SetError("LOADING")
	_, err = store.TryLock(ctx, usecase.ScopeSeen, "h2")
	assert.ErrorContains(t, err, "dedup claim relay:seen")
}

func TestMemoryIdempotencyStore_WindowAndRelease(t *testing.T) {
	store := NewMemoryIdempotencyStore(5 * time.Minute)
	now := time.Unix(1_000, 0)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	ok, _ := store.TryLock(ctx, "s", "k")
	assert.True(t, ok)
	ok, _ = store.TryLock(ctx, "s", "k")
	assert.False(t, ok)

	now = now.Add(5 * time.Minute)
	ok, _ = store.TryLock(ctx, "s", "k")
	assert.True(t, ok)

	_, _ = store.TryLock(ctx, "s", "other")
	require.NoError(t, store.Release(ctx, "s", "other"))
	ok, _ = store.TryLock(ctx, "s", "other")
	assert.True(t, ok)
	assert.Len(t, store.keys, 2)
}

func TestRedisCache_Summary(t *testing.T) {
	mr, rdb := newRedis(t)
	c := NewRedisCache(rdb, time.Hour)
	ctx := context.Background()

	_, ok, err := c.GetSummary(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, ok)

	ev := usecase.CartEventMsg{EventID: "e1", SessionID: "s1", Tool: "add_to_cart", Lines: 1, Units: 2, Subtotal: "160.00", Total: "172.80"}
	require.NoError(t, c.SetSummary(ctx, ev))
	assert.True(t, mr.Exists("cart:summary:s1"))

	got, ok, err := c.GetSummary(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ev.Total, got.Total)
	assert.Equal(t, ev.Units, got.Units)
}
