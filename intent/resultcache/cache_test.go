package resultcache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewWithClient(client, "intent:", time.Hour)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestGetSet(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	_, ok := c.Get(ctx, "app-1", "查找零件", nil)
	require.False(t, ok)

	c.Set(ctx, "app-1", "查找零件", nil, []byte(`{"intent":"SEARCH_PART"}`))

	data, ok := c.Get(ctx, "app-1", "查找零件", nil)
	require.True(t, ok)
	require.JSONEq(t, `{"intent":"SEARCH_PART"}`, string(data))
}

func TestKeyIncludesContext(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	c.Set(ctx, "app-1", "text", map[string]any{"user": "a"}, []byte(`1`))

	_, ok := c.Get(ctx, "app-1", "text", nil)
	require.False(t, ok, "context-free lookup must not see a contextual entry")
	_, ok = c.Get(ctx, "app-1", "text", map[string]any{"user": "b"})
	require.False(t, ok)
	data, ok := c.Get(ctx, "app-1", "text", map[string]any{"user": "a"})
	require.True(t, ok)
	require.Equal(t, []byte(`1`), data)
}

func TestKeysIsolatedPerApp(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	c.Set(ctx, "app-1", "text", nil, []byte(`1`))
	_, ok := c.Get(ctx, "app-2", "text", nil)
	require.False(t, ok)
}

func TestEntriesCarryPrefixAndTTL(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)

	c.Set(ctx, "app-1", "text", nil, []byte(`1`))
	keys := mr.Keys()
	require.Len(t, keys, 1)
	require.Contains(t, keys[0], "intent:")
	require.Greater(t, mr.TTL(keys[0]), time.Duration(0))
}

func TestExpiredEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)

	c.Set(ctx, "app-1", "text", nil, []byte(`1`))
	mr.FastForward(2 * time.Hour)

	_, ok := c.Get(ctx, "app-1", "text", nil)
	require.False(t, ok)
}

func TestUnreachableServerDegradesSilently(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewWithClient(client, "intent:", time.Hour)
	mr.Close()

	_, ok := c.Get(ctx, "app-1", "text", nil)
	require.False(t, ok)
	// Writes must not panic or error either.
	c.Set(ctx, "app-1", "text", nil, []byte(`1`))
}
