// Package resultcache caches full recognition responses in Redis. A cache
// outage is never an error: reads degrade to a miss and writes are dropped,
// so recognition latency does not track Redis availability.
package resultcache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hrygo/intentd/internal/profile"
)

const defaultPrefix = "intent:"

// Cache is the Redis-backed response cache.
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration

	warnOnce sync.Once
}

// New connects to the Redis instance named by the profile. The connection is
// not probed here; every operation tolerates an unreachable server.
func New(profile *profile.Profile) *Cache {
	prefix := profile.CachePrefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	ttl := time.Duration(profile.CacheTTL) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		client: redis.NewClient(&redis.Options{
			Addr:     profile.RedisAddr,
			Password: profile.RedisPassword,
			DB:       profile.RedisDB,
		}),
		prefix: prefix,
		ttl:    ttl,
	}
}

// NewWithClient wires an existing client; used by tests.
func NewWithClient(client *redis.Client, prefix string, ttl time.Duration) *Cache {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Cache{client: client, prefix: prefix, ttl: ttl}
}

func (c *Cache) Close() error {
	return c.client.Close()
}

// Get returns the cached serialized response, or (nil, false) on miss or
// any Redis failure.
func (c *Cache) Get(ctx context.Context, appKey, text string, reqContext map[string]any) ([]byte, bool) {
	data, err := c.client.Get(ctx, c.key(appKey, text, reqContext)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.warnUnavailable(err)
		}
		return nil, false
	}
	return data, true
}

// Set stores a serialized response under the derived key. Failures are
// logged once and otherwise ignored.
func (c *Cache) Set(ctx context.Context, appKey, text string, reqContext map[string]any, value []byte) {
	if err := c.client.Set(ctx, c.key(appKey, text, reqContext), value, c.ttl).Err(); err != nil {
		c.warnUnavailable(err)
	}
}

// key is prefix + md5(app_key + ":" + text [+ ":" + canonical_json(ctx)]).
// encoding/json sorts map keys, which is canonical enough for equal contexts
// to collide.
func (c *Cache) key(appKey, text string, reqContext map[string]any) string {
	raw := appKey + ":" + text
	if len(reqContext) > 0 {
		if data, err := json.Marshal(reqContext); err == nil {
			raw += ":" + string(data)
		}
	}
	sum := md5.Sum([]byte(raw))
	return c.prefix + hex.EncodeToString(sum[:])
}

func (c *Cache) warnUnavailable(err error) {
	c.warnOnce.Do(func() {
		slog.Warn("result cache unavailable, degrading to pass-through", "error", err)
	})
}
