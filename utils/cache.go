package utils

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultCacheTTL = time.Hour

type memItem struct {
	b         []byte
	expiresAt time.Time
}

// Cache stores small JSON blobs in Redis, or in memory when rc is nil.
type Cache struct {
	rc  *redis.Client
	log *zap.Logger

	mu  sync.Mutex
	mem map[string]memItem
	now func() time.Time
}

func NewCache(rc *redis.Client, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{rc: rc, log: log, mem: map[string]memItem{}, now: time.Now}
}

// GetBytes returns cached bytes for a key.
func (c *Cache) GetBytes(ctx context.Context, key string) ([]byte, bool) {
	if c.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		b, err := c.rc.Get(ctx, key).Bytes()
		if err != nil {
			c.log.Debug("cache get miss", zap.String("key", key), zap.Error(err))
			return nil, false
		}
		return b, true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.mem[key]
	if !ok {
		return nil, false
	}
	if c.now().After(it.expiresAt) {
		delete(c.mem, key)
		return nil, false
	}
	return it.b, true
}

// SetBytes stores bytes; ttl <= 0 uses the default TTL.
func (c *Cache) SetBytes(ctx context.Context, key string, b []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if c.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := c.rc.Set(ctx, key, b, ttl).Err(); err != nil {
			c.log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		}
		return
	}
	c.mu.Lock()
	c.mem[key] = memItem{b: b, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// SetJSON marshals v and stores JSON bytes.
func (c *Cache) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.SetBytes(ctx, key, b, ttl)
}

// GetJSON decodes a cached value into out. A corrupt entry counts as a miss.
func (c *Cache) GetJSON(ctx context.Context, key string, out interface{}) bool {
	b, ok := c.GetBytes(ctx, key)
	if !ok {
		return false
	}
	return json.Unmarshal(b, out) == nil
}

// InvalidateByPrefix deletes keys that match the given prefix using SCAN.
func (c *Cache) InvalidateByPrefix(ctx context.Context, prefix string) {
	if c.rc == nil {
		c.mu.Lock()
		for k := range c.mem {
			if strings.HasPrefix(k, prefix) {
				delete(c.mem, k)
			}
		}
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var cursor uint64
	for i := 0; i < 10; i++ { // limit rounds to avoid long loops
		keys, cur, err := c.rc.Scan(ctx, cursor, prefix+"*", 1000).Result()
		if err != nil {
			break
		}
		cursor = cur
		if len(keys) > 0 {
			pipe := c.rc.Pipeline()
			for _, k := range keys {
				pipe.Del(ctx, k)
			}
			_, _ = pipe.Exec(ctx)
		}
		if cursor == 0 {
			break
		}
	}
}
