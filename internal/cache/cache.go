package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/codec"
	"github.com/eko/gocache/lib/v4/store"
	go_store "github.com/eko/gocache/store/go_cache/v4"
	redis_store "github.com/eko/gocache/store/redis/v4"
	"github.com/jon4hz/showtrack/internal/config"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const defaultTTL = 5 * time.Minute

// keyLister enumerates the keys currently held by a cache backend.
// gocache has no notion of key patterns, so prefix invalidation asks the backend directly.
type keyLister interface {
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Cache is a process wide key/value cache with per entry TTL and prefix invalidation.
// Values are stored JSON encoded so the memory and redis backends behave the same.
type Cache struct {
	cache     *cache.Cache[any]
	keys      keyLister
	cacheType config.CacheType
	ttl       time.Duration
	coalesce  bool
	group     singleflight.Group

	// epoch is bumped by every invalidation. A producer that started in an older epoch
	// may have read pre-invalidation data and must not write it back.
	epochMu sync.RWMutex
	epoch   uint64
}

// New creates a cache for the configured backend.
func New(cfg *config.CacheConfig) (*Cache, error) {
	if cfg == nil {
		cfg = &config.CacheConfig{Type: config.CacheTypeMemory}
	}

	c := &Cache{
		cacheType: cfg.Type,
		ttl:       cfg.TTL,
		coalesce:  cfg.CoalesceConcurrentMisses,
	}
	if c.ttl <= 0 {
		c.ttl = defaultTTL
	}

	switch cfg.Type {
	case config.CacheTypeRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			// plain host:port
			opts = &redis.Options{Addr: cfg.RedisURL}
		}
		c.cache, c.keys = newRedisCache(redis.NewClient(opts))
	case config.CacheTypeMemory, "":
		c.cache, c.keys = newMemoryCache()
	default:
		return nil, fmt.Errorf("unknown cache type %q", cfg.Type)
	}

	return c, nil
}

// DefaultTTL returns the TTL used when callers pass a non positive one.
func (c *Cache) DefaultTTL() time.Duration {
	return c.ttl
}

// GetType returns the cache backend type.
func (c *Cache) GetType() config.CacheType {
	return c.cacheType
}

// GetStats returns the cache statistics.
func (c *Cache) GetStats() *codec.Stats {
	return c.cache.GetCodec().GetStats()
}

// GetOrSet returns the cached value for key, or runs producer, stores its result for ttl and returns it.
// A miss or an unreadable entry is never an error. A producer error is returned as is and nothing is cached.
func GetOrSet[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, producer func(ctx context.Context) (T, error)) (T, error) {
	epoch := c.currentEpoch()
	if value, ok := lookup[T](ctx, c, key); ok {
		return value, nil
	}

	if !c.coalesce {
		return produce(ctx, c, key, ttl, epoch, producer)
	}

	// callers arriving after an invalidation never join a flight started before it
	flight := key + "#" + strconv.FormatUint(epoch, 10)
	v, err, _ := c.group.Do(flight, func() (any, error) {
		// another flight may have filled the key while we were waiting to run
		if value, ok := lookup[T](ctx, c, key); ok {
			return value, nil
		}
		return produce(ctx, c, key, ttl, epoch, producer)
	})
	if err != nil {
		return *new(T), err
	}
	return v.(T), nil
}

func lookup[T any](ctx context.Context, c *Cache, key string) (T, bool) {
	raw, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.NotFound{}) {
			log.Debug("cache read failed, treating as miss", "key", key, "error", err)
		}
		return *new(T), false
	}

	var data []byte
	switch v := raw.(type) {
	case []byte:
		data = v
	case string:
		// redis hands values back as strings
		data = []byte(v)
	default:
		return *new(T), false
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		log.Warn("dropping undecodable cache entry", "key", key, "error", err)
		_ = c.cache.Delete(ctx, key)
		return *new(T), false
	}
	return value, true
}

func produce[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, epoch uint64, producer func(ctx context.Context) (T, error)) (T, error) {
	value, err := producer(ctx)
	if err != nil {
		return *new(T), err
	}

	if ttl <= 0 {
		ttl = c.ttl
	}

	data, err := json.Marshal(value)
	if err != nil {
		log.Warn("failed to encode cache entry", "key", key, "error", err)
		return value, nil
	}

	c.epochMu.RLock()
	defer c.epochMu.RUnlock()
	if c.epoch != epoch {
		log.Debug("skipping cache write, invalidated while producing", "key", key)
		return value, nil
	}
	if err := c.cache.Set(ctx, key, data, store.WithExpiration(ttl)); err != nil {
		log.Warn("failed to write cache entry", "key", key, "error", err)
	}
	return value, nil
}

func (c *Cache) currentEpoch() uint64 {
	c.epochMu.RLock()
	defer c.epochMu.RUnlock()
	return c.epoch
}

// bumpEpoch waits for in-progress writes and then makes every running producer stale.
// Keys are deleted after the bump, so a write that won the race is removed again.
func (c *Cache) bumpEpoch() {
	c.epochMu.Lock()
	c.epoch++
	c.epochMu.Unlock()
}

// Invalidate removes a single key.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	c.bumpEpoch()
	return c.delete(ctx, key)
}

func (c *Cache) delete(ctx context.Context, key string) error {
	if err := c.cache.Delete(ctx, key); err != nil && !errors.Is(err, store.NotFound{}) {
		return fmt.Errorf("failed to invalidate cache key %s: %w", key, err)
	}
	return nil
}

// InvalidatePattern removes every key starting with prefix.
func (c *Cache) InvalidatePattern(ctx context.Context, prefix string) error {
	c.bumpEpoch()
	keys, err := c.keys.Keys(ctx, prefix)
	if err != nil {
		return fmt.Errorf("failed to list cache keys for prefix %s: %w", prefix, err)
	}

	var errs []error
	for _, key := range keys {
		if err := c.delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	if len(keys) > 0 {
		log.Debug("invalidated cache keys", "prefix", prefix, "count", len(keys))
	}
	return errors.Join(errs...)
}

// Clear removes all values from the cache.
func (c *Cache) Clear(ctx context.Context) error {
	c.bumpEpoch()
	return c.cache.Clear(ctx)
}

type memoryKeys struct {
	client *gocache.Cache
}

func (m memoryKeys) Keys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	// Items only returns unexpired entries
	for key := range m.client.Items() {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

type redisKeys struct {
	client *redis.Client
}

func (r redisKeys) Keys(ctx context.Context, prefix string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	match := escapeGlob(prefix) + "*"
	for {
		batch, next, err := r.client.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

func escapeGlob(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}

func newMemoryCache() (*cache.Cache[any], keyLister) {
	// entries always carry their own expiration, the janitor only reclaims memory
	gocacheClient := gocache.New(gocache.NoExpiration, 10*time.Minute)
	gocacheStore := go_store.NewGoCache(gocacheClient)
	return cache.New[any](gocacheStore), memoryKeys{client: gocacheClient}
}

func newRedisCache(client *redis.Client) (*cache.Cache[any], keyLister) {
	redisStore := redis_store.NewRedis(client)
	return cache.New[any](redisStore), redisKeys{client: client}
}
