package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"civicforge/internal/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache is the provider-agnostic cache surface. Values are opaque bytes;
// callers own serialization.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Health(ctx context.Context) error
	Close() error
}

// New builds a cache from configuration. Unknown providers fall back to
// the in-memory cache.
func New(cfg *config.CacheConfig, logger *zap.Logger) (Cache, error) {
	switch cfg.Provider {
	case "redis":
		return NewRedisCache(cfg, logger)
	case "memory", "":
		return NewMemoryCache(cfg.MaxKeys, logger), nil
	default:
		logger.Warn("Unknown cache provider, using memory", zap.String("provider", cfg.Provider))
		return NewMemoryCache(cfg.MaxKeys, logger), nil
	}
}

// ===============================
// MEMORY PROVIDER
// ===============================

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is a bounded in-process cache with periodic expiry sweeps.
// Suitable for single-instance deployments and tests.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	maxKeys int
	logger  *zap.Logger
	done    chan struct{}
	once    sync.Once
}

// NewMemoryCache creates a memory cache holding at most maxKeys entries
func NewMemoryCache(maxKeys int, logger *zap.Logger) *MemoryCache {
	if maxKeys <= 0 {
		maxKeys = 10000
	}
	c := &MemoryCache{
		entries: make(map[string]memoryEntry),
		maxKeys: maxKeys,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict expired entries first when full; fall back to dropping an
	// arbitrary entry so writes never fail.
	if len(c.entries) >= c.maxKeys {
		c.evictLocked()
	}
	c.entries[key] = memoryEntry{value: value, expiresAt: expiresAt}
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := c.Get(ctx, key)
	return ok, err
}

func (c *MemoryCache) Health(_ context.Context) error {
	return nil
}

func (c *MemoryCache) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// Len returns the current number of entries, expired or not
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *MemoryCache) evictLocked() {
	now := time.Now()
	for key, entry := range c.entries {
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
	if len(c.entries) < c.maxKeys {
		return
	}
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}

func (c *MemoryCache) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for key, entry := range c.entries {
				if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// ===============================
// REDIS PROVIDER
// ===============================

// RedisCache backs the cache with a redis instance, for multi-instance
// deployments where resolved configs must be invalidated everywhere at once
type RedisCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisCache connects to redis and verifies connectivity
func NewRedisCache(cfg *config.CacheConfig, logger *zap.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if cfg.RedisPassword != "" {
		opts.Password = cfg.RedisPassword
	}
	if cfg.RedisDB != 0 {
		opts.DB = cfg.RedisDB
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	logger.Info("Redis cache initialized", zap.Int("db", opts.DB), zap.Int("pool_size", opts.PoolSize))
	return &RedisCache{client: client, logger: logger}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}
	return value, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists failed: %w", err)
	}
	return n > 0, nil
}

func (c *RedisCache) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis unreachable: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
