// Package cachesvc stores report snapshots in redis, or in memory when redis is not configured.
package cachesvc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/alama/core"
)

var NowFunc = time.Now // mockable

// New connects to the configured redis server. It falls back on an in-memory cache
// when no address is set or the server does not answer. A zero TTL disables caching.
func New(ctx context.Context, conf *core.Config, logger core.Logger) core.Cache {
	if conf.Report.CacheTTL <= 0 {
		logger.Info("report cache disabled")
		return NoopCache{}
	}
	if conf.RedisAddress == "" {
		logger.Info("redis address not set: caching reports in memory")
		return NewMemoryCache(conf.Report.CacheTTL)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     conf.RedisAddress,
		Password: conf.RedisPassword,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn(fmt.Sprintf("connecting to redis at %s: %v - caching reports in memory", conf.RedisAddress, err), err)
		_ = client.Close()
		return NewMemoryCache(conf.Report.CacheTTL)
	}
	logger.Info("connected to redis at " + conf.RedisAddress)
	return NewRedisCache(client, conf.Report.CacheTTL)
}

const scanBatch = 100

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ core.Cache = (*redisCache)(nil)

func NewRedisCache(client *redis.Client, ttl time.Duration) *redisCache {
	return &redisCache{client: client, ttl: ttl}
}

func (c *redisCache) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "reading %s", key)
	}
	if err = json.Unmarshal(data, dst); err != nil {
		return false, errors.Wrapf(err, "decoding %s", key)
	}
	return true, nil
}

func (c *redisCache) Set(ctx context.Context, key string, val interface{}) error {
	data, err := json.Marshal(val)
	if err != nil {
		return errors.Wrapf(err, "encoding %s", key)
	}
	return errors.Wrapf(c.client.Set(ctx, key, data, c.ttl).Err(), "writing %s", key)
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return errors.Wrap(c.client.Del(ctx, keys...).Err(), "deleting keys")
}

// DeletePrefix scans the keyspace for prefix and deletes the matches in batches.
func (c *redisCache) DeletePrefix(ctx context.Context, prefix string) error {
	iter := c.client.Scan(ctx, 0, prefix+"*", scanBatch).Iterator()
	keys := make([]string, 0, scanBatch)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == scanBatch {
			if err := c.Delete(ctx, keys...); err != nil {
				return err
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return errors.Wrapf(err, "scanning %s*", prefix)
	}
	return c.Delete(ctx, keys...)
}

type memoryEntry struct {
	data    []byte
	expires time.Time // zero: never
}

type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
}

var _ core.Cache = (*memoryCache)(nil)

// NewMemoryCache keeps JSON snapshots in a map. A ttl <= 0 keeps them until deleted.
func NewMemoryCache(ttl time.Duration) *memoryCache {
	return &memoryCache{entries: make(map[string]memoryEntry), ttl: ttl}
}

func (c *memoryCache) Get(_ context.Context, key string, dst interface{}) (bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if !entry.expires.IsZero() && !NowFunc().Before(entry.expires) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return false, nil
	}
	if err := json.Unmarshal(entry.data, dst); err != nil {
		return false, errors.Wrapf(err, "decoding %s", key)
	}
	return true, nil
}

func (c *memoryCache) Set(_ context.Context, key string, val interface{}) error {
	data, err := json.Marshal(val)
	if err != nil {
		return errors.Wrapf(err, "encoding %s", key)
	}
	entry := memoryEntry{data: data}
	if c.ttl > 0 {
		entry.expires = NowFunc().Add(c.ttl)
	}
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return nil
}

func (c *memoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
	}
	return nil
}

func (c *memoryCache) DeletePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

// NoopCache never stores anything.
type NoopCache struct{}

var _ core.Cache = NoopCache{}

func (NoopCache) Get(context.Context, string, interface{}) (bool, error) { return false, nil }
func (NoopCache) Set(context.Context, string, interface{}) error         { return nil }
func (NoopCache) Delete(context.Context, ...string) error                { return nil }
func (NoopCache) DeletePrefix(context.Context, string) error             { return nil }
