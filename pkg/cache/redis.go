package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mvn-raffle/photoproxy/pkg/logging"
)

const defaultRedisPrefix = "photoproxy"

// RedisCache shares entries between proxy replicas. Redis expires keys on its
// own; the stored expiry is checked again on read.
type RedisCache struct {
	opts   Options
	client *redis.Client
	prefix string
}

// NewRedisCache connects to addr, which is either host:port or a redis:// URL.
func NewRedisCache(ctx context.Context, addr, prefix string, opts Options) (*RedisCache, error) {
	var redisOpts *redis.Options
	if parsed, err := redis.ParseURL(addr); err == nil {
		redisOpts = parsed
	} else {
		redisOpts = &redis.Options{Addr: addr}
	}

	client := redis.NewClient(redisOpts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return NewRedisCacheWithClient(client, prefix, opts), nil
}

// NewRedisCacheWithClient wraps an existing client. The cache owns it
// afterwards and closes it on Close.
func NewRedisCacheWithClient(client *redis.Client, prefix string, opts Options) *RedisCache {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisCache{opts: opts.withDefaults(), client: client, prefix: prefix}
}

func (r *RedisCache) redisKey(key string) string {
	return r.prefix + ":photo:" + key
}

// Get returns a live entry for key.
func (r *RedisCache) Get(ctx context.Context, key string) (Entry, bool, error) {
	b, err := r.client.Get(ctx, r.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}

	entry, err := decodeEntry(b)
	if err != nil {
		return Entry{}, false, err
	}

	if entry.Expired(r.opts.Now()) {
		if err := r.client.Del(ctx, r.redisKey(key)).Err(); err != nil {
			logging.Logger.Warn("Failed to evict expired cache entry",
				zap.String("key", key),
				zap.Error(err))
		}
		return Entry{}, false, nil
	}
	return entry, true, nil
}

// Put stores body under key with the cache TTL, replacing any previous entry.
func (r *RedisCache) Put(ctx context.Context, key string, body []byte, mimeType string) error {
	b, err := encodeEntry(r.opts.newEntry(key, body, mimeType))
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.redisKey(key), b, r.opts.TTL).Err()
}

// Len counts this proxy's keys with SCAN.
func (r *RedisCache) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	n := 0
	iter := r.client.Scan(ctx, 0, r.prefix+":photo:*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		logging.Logger.Warn("Failed to count redis cache entries",
			zap.String("prefix", r.prefix),
			zap.Error(err))
	}
	return n
}

func (r *RedisCache) Backend() string { return BackendRedis }

func (r *RedisCache) Close() error {
	return r.client.Close()
}
