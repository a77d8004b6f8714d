package cache

import (
	"context"

	"go.uber.org/zap"

	"github.com/mvn-raffle/photoproxy/pkg/logging"
)

// Settings select and configure a backend.
type Settings struct {
	Backend     string
	LevelDBPath string
	RedisAddr   string
	RedisPrefix string
	Options
}

// New creates the configured PhotoCache. A persistent backend that cannot be
// opened falls back to memory so the proxy keeps serving.
func New(ctx context.Context, s Settings) PhotoCache {
	switch s.Backend {
	case BackendLevelDB:
		c, err := NewLevelDBCache(s.LevelDBPath, s.Options)
		if err != nil {
			logging.Logger.Warn("Failed to open leveldb photo cache, falling back to memory cache",
				zap.String("path", s.LevelDBPath),
				zap.Error(err))
			return NewMemoryCache(s.Options)
		}
		logging.Logger.Info("Initialized leveldb photo cache",
			zap.String("path", s.LevelDBPath),
			zap.Duration("ttl", c.opts.TTL))
		return c

	case BackendRedis:
		c, err := NewRedisCache(ctx, s.RedisAddr, s.RedisPrefix, s.Options)
		if err != nil {
			logging.Logger.Warn("Failed to connect redis photo cache, falling back to memory cache",
				zap.String("addr", s.RedisAddr),
				zap.Error(err))
			return NewMemoryCache(s.Options)
		}
		logging.Logger.Info("Initialized redis photo cache",
			zap.String("addr", s.RedisAddr),
			zap.String("prefix", c.prefix),
			zap.Duration("ttl", c.opts.TTL))
		return c
	}

	c := NewMemoryCache(s.Options)
	logging.Logger.Info("Initialized in-memory photo cache",
		zap.Duration("ttl", c.opts.TTL),
		zap.Int("max_entries", c.opts.MaxEntries))
	return c
}
