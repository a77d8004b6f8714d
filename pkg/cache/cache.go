package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCacheNotFound = errors.New("cache entry not found")
	ErrCacheExpired  = errors.New("cache entry expired")
)

// Backend names accepted by New.
const (
	BackendMemory  = "memory"
	BackendLevelDB = "leveldb"
	BackendRedis   = "redis"
)

// DefaultTTL is used when Options.TTL is not set.
const DefaultTTL = time.Hour

// Entry is one cached photo.
type Entry struct {
	Key       string
	Body      []byte
	MIMEType  string
	StoredAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the entry is past its lifetime at now.
func (e Entry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// PhotoCache stores successful photo fetches for a bounded time.
//
// Get reports a miss for absent and expired entries alike; an expired entry is
// evicted by the read that finds it. Put always overwrites.
type PhotoCache interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Put(ctx context.Context, key string, body []byte, mimeType string) error
	Len() int
	Backend() string
	Close() error
}

// Options are shared by all backends.
type Options struct {
	TTL time.Duration
	// MaxEntries bounds the memory backend; 0 means unbounded.
	MaxEntries int
	Now        func() time.Time
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

func (o Options) newEntry(key string, body []byte, mimeType string) Entry {
	now := o.Now()
	return Entry{
		Key:       key,
		Body:      body,
		MIMEType:  mimeType,
		StoredAt:  now,
		ExpiresAt: now.Add(o.TTL),
	}
}
