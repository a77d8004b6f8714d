package cache

import (
	"context"
	"errors"
	"sync"
)

// MemoryCache is an in-process PhotoCache.
type MemoryCache struct {
	opts Options
	data map[string]Entry
	mu   sync.RWMutex
}

// NewMemoryCache creates an in-memory cache. Expired entries are removed
// lazily on read.
func NewMemoryCache(opts Options) *MemoryCache {
	return &MemoryCache{
		opts: opts.withDefaults(),
		data: make(map[string]Entry),
	}
}

// Get returns a live entry for key.
func (m *MemoryCache) Get(_ context.Context, key string) (Entry, bool, error) {
	entry, err := m.lookup(key)
	if errors.Is(err, ErrCacheNotFound) || errors.Is(err, ErrCacheExpired) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return entry, true, nil
}

func (m *MemoryCache) lookup(key string) (Entry, error) {
	m.mu.RLock()
	entry, exists := m.data[key]
	m.mu.RUnlock()

	if !exists {
		return Entry{}, ErrCacheNotFound
	}

	if entry.Expired(m.opts.Now()) {
		m.mu.Lock()
		// a concurrent Put may have replaced it
		if cur, ok := m.data[key]; ok && cur.Expired(m.opts.Now()) {
			delete(m.data, key)
		}
		m.mu.Unlock()
		return Entry{}, ErrCacheExpired
	}

	return entry, nil
}

// Put stores body under key, replacing any previous entry.
func (m *MemoryCache) Put(_ context.Context, key string, body []byte, mimeType string) error {
	entry := m.opts.newEntry(key, body, mimeType)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.data[key]; !exists && m.opts.MaxEntries > 0 {
		for len(m.data) >= m.opts.MaxEntries {
			m.evictOldestLocked()
		}
	}
	m.data[key] = entry
	return nil
}

// evictOldestLocked drops the entry stored earliest.
func (m *MemoryCache) evictOldestLocked() {
	var (
		oldestKey string
		oldest    Entry
		found     bool
	)
	for k, e := range m.data {
		if !found || e.StoredAt.Before(oldest.StoredAt) {
			oldestKey, oldest, found = k, e, true
		}
	}
	if found {
		delete(m.data, oldestKey)
	}
}

// Len counts stored entries, including expired ones not yet read.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func (m *MemoryCache) Backend() string { return BackendMemory }

func (m *MemoryCache) Close() error { return nil }
