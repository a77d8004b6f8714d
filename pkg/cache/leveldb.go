package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
	"go.uber.org/zap"

	"github.com/mvn-raffle/photoproxy/pkg/logging"
)

const levelDBEntryPrefix = "e:"

// LevelDBCache persists entries on local disk so a restart does not empty the
// cache. Entries still expire.
type LevelDBCache struct {
	opts Options
	path string
	db   *leveldb.DB
}

// NewLevelDBCache opens (or creates) the database at path.
func NewLevelDBCache(path string, opts Options) (*LevelDBCache, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb cache: %w", err)
	}
	return &LevelDBCache{opts: opts.withDefaults(), path: path, db: db}, nil
}

func levelDBKey(key string) []byte {
	return []byte(levelDBEntryPrefix + key)
}

// Get returns a live entry for key.
func (l *LevelDBCache) Get(_ context.Context, key string) (Entry, bool, error) {
	b, err := l.db.Get(levelDBKey(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}

	entry, err := decodeEntry(b)
	if err != nil {
		return Entry{}, false, err
	}

	if entry.Expired(l.opts.Now()) {
		if err := l.db.Delete(levelDBKey(key), nil); err != nil {
			logging.Logger.Warn("Failed to evict expired cache entry",
				zap.String("key", key),
				zap.Error(err))
		}
		return Entry{}, false, nil
	}
	return entry, true, nil
}

// Put stores body under key, replacing any previous entry.
func (l *LevelDBCache) Put(_ context.Context, key string, body []byte, mimeType string) error {
	b, err := encodeEntry(l.opts.newEntry(key, body, mimeType))
	if err != nil {
		return err
	}
	return l.db.Put(levelDBKey(key), b, nil)
}

// Len counts stored entries, including expired ones not yet read.
func (l *LevelDBCache) Len() int {
	it := l.db.NewIterator(util.BytesPrefix([]byte(levelDBEntryPrefix)), nil)
	defer it.Release()

	n := 0
	for it.Next() {
		n++
	}
	if err := it.Error(); err != nil {
		logging.Logger.Warn("Failed to count leveldb cache entries",
			zap.String("path", l.path),
			zap.Error(err))
	}
	return n
}

func (l *LevelDBCache) Backend() string { return BackendLevelDB }

// Close releases the database lock.
func (l *LevelDBCache) Close() error {
	return l.db.Close()
}
