// internal/content/cache.go
package content

import (
	"errors"
	"fmt"
	"os"

	"snap/internal/storage"

	"github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const cachePrefix = "digest"

// cacheEntry remembers the digest of a file together with the stat data it
// was computed from.
type cacheEntry struct {
	Path    string `json:"path"`
	Digest  string `json:"digest"`
	Size    int64  `json:"size"`
	ModTime int64  `json:"mod_time"` // unix nanoseconds
}

func (e *cacheEntry) GetID() string { return e.Path }

func (e *cacheEntry) matches(info os.FileInfo) bool {
	return e.Size == info.Size() && e.ModTime == info.ModTime().UnixNano()
}

// Cache is a Hasher that persists digests in badger, with an LRU in front.
// An entry is reused only while the file's size and mtime are unchanged.
type Cache struct {
	store  *storage.BadgerStore
	recent *lru.Cache[string, cacheEntry]
	logger *zap.Logger
}

func NewCache(db *badger.DB, size int, logger *zap.Logger) (*Cache, error) {
	if db == nil {
		return nil, fmt.Errorf("digest cache requires a database")
	}
	recent, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("creating lru: %w", err)
	}
	return &Cache{
		store:  storage.NewBadgerStore(db, cachePrefix),
		recent: recent,
		logger: logger,
	}, nil
}

func (c *Cache) DigestFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	if entry, ok := c.recent.Get(path); ok && entry.matches(info) {
		return entry.Digest, nil
	}

	var stored cacheEntry
	err = c.store.Get(path, &stored)
	switch {
	case err == nil && stored.matches(info):
		c.recent.Add(path, stored)
		return stored.Digest, nil
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		c.logger.Warn("digest cache read failed", zap.String("path", path), zap.Error(err))
	}

	digest, err := FileHasher{}.DigestFile(path)
	if err != nil {
		return "", err
	}

	entry := cacheEntry{
		Path:    path,
		Digest:  digest,
		Size:    info.Size(),
		ModTime: info.ModTime().UnixNano(),
	}
	c.recent.Add(path, entry)
	if err := c.store.Put(&entry); err != nil {
		c.logger.Warn("digest cache write failed", zap.String("path", path), zap.Error(err))
	}

	c.logger.Debug("digest computed", zap.String("path", path), zap.String("digest", digest))
	return digest, nil
}
