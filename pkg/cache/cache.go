// Package cache implements the Discovery Cache: a persistent mapping from a
// pack's canonical path to its last known mtime and discovered content,
// used to short-circuit repeated filesystem scans.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"xaddonmgr/pkg/model"
)

// Cache is the Discovery Cache, backed by a JSON document at a fixed path.
// Many concurrent readers, one writer at a time.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]model.CacheEntry
	path    string
}

// Load reads the cache from path. A missing or corrupt file yields an
// empty cache rather than an error; the cost is a full rescan, never a
// failed load.
func Load(path string) *Cache {
	c := &Cache{entries: map[string]model.CacheEntry{}, path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		return c
	}
	var entries map[string]model.CacheEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return c
	}
	c.entries = entries
	return c
}

// Get returns the cached entry for canonicalPath iff its stored mtime
// equals currentMTime exactly.
func (c *Cache) Get(canonicalPath string, currentMTime time.Time) (model.CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[canonicalPath]
	if !ok || !e.MTime.Equal(currentMTime) {
		return model.CacheEntry{}, false
	}
	return e, true
}

// Put records a fresh cache entry for canonicalPath.
func (c *Cache) Put(canonicalPath string, entry model.CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[canonicalPath] = entry
}

// PutAll folds a batch of entries in under a single write lock, the shape
// the data-parallel discovery stage needs: workers produce independent
// update records, the caller folds them into the cache under the writer
// lock.
func (c *Cache) PutAll(updates map[string]model.CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range updates {
		c.entries[k] = v
	}
}

// Save persists the cache to its backing file.
func (c *Cache) Save() error {
	c.mu.RLock()
	snapshot := make(map[string]model.CacheEntry, len(c.entries))
	for k, v := range c.entries {
		snapshot[k] = v
	}
	c.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal discovery cache: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write discovery cache: %w", err)
	}
	return nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
