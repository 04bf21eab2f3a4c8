// Package profilecache is the Profile Cache (component F): a
// process-wide, mutex-guarded map from team key to the upstream
// external id last resolved for it, snapshotted to disk as JSON via
// internal/fsio so repeated runs avoid re-resolving a team that
// already has a verified external id. A cached id answering 404 on
// next use is evicted rather than retried forever.
package profilecache

import (
	"os"
	"sync"
	"time"

	"github.com/greenbier/divrank/internal/fsio"
	"github.com/greenbier/divrank/internal/metrics"
	"github.com/greenbier/divrank/internal/models"
)

// Cache is safe for concurrent use by the worker pool in
// internal/scrape.
type Cache struct {
	mu      sync.RWMutex
	path    string
	entries map[string]models.ProfileCacheEntry
	dirty   bool
}

// Load reads a profile cache JSON snapshot from path, or starts empty
// if the file does not exist yet.
func Load(path string) (*Cache, error) {
	c := &Cache{path: path, entries: make(map[string]models.ProfileCacheEntry)}

	if err := fsio.ReadJSON(path, &c.entries); err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, err
	}
	return c, nil
}

// Get returns the cached external id for teamKey, if present.
func (c *Cache) Get(teamKey string) (models.ProfileCacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[teamKey]
	if ok {
		metrics.ProfileCacheHitsTotal.Inc()
	} else {
		metrics.ProfileCacheMissesTotal.Inc()
	}
	return e, ok
}

// Put records a verified external id for teamKey.
func (c *Cache) Put(teamKey, externalID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[teamKey] = models.ProfileCacheEntry{
		ExternalID:     externalID,
		LastVerifiedAt: time.Now().UTC(),
	}
	c.dirty = true
}

// Invalidate removes a cache entry that answered 404 on reuse, so the
// next run resolves it fresh instead of handing out a dead link
// forever.
func (c *Cache) Invalidate(teamKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[teamKey]; ok {
		delete(c.entries, teamKey)
		c.dirty = true
		metrics.ProfileCacheInvalidationsTotal.Inc()
	}
}

// Flush writes the cache to disk atomically if it has changed since
// the last Flush. Safe to call unconditionally at the end of a run.
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}
	if err := fsio.WriteJSONAtomic(c.path, c.entries); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

// Len reports the number of cached entries, used in run summaries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
