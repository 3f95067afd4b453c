// Package traceinfo implements the cached trace.info summary service.
package traceinfo

import (
	"sync"
	"time"

	"github.com/matgreaves/tracequeryd/internal/store"
)

// CacheKey is the tuple used to invalidate a cached entry: it must match
// current file metadata for the cached value to be considered valid.
type CacheKey struct {
	ManifestModTime time.Time
	ManifestSize    int64
	EventsModTime   time.Time
	EventsSize      int64
}

func keyFromMeta(manifestMeta, eventsMeta store.FileMeta) CacheKey {
	return CacheKey{
		ManifestModTime: manifestMeta.ModTime,
		ManifestSize:    manifestMeta.Size,
		EventsModTime:   eventsMeta.ModTime,
		EventsSize:      eventsMeta.Size,
	}
}

type entry struct {
	key        CacheKey
	value      Summary
	insertedAt time.Time
}

// Cache is a bounded trace_id -> Summary cache with mtime/size validation
// and a TTL: no lock is held across I/O, readers that observe a stale or
// missing key proceed to reload unlocked, and concurrent reloaders race
// to insert with the later insert winning. Capacity 0 disables caching
// entirely.
//
// The concurrency shape mirrors a read/rebuild-unlocked/insert-briefly
// pattern rather than holding a single lock for the request's duration.
type Cache struct {
	capacity int
	ttl      time.Duration

	mu    sync.RWMutex
	byID  map[string]*entry
	order []string // insertion order, oldest first, for FIFO eviction
}

// NewCache constructs a Cache. capacity and ttl are injected so tests can
// build fresh, isolated instances.
func NewCache(capacity int, ttl time.Duration) *Cache {
	return &Cache{
		capacity: capacity,
		ttl:      ttl,
		byID:     make(map[string]*entry),
	}
}

// Lookup returns a cached Summary for traceID if it is present and still
// valid against the given key and TTL. No I/O is performed here; the
// caller has already stat'd the files to produce key.
func (c *Cache) Lookup(traceID string, key CacheKey) (Summary, bool) {
	if c.capacity <= 0 {
		return Summary{}, false
	}
	c.mu.RLock()
	e, ok := c.byID[traceID]
	c.mu.RUnlock()
	if !ok {
		return Summary{}, false
	}
	if e.key != key {
		return Summary{}, false
	}
	if c.ttl > 0 && time.Since(e.insertedAt) > c.ttl {
		return Summary{}, false
	}
	return e.value, true
}

// Insert stores a freshly computed Summary. If the cache is at capacity
// and traceID is not already present, the oldest entry is evicted first.
// Concurrent inserts for the same traceID race harmlessly; whichever
// insert runs last wins, which is acceptable because the value is a
// deterministic function of the key.
func (c *Cache) Insert(traceID string, key CacheKey, value Summary) {
	if c.capacity <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.byID[traceID]; !exists {
		for len(c.byID) >= c.capacity && len(c.order) > 0 {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.byID, oldest)
		}
		c.order = append(c.order, traceID)
	}
	c.byID[traceID] = &entry{key: key, value: value, insertedAt: time.Now()}
}
