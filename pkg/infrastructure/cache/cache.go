package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const (
	// DefaultTTL is how long an entry is served when no TTL is configured
	DefaultTTL = 30 * time.Second
	// DefaultMaxEntries bounds the cache size
	DefaultMaxEntries = 10000
)

// StoreTag marks entries computed from store-wide queries
const StoreTag = "store"

// PodTag returns the tag for entries computed from one pod
func PodTag(barcode string) string {
	return "pod:" + barcode
}

type entry struct {
	value []byte
	tags  []string
}

// ResponseCache is a process-scoped TTL cache of encoded responses. Entries
// carry tags so writers can invalidate everything derived from a pod.
type ResponseCache struct {
	items *ttlcache.Cache[string, entry]

	byTag map[string]map[string]struct{}
	mutex sync.Mutex
}

// NewResponseCache creates a cache; zero values select the defaults. Once
// full, the least recently used entry is evicted.
func NewResponseCache(ttl time.Duration, maxEntries int) *ResponseCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	c := &ResponseCache{
		items: ttlcache.New[string, entry](
			ttlcache.WithTTL[string, entry](ttl),
			ttlcache.WithCapacity[string, entry](uint64(maxEntries)),
			ttlcache.WithDisableTouchOnHit[string, entry](),
		),
		byTag: make(map[string]map[string]struct{}),
	}
	c.items.OnEviction(func(_ context.Context, _ ttlcache.EvictionReason, item *ttlcache.Item[string, entry]) {
		c.untag(item.Key(), item.Value().tags)
	})
	return c
}

// Start runs the expired-entry cleaner until Stop is called
func (c *ResponseCache) Start() {
	c.items.Start()
}

// Stop ends the cleaner started by Start
func (c *ResponseCache) Stop() {
	c.items.Stop()
}

// Get returns a live entry
func (c *ResponseCache) Get(key string) ([]byte, bool) {
	item := c.items.Get(key)
	if item == nil {
		return nil, false
	}
	return item.Value().value, true
}

// Set stores value under key for the cache TTL
func (c *ResponseCache) Set(key string, value []byte, tags ...string) {
	c.items.Set(key, entry{value: value, tags: tags}, ttlcache.DefaultTTL)

	c.mutex.Lock()
	defer c.mutex.Unlock()
	for _, tag := range tags {
		keys, ok := c.byTag[tag]
		if !ok {
			keys = make(map[string]struct{})
			c.byTag[tag] = keys
		}
		keys[key] = struct{}{}
	}
}

// InvalidateTag drops every entry carrying tag and returns how many were dropped
func (c *ResponseCache) InvalidateTag(tag string) int {
	c.mutex.Lock()
	keys := c.byTag[tag]
	delete(c.byTag, tag)
	c.mutex.Unlock()

	// eviction hooks take the mutex, so deletes run without it
	dropped := 0
	for key := range keys {
		if c.items.Has(key) {
			dropped++
		}
		c.items.Delete(key)
	}
	return dropped
}

// Clear drops every entry
func (c *ResponseCache) Clear() {
	c.items.DeleteAll()

	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.byTag = make(map[string]map[string]struct{})
}

// Len returns the number of stored entries
func (c *ResponseCache) Len() int {
	return c.items.Len()
}

// Stats returns hit and miss counters
func (c *ResponseCache) Stats() (hits, misses int64) {
	metrics := c.items.Metrics()
	return int64(metrics.Hits), int64(metrics.Misses)
}

func (c *ResponseCache) untag(key string, tags []string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for _, tag := range tags {
		if keys, ok := c.byTag[tag]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(c.byTag, tag)
			}
		}
	}
}
