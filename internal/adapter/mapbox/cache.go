package mapbox

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/lunch-locator-service/internal/domain"
	"github.com/couchcryptid/lunch-locator-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// CachedSearcher wraps a PlaceSearcher with an in-memory LRU cache whose
// entries expire after a fixed TTL.
type CachedSearcher struct {
	inner   domain.PlaceSearcher
	cache   *lruCache[[]domain.Place]
	metrics *observability.Metrics
}

// NewCachedSearcher creates a cache decorator around a searcher.
func NewCachedSearcher(inner domain.PlaceSearcher, maxEntries int, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *CachedSearcher {
	return &CachedSearcher{
		inner:   inner,
		cache:   newLRUCache[[]domain.Place](maxEntries, ttl, clock),
		metrics: metrics,
	}
}

// SearchPlaces serves repeated searches from the cache. Origins are rounded
// to roughly 100m so small location jitter still hits.
func (c *CachedSearcher) SearchPlaces(ctx context.Context, query domain.SearchQuery, origin domain.Point) ([]domain.Place, error) {
	key := fmt.Sprintf("%s|%.3f,%.3f", strings.ToLower(string(query)), origin.Lat, origin.Lon)
	places, result := c.cache.get(key)
	c.observe(result)
	if result == cacheHit {
		return places, nil
	}

	places, err := c.inner.SearchPlaces(ctx, query, origin)
	if err != nil {
		return nil, err
	}
	// Only cache non-empty results so "nothing found" can be retried.
	if len(places) > 0 {
		c.cache.put(key, places)
	}
	return places, nil
}

func (c *CachedSearcher) observe(result string) {
	if c.metrics != nil {
		c.metrics.SearchCache.WithLabelValues(result).Inc()
	}
}

const (
	cacheHit     = "hit"
	cacheMiss    = "miss"
	cacheExpired = "expired"
)

// lruCache is a thread-safe LRU cache with per-entry expiry.
type lruCache[V any] struct {
	maxEntries int
	ttl        time.Duration
	clock      clockwork.Clock

	mu      sync.Mutex
	entries map[string]*entry[V]
	head    *entry[V] // most recently used
	tail    *entry[V] // least recently used
}

type entry[V any] struct {
	key     string
	value   V
	expires time.Time
	prev    *entry[V]
	next    *entry[V]
}

func newLRUCache[V any](maxEntries int, ttl time.Duration, clock clockwork.Clock) *lruCache[V] {
	return &lruCache[V]{
		maxEntries: maxEntries,
		ttl:        ttl,
		clock:      clock,
		entries:    make(map[string]*entry[V]),
	}
}

func (c *lruCache[V]) get(key string) (V, string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, cacheMiss
	}
	if !c.clock.Now().Before(e.expires) {
		delete(c.entries, key)
		c.remove(e)
		return zero, cacheExpired
	}
	c.moveToFront(e)
	return e.value, cacheHit
}

func (c *lruCache[V]) put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.clock.Now().Add(c.ttl)
	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expires = expires
		c.moveToFront(e)
		return
	}

	e := &entry[V]{key: key, value: value, expires: expires}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache[V]) moveToFront(e *entry[V]) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache[V]) addToFront(e *entry[V]) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache[V]) remove(e *entry[V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache[V]) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
