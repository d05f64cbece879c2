// Package dedup provides a bounded, TTL-based in-process cache that lets a
// ConsumerWorker suppress records it has already forwarded to the
// downstream scheduler -- a cheap first line of defense in front of
// whatever deduplication the scheduler's own consumer does.
package dedup

import (
	"crypto/sha256"
	"encoding/json"
	"sync"
	"time"

	"github.com/grafana/sourcewatch/internal/projector"
)

// Cache is a fixed-capacity, TTL-expiring set of envelope fingerprints. Safe
// for concurrent use.
type Cache struct {
	ttl        time.Duration
	maxEntries int

	mu      sync.Mutex
	entries map[string]time.Time
	order   []string
}

// NewCache builds a Cache that remembers a fingerprint for ttl, evicting the
// oldest entry once len(entries) exceeds maxEntries.
func NewCache(ttl time.Duration, maxEntries int) *Cache {
	return &Cache{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]time.Time),
	}
}

// Seen reports whether an equivalent (source, name, envelope) triple was
// already seen within the TTL window, recording it if not. A single
// envelope therefore triggers at most one Schedule call per TTL window,
// unless its entry is evicted early because the cache is over capacity.
func (c *Cache) Seen(source, name string, envelope projector.Envelope) bool {
	key := fingerprint(source, name, envelope)
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if expiry, ok := c.entries[key]; ok && now.Before(expiry) {
		return true
	}

	c.entries[key] = now.Add(c.ttl)
	c.order = append(c.order, key)
	c.evictExpiredLocked(now)
	for len(c.entries) > c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	return false
}

// evictExpiredLocked drops entries whose TTL has passed. Callers must hold
// c.mu.
func (c *Cache) evictExpiredLocked(now time.Time) {
	live := c.order[:0]
	for _, key := range c.order {
		if expiry, ok := c.entries[key]; ok && now.Before(expiry) {
			live = append(live, key)
			continue
		}
		delete(c.entries, key)
	}
	c.order = live
}

// fingerprint deterministically hashes the triple that identifies a
// record for deduplication purposes. Envelope keys are sorted by
// encoding/json's map key ordering, which is always alphabetical.
func fingerprint(source, name string, envelope projector.Envelope) string {
	h := sha256.New()
	h.Write([]byte(source))
	h.Write([]byte{0})
	h.Write([]byte(name))
	h.Write([]byte{0})
	// json.Marshal of a map[string]any sorts keys alphabetically, giving a
	// stable byte representation regardless of envelope construction order.
	if b, err := json.Marshal(envelope); err == nil {
		h.Write(b)
	}
	return string(h.Sum(nil))
}
