package session

import (
	"sync"
	"time"
)

// ContactCacheMaxEntries is the soft purge threshold of §4.6/§5.
const ContactCacheMaxEntries = 500

type cacheEntry struct {
	contactID string // empty means "resolved to nothing" (cached failure/duplicate)
	expiresAt time.Time
}

// ContactCache maps (sessionId, jid) -> (contactId, expiresAt), in-memory
// only, with LRU-by-expiry eviction when it grows past ContactCacheMaxEntries.
type ContactCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewContactCache returns an empty cache.
func NewContactCache() *ContactCache {
	return &ContactCache{entries: map[string]cacheEntry{}}
}

// Get returns (contactID, true) on a live hit; expired entries are treated as a miss.
func (c *ContactCache) Get(jid string, now time.Time) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[jid]
	if !ok || now.After(e.expiresAt) {
		return "", false
	}
	return e.contactID, true
}

// Put stores contactID (possibly empty, for a cached failure/duplicate) with
// the given TTL, then soft-purges the oldest-expiring entries if over capacity.
func (c *ContactCache) Put(jid, contactID string, ttl time.Duration, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[jid] = cacheEntry{contactID: contactID, expiresAt: now.Add(ttl)}

	if len(c.entries) <= ContactCacheMaxEntries {
		return
	}
	c.purgeOldestLocked()
}

// purgeOldestLocked evicts entries by ascending expiry until back at capacity.
// Callers must hold c.mu.
func (c *ContactCache) purgeOldestLocked() {
	type kv struct {
		jid string
		exp time.Time
	}
	all := make([]kv, 0, len(c.entries))
	for jid, e := range c.entries {
		all = append(all, kv{jid, e.expiresAt})
	}
	for len(all) > ContactCacheMaxEntries {
		oldestIdx := 0
		for i, e := range all {
			if e.exp.Before(all[oldestIdx].exp) {
				oldestIdx = i
			}
		}
		delete(c.entries, all[oldestIdx].jid)
		all = append(all[:oldestIdx], all[oldestIdx+1:]...)
	}
}

// Len reports the current entry count, for tests/diagnostics.
func (c *ContactCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
