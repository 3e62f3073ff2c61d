package authz

import (
	"sync"
	"time"
)

// DefaultCacheTTL bounds how long a resolved permission set is served
// without recomputation. It is also the maximum staleness after a
// dynamic role edit that reaches no proactive invalidation.
const DefaultCacheTTL = time.Hour

type cacheEntry struct {
	permissions ModulePermissions
	timestamp   time.Time
}

// Cache stores resolved permission sets keyed by user id. Expiry is
// lazy: an entry older than the TTL is deleted on the read that finds
// it; there is no background sweep. Safe for concurrent use. One
// instance is constructed per service and injected where needed.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

// NewCache constructs a Cache. A non-positive ttl falls back to
// DefaultCacheTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

// TTL exposes the configured entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Set stores permissions for the user, stamping the entry with the
// current time. The value is cloned on the way in.
func (c *Cache) Set(userID string, permissions ModulePermissions) {
	c.mu.Lock()
	c.entries[userID] = cacheEntry{
		permissions: permissions.Clone(),
		timestamp:   time.Now(),
	}
	c.mu.Unlock()
}

// Get returns the cached permissions for the user, or a miss when the
// entry is absent or older than the TTL. An expired entry is removed. A
// miss is not an error; the caller recomputes via the resolver.
func (c *Cache) Get(userID string) (ModulePermissions, bool) {
	c.mu.RLock()
	entry, ok := c.entries[userID]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.expired(entry) {
		c.removeExpired(userID)
		return nil, false
	}
	return entry.permissions.Clone(), true
}

// Has reports whether a live entry exists for the user, applying the
// same lazy expiry as Get.
func (c *Cache) Has(userID string) bool {
	_, ok := c.Get(userID)
	return ok
}

// Refresh re-stamps the user's entry without recomputation, extending
// its lifetime by a full TTL. A missing or already expired entry is
// left alone.
func (c *Cache) Refresh(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[userID]
	if !ok || c.expired(entry) {
		return false
	}
	entry.timestamp = time.Now()
	c.entries[userID] = entry
	return true
}

// Remove deletes the user's entry.
func (c *Cache) Remove(userID string) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Len reports the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) expired(entry cacheEntry) bool {
	return time.Since(entry.timestamp) > c.ttl
}

// removeExpired deletes userID only if its entry is still expired; a
// concurrent Set between the read and this write must win.
func (c *Cache) removeExpired(userID string) {
	c.mu.Lock()
	if entry, ok := c.entries[userID]; ok && c.expired(entry) {
		delete(c.entries, userID)
	}
	c.mu.Unlock()
}
