// Package cache holds the process-wide TTL cache that shields the
// identity provider from repeated lookups. Entries expire lazily on
// read; there is no background sweeper.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// TTLs per resource kind. Client details and group memberships change
// rarely; the client list, passkeys and API keys a bit more often.
const (
	ClientsTTL       = 5 * time.Minute
	ClientDetailsTTL = 10 * time.Minute
	UserGroupsTTL    = 10 * time.Minute
	CurrentUserTTL   = 5 * time.Minute
	PasskeysTTL      = 5 * time.Minute
	APIKeysTTL       = 5 * time.Minute
)

// Stats is the payload of the cache debug endpoint.
type Stats struct {
	Entries int      `json:"entries"`
	Keys    []string `json:"keys"`
}

type Cache struct {
	store *gocache.Cache
}

// New creates an empty cache. The cleanup interval is zero so expired
// entries are only removed when read, matching the lazy-eviction
// contract.
func New() *Cache {
	return &Cache{
		store: gocache.New(gocache.NoExpiration, 0),
	}
}

// Get returns the value for key, or ok=false when the key is absent or
// its TTL has passed. An expired entry is removed as a side effect.
func (c *Cache) Get(key string) (any, bool) {
	value, expiry, ok := c.store.GetWithExpiration(key)
	if !ok {
		return nil, false
	}

	if !expiry.IsZero() && time.Now().After(expiry) {
		c.store.Delete(key)
		return nil, false
	}

	return value, true
}

// Set stores value under key for the given TTL, overwriting any
// previous entry.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.store.Set(key, value, ttl)
}

func (c *Cache) Delete(key string) {
	c.store.Delete(key)
}

func (c *Cache) Flush() {
	c.store.Flush()
}

func (c *Cache) Stats() Stats {
	items := c.store.Items()

	keys := make([]string, 0, len(items))
	for key := range items {
		keys = append(keys, key)
	}

	return Stats{
		Entries: len(keys),
		Keys:    keys,
	}
}
