package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocket-id/portal/internal/cache"
)

func TestCache_SetGet(t *testing.T) {
	c := cache.New()

	c.Set("key", "value", time.Minute)

	got, ok := c.Get("key")
	require.True(t, ok)
	assert.Equal(t, "value", got)
}

func TestCache_GetMissing(t *testing.T) {
	c := cache.New()

	_, ok := c.Get("nope")
	assert.False(t, ok)
}

func TestCache_ExpiredEntryIsAbsent(t *testing.T) {
	c := cache.New()

	c.Set("key", "value", 10*time.Millisecond)
	time.Sleep(25 * time.Millisecond)

	_, ok := c.Get("key")
	assert.False(t, ok)

	// eviction is idempotent
	_, ok = c.Get("key")
	assert.False(t, ok)
}

func TestCache_SetOverwrites(t *testing.T) {
	c := cache.New()

	c.Set("key", "old", time.Minute)
	c.Set("key", "new", time.Minute)

	got, ok := c.Get("key")
	require.True(t, ok)
	assert.Equal(t, "new", got)
}

func TestCache_Delete(t *testing.T) {
	c := cache.New()

	c.Set("key", "value", time.Minute)
	c.Delete("key")

	_, ok := c.Get("key")
	assert.False(t, ok)
}

func TestCache_Flush(t *testing.T) {
	c := cache.New()

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)
	c.Flush()

	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestCache_Stats(t *testing.T) {
	c := cache.New()

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)

	stats := c.Stats()
	assert.Equal(t, 2, stats.Entries)
	assert.ElementsMatch(t, []string{"a", "b"}, stats.Keys)
}

func TestKeys_NamespacedByIdentity(t *testing.T) {
	assert.Equal(t, "oidc_clients", cache.ClientsKey())
	assert.Equal(t, "client_details_c1", cache.ClientDetailsKey("c1"))
	assert.Equal(t, "user_groups_u1", cache.UserGroupsKey("u1"))
	assert.Equal(t, "current_user_u1", cache.CurrentUserKey("u1"))
	assert.Equal(t, "user_passkeys_u1", cache.PasskeysKey("u1"))
	assert.Equal(t, "user_api_keys", cache.APIKeysKey())

	assert.NotEqual(t, cache.UserGroupsKey("u1"), cache.UserGroupsKey("u2"))
}
