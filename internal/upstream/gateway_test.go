package upstream_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocket-id/portal/internal/cache"
	"github.com/pocket-id/portal/internal/issuer"
	"github.com/pocket-id/portal/internal/serviceerr"
	"github.com/pocket-id/portal/internal/upstream"
)

func newGateway(t *testing.T, handler http.Handler) (*upstream.Gateway, *httptest.Server, *cache.Cache) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store := cache.New()
	gw := upstream.NewGateway(issuer.NewEndpoints(server.URL), server.Client(), store)
	gw.SetRetryDelay(5 * time.Millisecond)

	return gw, server, store
}

func authHeaders() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer tok")
	return h
}

func TestGateway_Clients_CacheReadThrough(t *testing.T) {
	var calls atomic.Int32

	gw, _, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.Equal(t, "/api/oidc/clients", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		_, _ = w.Write([]byte(`{"data":[{"id":"c1","name":"Grafana"},{"id":"c2","name":"Wiki"}]}`))
	}))

	first, err := gw.Clients(context.Background(), authHeaders())
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "Grafana", first[0].Name)

	second, err := gw.Clients(context.Background(), authHeaders())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	assert.Equal(t, int32(1), calls.Load(), "second fetch must be served from cache")
}

func TestGateway_Clients_EmptyListNotCached(t *testing.T) {
	var calls atomic.Int32

	gw, _, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))

	for range 2 {
		clients, err := gw.Clients(context.Background(), authHeaders())
		require.NoError(t, err)
		assert.Empty(t, clients)
	}

	assert.Equal(t, int32(2), calls.Load())
}

func TestGateway_RateLimitRetrySucceeds(t *testing.T) {
	var calls atomic.Int32

	gw, _, store := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`[{"id":"g1","name":"eng"}]`))
	}))

	groups, err := gw.UserGroups(context.Background(), authHeaders(), "u1")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "g1", groups[0].ID)
	assert.Equal(t, int32(2), calls.Load())

	_, ok := store.Get(cache.UserGroupsKey("u1"))
	assert.True(t, ok, "successful retry result must be cached")
}

func TestGateway_RateLimitTwiceFails(t *testing.T) {
	var calls atomic.Int32

	gw, _, store := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := gw.UserGroups(context.Background(), authHeaders(), "u1")

	assert.True(t, serviceerr.IsUpstreamStatus(err, http.StatusTooManyRequests))
	assert.Equal(t, int32(2), calls.Load(), "exactly one retry")

	_, ok := store.Get(cache.UserGroupsKey("u1"))
	assert.False(t, ok, "errors must not be cached")
}

func TestGateway_UpstreamErrorCarriesStatus(t *testing.T) {
	gw, _, store := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := gw.Clients(context.Background(), authHeaders())

	assert.True(t, serviceerr.IsUpstreamStatus(err, http.StatusBadGateway))
	_, ok := store.Get(cache.ClientsKey())
	assert.False(t, ok)
}

func TestGateway_ClientDetails(t *testing.T) {
	var calls atomic.Int32

	gw, _, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.Equal(t, "/api/oidc/clients/c1", r.URL.Path)

		_, _ = w.Write([]byte(`{"id":"c1","name":"Grafana","hasLogo":true,"allowedUserGroups":[{"id":"g1","name":"eng","friendlyName":"Engineers"}]}`))
	}))

	details, err := gw.ClientDetails(context.Background(), authHeaders(), "c1")
	require.NoError(t, err)

	assert.Equal(t, "Grafana", details.Name)
	require.Len(t, details.AllowedUserGroups, 1)
	assert.Equal(t, "Engineers", details.AllowedUserGroups[0].DisplayName())

	_, err = gw.ClientDetails(context.Background(), authHeaders(), "c1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGateway_CurrentUser(t *testing.T) {
	gw, _, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/users/me", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"u1","username":"jamie","email":"jamie@example.com","isAdmin":true}`))
	}))

	user, err := gw.CurrentUser(context.Background(), authHeaders(), "u1")
	require.NoError(t, err)

	assert.Equal(t, "jamie", user.Username)
	assert.True(t, user.IsAdmin)
}

func TestGateway_APIKeys_LegacyShape(t *testing.T) {
	gw, _, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/api-keys", r.URL.Path)
		_, _ = w.Write([]byte(`{"api_keys":[{"id":"k1","name":"ci"}]}`))
	}))

	list, err := gw.APIKeys(context.Background(), authHeaders())
	require.NoError(t, err)

	require.Len(t, list.Data, 1)
	assert.Equal(t, "ci", list.Data[0].Name)
}

func TestGateway_APIKeys_PaginationPassthrough(t *testing.T) {
	gw, _, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"id":"k1","name":"ci"}],"pagination":{"totalItems":14,"currentPage":1}}`))
	}))

	list, err := gw.APIKeys(context.Background(), authHeaders())
	require.NoError(t, err)

	assert.JSONEq(t, `{"totalItems":14,"currentPage":1}`, string(list.Pagination))
}

func TestGateway_UserPasskeys(t *testing.T) {
	gw, _, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/webauthn/credentials", r.URL.Path)
		_, _ = w.Write([]byte(`[{"id":"pk1","name":"yubikey"}]`))
	}))

	passkeys, err := gw.UserPasskeys(context.Background(), authHeaders(), "u1")
	require.NoError(t, err)

	require.Len(t, passkeys, 1)
	assert.Equal(t, "yubikey", passkeys[0].Name)
}
