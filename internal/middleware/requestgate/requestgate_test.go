package requestgate_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocket-id/portal/internal/middleware/requestgate"
	"github.com/pocket-id/portal/internal/session"
)

func TestGate_IsPublic(t *testing.T) {
	gate := requestgate.New(nil)

	tests := []struct {
		path   string
		public bool
	}{
		{"/login", true},
		{"/login?returnUrl=%2F", true},
		{"/callback", true},
		{"/api/proxy/oidc/clients", true},
		{"/favicon.ico", true},
		{"/_app/immutable/chunk.js", true},
		{"/healthz", true},
		{"/", false},
		{"/dashboard", false},
		{"/profile", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			u, err := url.Parse(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.public, gate.IsPublic(u.Path))
		})
	}
}

func TestGate_PublicPathBypassesSession(t *testing.T) {
	gate := requestgate.New(nil)

	var called bool
	handler := gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true

		_, err := session.FromContext(r.Context())
		assert.Error(t, err, "public requests carry no session")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGate_PrivateUnauthenticatedRedirects(t *testing.T) {
	gate := requestgate.New(nil)

	handler := gate.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run for unauthenticated private requests")
	}))

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	// identity known, token material absent: still unauthenticated
	req.AddCookie(&http.Cookie{Name: session.IdentityCookieName, Value: "u1"})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?returnUrl=%2Fdashboard", rec.Header().Get("Location"))
}

func TestGate_PrivateAuthenticatedProceeds(t *testing.T) {
	gate := requestgate.New(nil)

	var gotSession session.Session
	handler := gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := session.FromContext(r.Context())
		require.NoError(t, err)
		gotSession = sess
	}))

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: session.IdentityCookieName, Value: "u1"})
	req.AddCookie(&http.Cookie{Name: session.ProfileCookieName, Value: url.QueryEscape(`{"sub":"u1","name":"Jamie"}`)})
	req.AddCookie(&http.Cookie{Name: session.TokenCookieName, Value: url.QueryEscape(`{"access_token":"tok","expires_in":3600}`)})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", gotSession.UserID)
	assert.Equal(t, "tok", gotSession.AccessToken)
}

func TestGate_MalformedCookiesResolveToUnauthenticated(t *testing.T) {
	gate := requestgate.New(nil)

	handler := gate.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/settings", nil)
	req.AddCookie(&http.Cookie{Name: session.ProfileCookieName, Value: "%7Bgarbage"})
	req.AddCookie(&http.Cookie{Name: session.TokenCookieName, Value: "also-garbage"})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?returnUrl=%2Fsettings", rec.Header().Get("Location"))
}

func TestGate_CustomPublicRoutes(t *testing.T) {
	gate := requestgate.New([]string{"/healthz"})

	assert.True(t, gate.IsPublic("/healthz"))
	assert.False(t, gate.IsPublic("/login"))
}
