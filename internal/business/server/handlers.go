// Package server exposes the portal's HTTP surface: the page-data
// endpoints consumed by the frontend, the login round trip with the
// identity provider, and the cache debug endpoint.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	slogctx "github.com/veqryn/slog-context"

	"github.com/pocket-id/portal/internal/access"
	"github.com/pocket-id/portal/internal/cache"
	"github.com/pocket-id/portal/internal/config"
	"github.com/pocket-id/portal/internal/issuer"
	"github.com/pocket-id/portal/internal/session"
	"github.com/pocket-id/portal/internal/upstream"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Handler bundles the dependencies of the portal routes. All of them
// are constructed once at startup and injected here.
type Handler struct {
	cfg       *config.Portal
	endpoints issuer.Endpoints
	store     *session.Store
	tokens    *session.TokenClient
	gateway   *upstream.Gateway
	resolver  *access.Resolver
	cache     *cache.Cache
}

func NewHandler(
	cfg *config.Portal,
	endpoints issuer.Endpoints,
	store *session.Store,
	tokens *session.TokenClient,
	gateway *upstream.Gateway,
	resolver *access.Resolver,
	upstreamCache *cache.Cache,
) *Handler {
	return &Handler{
		cfg:       cfg,
		endpoints: endpoints,
		store:     store,
		tokens:    tokens,
		gateway:   gateway,
		resolver:  resolver,
		cache:     upstreamCache,
	}
}

// appsPage is the payload of the home and dashboard routes. The page
// always renders; a failed upstream fetch degrades to an empty client
// list with the error attached.
type appsPage struct {
	Clients    any              `json:"clients"`
	UserGroups []upstream.Group `json:"userGroups"`
	Status     string           `json:"status"`
	Error      string           `json:"error,omitempty"`
}

type dashboardApp struct {
	access.App

	DashboardURL string `json:"dashboardUrl"`
}

type profilePage struct {
	User       upstream.User       `json:"user"`
	UserGroups []upstream.Group    `json:"userGroups"`
	Passkeys   []upstream.Passkey  `json:"passkeys"`
	APIKeys    upstream.APIKeyList `json:"apiKeys"`
	Status     string              `json:"status"`
	Error      string              `json:"error,omitempty"`
}

type settingsPage struct {
	UserGroups []upstream.Group `json:"userGroups"`
	AccountURL string           `json:"accountUrl"`
	Status     string           `json:"status"`
	Error      string           `json:"error,omitempty"`
}

// Home serves the page data for the application overview.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	apps, groups, err := h.resolvedApps(w, r)
	if err != nil {
		writeJSON(r.Context(), w, http.StatusOK, appsPage{
			Clients: []access.App{}, UserGroups: []upstream.Group{},
			Status: statusError, Error: "Failed to load applications",
		})
		return
	}

	writeJSON(r.Context(), w, http.StatusOK, appsPage{
		Clients: apps, UserGroups: groups, Status: statusSuccess,
	})
}

// Dashboard serves the same data as Home plus a per-client dashboard
// link.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	apps, groups, err := h.resolvedApps(w, r)
	if err != nil {
		writeJSON(r.Context(), w, http.StatusOK, appsPage{
			Clients: []dashboardApp{}, UserGroups: []upstream.Group{},
			Status: statusError, Error: "Failed to load applications",
		})
		return
	}

	enriched := make([]dashboardApp, 0, len(apps))
	for _, app := range apps {
		enriched = append(enriched, dashboardApp{
			App:          app,
			DashboardURL: "/dashboard/apps/" + url.PathEscape(app.ClientID),
		})
	}

	writeJSON(r.Context(), w, http.StatusOK, appsPage{
		Clients: enriched, UserGroups: groups, Status: statusSuccess,
	})
}

// resolvedApps fetches the client list, the caller's groups, and runs
// access resolution. A groups failure degrades to no memberships so
// unrestricted clients still render.
func (h *Handler) resolvedApps(w http.ResponseWriter, r *http.Request) ([]access.App, []upstream.Group, error) {
	ctx := r.Context()

	sess, headers, err := h.authenticate(ctx, w, r)
	if err != nil {
		return nil, nil, err
	}

	clients, err := h.gateway.Clients(ctx, headers)
	if err != nil {
		slogctx.Error(ctx, "Failed to fetch clients", "error", err)
		return nil, nil, err
	}

	groups, err := h.gateway.UserGroups(ctx, headers, sess.UserID)
	if err != nil {
		slogctx.Warn(ctx, "Failed to fetch user groups, continuing without memberships", "error", err)
		groups = nil
	}

	apps := h.resolver.Resolve(ctx, headers, clients, groups)
	if groups == nil {
		groups = []upstream.Group{}
	}

	return apps, groups, nil
}

// Profile serves the page data for the profile route: the provider's
// user record plus groups, passkeys and API keys. Secondary fetches
// degrade to empty lists so one failure never blanks the page.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sess, headers, err := h.authenticate(ctx, w, r)
	if err != nil {
		writeJSON(ctx, w, http.StatusOK, profilePage{
			UserGroups: []upstream.Group{}, Passkeys: []upstream.Passkey{},
			Status: statusError, Error: "Not authenticated",
		})
		return
	}

	page := profilePage{Status: statusSuccess}

	if page.User, err = h.gateway.CurrentUser(ctx, headers, sess.UserID); err != nil {
		slogctx.Warn(ctx, "Failed to fetch current user", "error", err)
		page.Status = statusError
		page.Error = "Failed to load user record"
	}

	if page.UserGroups, err = h.gateway.UserGroups(ctx, headers, sess.UserID); err != nil {
		slogctx.Warn(ctx, "Failed to fetch user groups", "error", err)
		page.UserGroups = []upstream.Group{}
	}

	if page.Passkeys, err = h.gateway.UserPasskeys(ctx, headers, sess.UserID); err != nil {
		slogctx.Warn(ctx, "Failed to fetch passkeys", "error", err)
		page.Passkeys = []upstream.Passkey{}
	}

	if page.APIKeys, err = h.gateway.APIKeys(ctx, headers); err != nil {
		slogctx.Warn(ctx, "Failed to fetch api keys", "error", err)
		page.APIKeys = upstream.APIKeyList{Data: []upstream.APIKey{}}
	}

	writeJSON(ctx, w, http.StatusOK, page)
}

// Settings serves the page data for the settings route.
func (h *Handler) Settings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	page := settingsPage{
		UserGroups: []upstream.Group{},
		AccountURL: h.endpoints.AccountManagement(),
		Status:     statusSuccess,
	}

	sess, headers, err := h.authenticate(ctx, w, r)
	if err != nil {
		page.Status = statusError
		page.Error = "Not authenticated"
		writeJSON(ctx, w, http.StatusOK, page)
		return
	}

	groups, err := h.gateway.UserGroups(ctx, headers, sess.UserID)
	if err != nil {
		slogctx.Warn(ctx, "Failed to fetch user groups", "error", err)
		groups = nil
	}
	if groups != nil {
		page.UserGroups = groups
	}

	writeJSON(ctx, w, http.StatusOK, page)
}

// Login redirects the browser to the provider's authorization endpoint.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	state := uuid.NewString()
	nonce := uuid.NewString()

	query := url.Values{}
	query.Set("response_type", "code")
	query.Set("client_id", h.cfg.ClientID)
	query.Set("redirect_uri", h.redirectURI())
	query.Set("scope", h.cfg.Scopes)
	query.Set("state", state)
	query.Set("nonce", nonce)

	slogctx.Info(ctx, "Redirecting to authorization endpoint", "state", state)

	http.Redirect(w, r, h.endpoints.Authorize()+"?"+query.Encode(), http.StatusFound)
}

// Callback completes the authorization code flow: exchange the code,
// resolve the user profile, persist the session cookies, then land the
// user on the home page.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	if errCode := query.Get("error"); errCode != "" {
		slogctx.Warn(ctx, "Authorization denied by provider", "error", errCode, "description", query.Get("error_description"))
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	code := query.Get("code")
	if code == "" {
		slogctx.Warn(ctx, "Callback without authorization code")
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	tokens, err := h.tokens.Exchange(ctx, code, h.redirectURI())
	if err != nil {
		slogctx.Error(ctx, "Failed to exchange authorization code", "error", err)
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	profile, err := h.tokens.Userinfo(ctx, tokens.AccessToken)
	if err != nil {
		slogctx.Warn(ctx, "Userinfo failed, decoding id token claims instead", "error", err)

		if tokens.IDToken != "" {
			profile, err = session.ProfileFromIDToken(tokens.IDToken)
		}
		if err != nil || profile == nil {
			slogctx.Error(ctx, "Could not resolve a user profile", "error", err)
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
	}

	if err := h.store.Persist(ctx, w, tokens, profile); err != nil {
		slogctx.Error(ctx, "Failed to persist session cookies", "error", err)
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	slogctx.Info(ctx, "User logged in", "user_id", profile.Subject)

	http.Redirect(w, r, "/", http.StatusFound)
}

// Logout clears the session and sends the browser to the provider's
// end-session endpoint. The identity cookie survives so the next login
// can greet the returning user; without an ID token we clear everything
// and fall back to the local login page.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := h.store.Decode(ctx, r)

	if sess.IDToken == "" {
		h.store.Clear(w, false)
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	h.store.Clear(w, true)

	slogctx.Info(ctx, "User logged out", "user_id", sess.UserID)

	http.Redirect(w, r, h.endpoints.EndSession(sess.IDToken, h.cfg.AppURL+"/login"), http.StatusFound)
}

// DebugCache reports or clears the upstream cache.
func (h *Handler) DebugCache(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	switch action := r.URL.Query().Get("action"); action {
	case "clear":
		h.cache.Flush()
		slogctx.Info(ctx, "Cache cleared via debug endpoint")
		writeJSON(ctx, w, http.StatusOK, map[string]string{"status": "cleared"})
	case "", "stats":
		writeJSON(ctx, w, http.StatusOK, h.cache.Stats())
	default:
		writeJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "unknown action: " + action})
	}
}

// authenticate resolves the caller's session and upstream auth headers.
// When the header derivation refreshed the tokens, the renewed cookies
// are written onto the response before any body.
func (h *Handler) authenticate(ctx context.Context, w http.ResponseWriter, r *http.Request) (session.Session, http.Header, error) {
	sess, err := session.FromContext(ctx)
	if err != nil {
		sess = h.store.Decode(ctx, r)
	}

	before := sess.AccessToken

	headers, err := h.store.AuthHeaders(ctx, &sess, "")
	if err != nil {
		return sess, nil, err
	}

	if sess.AccessToken != before {
		renewed := session.TokenResponse{
			AccessToken:  sess.AccessToken,
			RefreshToken: sess.RefreshToken,
			IDToken:      sess.IDToken,
			ExpiresAt:    sess.ExpiresAt,
		}
		if err := h.store.Persist(ctx, w, renewed, sess.Profile); err != nil {
			slogctx.Warn(ctx, "Failed to re-persist refreshed session", "error", err)
		}
	}

	return sess, headers, nil
}

func (h *Handler) redirectURI() string {
	return h.cfg.AppURL + "/callback"
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slogctx.Error(ctx, "Failed to encode response", "error", err)
	}
}
