package session

import (
	"context"
	"net/http"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/pocket-id/portal/internal/config"
	"github.com/pocket-id/portal/internal/serviceerr"
)

// Store materialises sessions from cookies and writes them back. It
// owns the cookie templates and the auth-header derivation, including
// the single refresh attempt when only a refresh token is left.
type Store struct {
	cfg    *config.Portal
	tokens *TokenClient
	apiKey string
}

func NewStore(cfg *config.Portal, tokens *TokenClient, apiKey string) *Store {
	return &Store{
		cfg:    cfg,
		tokens: tokens,
		apiKey: apiKey,
	}
}

func (s *Store) Decode(ctx context.Context, r *http.Request) Session {
	return Decode(ctx, r)
}

// Persist writes the three auth cookies: the long-lived identity
// cookie, and the profile and token cookies scoped to the token
// lifetime.
func (s *Store) Persist(ctx context.Context, w http.ResponseWriter, tokens TokenResponse, profile *Profile) error {
	tokenTTL := s.cfg.DefaultTokenTTL
	if tokens.ExpiresIn > 0 {
		tokenTTL = time.Duration(tokens.ExpiresIn) * time.Second
	}
	if tokens.ExpiresAt.IsZero() {
		tokens.ExpiresAt = time.Now().Add(tokenTTL)
	}

	tokenValue, err := encodeCookieValue(tokens)
	if err != nil {
		return err
	}

	maxAge := int(tokenTTL / time.Second)

	tokenCookie := s.cfg.TokenCookie.ToCookie(tokenValue)
	tokenCookie.MaxAge = maxAge
	http.SetCookie(w, tokenCookie)

	if profile != nil {
		profileValue, err := encodeCookieValue(profile)
		if err != nil {
			return err
		}

		profileCookie := s.cfg.ProfileCookie.ToCookie(profileValue)
		profileCookie.MaxAge = maxAge
		http.SetCookie(w, profileCookie)
	}

	if profile != nil && profile.Subject != "" {
		http.SetCookie(w, s.cfg.IdentityCookie.ToCookie(profile.Subject))
		slogctx.Debug(ctx, "Persisted session cookies", "user_id", profile.Subject)
	}

	return nil
}

// Clear removes the profile and token cookies. The identity cookie is
// kept when preserveIdentity is true so the next login can greet the
// returning user.
func (s *Store) Clear(w http.ResponseWriter, preserveIdentity bool) {
	http.SetCookie(w, s.cfg.ProfileCookie.Expired())
	http.SetCookie(w, s.cfg.TokenCookie.Expired())

	if !preserveIdentity {
		http.SetCookie(w, s.cfg.IdentityCookie.Expired())
	}
}

// AuthHeaders derives the headers for upstream API calls. Precedence:
// configured API key, explicitly supplied token, the session's access
// token, and finally one refresh attempt with the session's refresh
// token. The refreshed tokens are written back into sess so the caller
// can re-persist them.
func (s *Store) AuthHeaders(ctx context.Context, sess *Session, explicitToken string) (http.Header, error) {
	headers := http.Header{}
	headers.Set("Accept", "*/*")
	headers.Set("Content-Type", "application/json")

	if s.apiKey != "" {
		headers.Set("X-API-Key", s.apiKey)
		return headers, nil
	}

	if explicitToken != "" {
		headers.Set("Authorization", "Bearer "+explicitToken)
		return headers, nil
	}

	if sess != nil && sess.AccessToken != "" && (sess.ExpiresAt.IsZero() || time.Now().Before(sess.ExpiresAt)) {
		headers.Set("Authorization", "Bearer "+sess.AccessToken)
		return headers, nil
	}

	if sess != nil && sess.RefreshToken != "" && s.tokens != nil {
		tokens, err := s.tokens.Refresh(ctx, sess.RefreshToken)
		if err != nil {
			slogctx.Warn(ctx, "Failed to refresh access token", "error", err)
			return http.Header{}, serviceerr.ErrNoCredentials
		}

		sess.AccessToken = tokens.AccessToken
		sess.RefreshToken = tokens.RefreshToken
		sess.ExpiresAt = tokens.ExpiresAt
		if tokens.IDToken != "" {
			sess.IDToken = tokens.IDToken
		}

		headers.Set("Authorization", "Bearer "+tokens.AccessToken)
		return headers, nil
	}

	return http.Header{}, serviceerr.ErrNoCredentials
}
