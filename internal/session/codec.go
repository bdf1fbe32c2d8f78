package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	slogctx "github.com/veqryn/slog-context"
)

// Cookie names are part of the browser contract and must not change.
const (
	IdentityCookieName = "user_id"
	ProfileCookieName  = "auth_user"
	TokenCookieName    = "auth_token"
)

// UserIDFromCookies derives the canonical user identifier. The
// long-lived user_id cookie is the fast path; the profile cookie's sub
// claim is the fallback. Returns "" when identity is unknown.
func UserIDFromCookies(ctx context.Context, r *http.Request) string {
	if c, err := r.Cookie(IdentityCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	profile, ok := decodeCookieJSON[Profile](ctx, r, ProfileCookieName)
	if !ok {
		return ""
	}

	return profile.Subject
}

// Decode reconstructs the session from the request cookies. Malformed
// cookie data is logged and treated as absent, never surfaced as an
// error: the worst outcome of a bad cookie is an unauthenticated
// session.
func Decode(ctx context.Context, r *http.Request) Session {
	sess := Session{UserID: UserIDFromCookies(ctx, r)}

	if profile, ok := decodeCookieJSON[Profile](ctx, r, ProfileCookieName); ok {
		sess.Profile = &profile
	}

	if tokens, ok := decodeCookieJSON[TokenResponse](ctx, r, TokenCookieName); ok {
		sess.AccessToken = tokens.AccessToken
		sess.RefreshToken = tokens.RefreshToken
		sess.IDToken = tokens.IDToken
		sess.ExpiresAt = tokens.ExpiresAt
		if sess.ExpiresAt.IsZero() && tokens.ExpiresIn > 0 {
			sess.ExpiresAt = time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second)
		}
	}

	return sess
}

// encodeCookieValue serialises v for transport in a cookie. JSON is not
// cookie-safe, so the payload is percent-encoded the same way the
// browser side does.
func encodeCookieValue(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}

	return url.QueryEscape(string(raw)), nil
}

func decodeCookieJSON[T any](ctx context.Context, r *http.Request, name string) (T, bool) {
	var out T

	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return out, false
	}

	raw := c.Value
	if unescaped, err := url.QueryUnescape(raw); err == nil {
		raw = unescaped
	}

	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		slogctx.Warn(ctx, "Failed to parse auth cookie, treating as absent", "cookie", name, "error", err)
		return out, false
	}

	return out, true
}
