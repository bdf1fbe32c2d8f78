// Package requestgate classifies every inbound request as public or
// private before any handler runs, and redirects unauthenticated access
// to private paths.
package requestgate

import (
	"net/http"
	"net/url"
	"strings"

	slogctx "github.com/veqryn/slog-context"

	"github.com/pocket-id/portal/internal/session"
)

const loginPath = "/login"

// DefaultPublicRoutes are the path prefixes exempt from session
// validation when none are configured.
var DefaultPublicRoutes = []string{"/login", "/callback", "/api", "/favicon", "/_app", "/healthz"}

type Gate struct {
	publicRoutes []string
}

func New(publicRoutes []string) *Gate {
	if len(publicRoutes) == 0 {
		publicRoutes = DefaultPublicRoutes
	}

	return &Gate{publicRoutes: publicRoutes}
}

// IsPublic reports whether the path bypasses all session logic.
func (g *Gate) IsPublic(path string) bool {
	for _, route := range g.publicRoutes {
		if strings.HasPrefix(path, route) {
			return true
		}
	}

	return false
}

// Middleware decodes the session for private paths and attaches it to
// the request context. Anything that goes wrong during decoding
// resolves to "unauthenticated", never to a failed request.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.IsPublic(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		sess := session.Decode(ctx, r)

		if !sess.IsAuthenticated() {
			slogctx.Info(ctx, "Redirecting unauthenticated user to login", "path", r.URL.Path, "known_user", sess.UserID != "")
			http.Redirect(w, r, loginPath+"?returnUrl="+url.QueryEscape(r.URL.Path), http.StatusFound)
			return
		}

		next.ServeHTTP(w, r.WithContext(session.WithSession(ctx, sess)))
	})
}
