// Package access computes, per request, which client applications the
// current user may see and in which order.
package access

import (
	"context"
	"net/http"
	"sort"
	"strings"

	slogctx "github.com/veqryn/slog-context"

	"github.com/pocket-id/portal/internal/issuer"
	"github.com/pocket-id/portal/internal/upstream"
)

// everyoneGroup is the display placeholder for unrestricted clients.
const everyoneGroup = "Everyone"

// App is a client application annotated with access metadata and
// derived display fields, ready to hand to the rendering layer. It is
// recomputed per request and never cached or persisted.
type App struct {
	upstream.OIDCClient

	ClientID     string   `json:"client_id"`
	Description  string   `json:"description"`
	Icon         string   `json:"icon,omitempty"`
	LogoURL      string   `json:"logoUrl,omitempty"`
	AccessGroups []string `json:"accessGroups"`
	Restricted   bool     `json:"restrictedAccess"`
}

// DetailsFetcher is the slice of the upstream gateway the resolver
// needs.
type DetailsFetcher interface {
	ClientDetails(ctx context.Context, headers http.Header, clientID string) (upstream.ClientDetails, error)
}

type Resolver struct {
	details   DetailsFetcher
	endpoints issuer.Endpoints
}

func NewResolver(details DetailsFetcher, endpoints issuer.Endpoints) *Resolver {
	return &Resolver{
		details:   details,
		endpoints: endpoints,
	}
}

// Resolve filters the client list down to what the user may see and
// sorts it by display name. A detail-fetch failure for one client never
// aborts the batch; that client degrades to unrestricted with unknown
// detail.
func (r *Resolver) Resolve(ctx context.Context, headers http.Header, clients []upstream.OIDCClient, userGroups []upstream.Group) []App {
	memberOf := make(map[string]struct{}, len(userGroups))
	for _, group := range userGroups {
		memberOf[group.ID] = struct{}{}
	}

	apps := make([]App, 0, len(clients))

	for _, client := range clients {
		app := r.transform(client)

		details, err := r.details.ClientDetails(ctx, headers, client.ID)
		if err != nil {
			slogctx.Warn(ctx, "Failed to fetch client details, treating client as unrestricted", "client_id", client.ID, "error", err)
		}

		hasAccess := true

		if len(details.AllowedUserGroups) > 0 {
			app.Restricted = true
			app.AccessGroups = make([]string, 0, len(details.AllowedUserGroups))

			hasAccess = false
			for _, group := range details.AllowedUserGroups {
				app.AccessGroups = append(app.AccessGroups, group.DisplayName())
				if _, ok := memberOf[group.ID]; ok {
					hasAccess = true
				}
			}
		}

		if hasAccess {
			apps = append(apps, app)
		}
	}

	sort.Slice(apps, func(i, j int) bool {
		return strings.ToLower(apps[i].Name) < strings.ToLower(apps[j].Name)
	})

	return apps
}

func (r *Resolver) transform(client upstream.OIDCClient) App {
	app := App{
		OIDCClient:   client,
		ClientID:     client.ID,
		Description:  "OAuth2 Client",
		AccessGroups: []string{everyoneGroup},
	}

	if client.IsPublic {
		app.Description = "OAuth2 Client (Public)"
	}

	if client.HasLogo {
		app.LogoURL = r.endpoints.ClientLogo(client.ID)
	} else {
		app.Icon = "📱"
	}

	return app
}
