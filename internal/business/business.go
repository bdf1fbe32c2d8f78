// Package business wires the portal together: configuration values are
// resolved, the long-lived components are constructed once, and the
// HTTP server is started with everything injected.
package business

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"

	"github.com/pocket-id/portal/internal/access"
	"github.com/pocket-id/portal/internal/business/server"
	"github.com/pocket-id/portal/internal/cache"
	"github.com/pocket-id/portal/internal/config"
	"github.com/pocket-id/portal/internal/issuer"
	"github.com/pocket-id/portal/internal/session"
	"github.com/pocket-id/portal/internal/upstream"
)

// upstreamTimeout bounds every call to the identity provider.
const upstreamTimeout = 15 * time.Second

// Main starts the portal HTTP server and blocks until the context is
// cancelled.
func Main(ctx context.Context, cfg *config.Config) error {
	handler, err := initHandler(cfg)
	if err != nil {
		return fmt.Errorf("initialising the portal: %w", err)
	}

	return server.StartHTTPServer(ctx, cfg, handler)
}

// initHandler resolves secrets and builds the component graph. All
// state lives in the returned handler; there are no package-level
// singletons.
func initHandler(cfg *config.Config) (*server.Handler, error) {
	if cfg.Portal.IssuerURL == "" {
		return nil, errors.New("portal.issuerURL must be configured")
	}
	if cfg.Portal.AppURL == "" {
		return nil, errors.New("portal.appURL must be configured")
	}

	clientSecret := ""
	if cfg.Portal.ClientSecret.Source != "" {
		value, err := commoncfg.LoadValueFromSourceRef(cfg.Portal.ClientSecret)
		if err != nil {
			return nil, fmt.Errorf("loading client secret: %w", err)
		}

		clientSecret = string(value)
	}

	apiKey := ""
	if cfg.Portal.APIKey.Source != "" {
		value, err := commoncfg.LoadValueFromSourceRef(cfg.Portal.APIKey)
		if err != nil {
			return nil, fmt.Errorf("loading api key: %w", err)
		}

		apiKey = string(value)
	}

	endpoints := issuer.NewEndpoints(cfg.Portal.IssuerURL)
	store := cache.New()
	httpClient := &http.Client{Timeout: upstreamTimeout}

	tokens := session.NewTokenClient(endpoints, cfg.Portal.ClientID, clientSecret, httpClient)
	sessions := session.NewStore(&cfg.Portal, tokens, apiKey)
	gateway := upstream.NewGateway(endpoints, httpClient, store)
	resolver := access.NewResolver(gateway, endpoints)

	return server.NewHandler(&cfg.Portal, endpoints, sessions, tokens, gateway, resolver, store), nil
}
