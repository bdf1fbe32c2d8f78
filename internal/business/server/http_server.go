package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/samber/oops"

	slogctx "github.com/veqryn/slog-context"

	"github.com/pocket-id/portal/internal/config"
	"github.com/pocket-id/portal/internal/middleware/requestgate"
)

// createHTTPServer assembles the portal router: telemetry first, then
// the request gate, then the page and auth routes.
func createHTTPServer(_ context.Context, cfg *config.Config, handler *Handler) *http.Server {
	gate := requestgate.New(cfg.Portal.PublicRoutes)

	router := chi.NewRouter()
	router.Use(newTelemetryMiddleware(cfg))
	router.Use(gate.Middleware)

	router.Get("/", handler.Home)
	router.Get("/dashboard", handler.Dashboard)
	router.Get("/profile", handler.Profile)
	router.Get("/settings", handler.Settings)
	router.Get("/login", handler.Login)
	router.Get("/callback", handler.Callback)
	router.Get("/logout", handler.Logout)
	router.Get("/api/debug/cache", handler.DebugCache)

	return &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: router,
	}
}

// StartHTTPServer starts the portal HTTP server using the given config
// and blocks until the context is cancelled.
func StartHTTPServer(ctx context.Context, cfg *config.Config, handler *Handler) error {
	if err := initMeters(ctx, cfg); err != nil {
		return err
	}

	server := createHTTPServer(ctx, cfg, handler)

	slogctx.Info(ctx, "Starting a listener", "address", server.Addr)

	// Parse network if the address if provided in the format of network://address.
	// Otherwise use tcp network by default. Some integration tests are easier to implement
	// by binding a listener to a unix socket rather than a TCP port,
	// since we don't need to look up for a free port or scan /proc/net on Linux or call sysctl on macOS
	// to discover which port the process is bound to.
	network := "tcp"
	if idx := strings.IndexRune(server.Addr, ':'); idx != -1 && len(server.Addr) > idx+3 && server.Addr[idx:idx+3] == "://" {
		network = server.Addr[:idx]
		server.Addr = server.Addr[idx+3:]
	}

	listener, err := new(net.ListenConfig).Listen(ctx, network, server.Addr)
	if err != nil {
		return oops.In("HTTP Server").
			WithContext(ctx).
			Wrapf(err, "Failed to create a listener")
	}

	slogctx.Info(ctx, "A listener started", "address", listener.Addr().String())

	go func() {
		slogctx.Info(ctx, "Serving an HTTP server", "address", listener.Addr().String())
		err := server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogctx.Error(ctx, "Failed to serve an HTTP server", "error", err)
		}

		slogctx.Info(ctx, "Stopped an HTTP server")
	}()

	<-ctx.Done()

	shutdownCtx, shutdownRelease := context.WithTimeout(ctx, cfg.HTTP.ShutdownTimeout)
	defer shutdownRelease()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return oops.In("HTTP Server").
			WithContext(ctx).
			Wrapf(err, "Failed shutting down HTTP server")
	}

	slogctx.Info(ctx, "Completed graceful shutdown of HTTP server")

	return nil
}
