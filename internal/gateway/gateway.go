// Package gateway exposes the HTTP surface: health and status probes, the
// Prometheus scrape endpoint, session administration, and a WebSocket
// stream of compaction events.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clamp-sh/clamp/internal/archive"
	"github.com/clamp-sh/clamp/internal/session"
)

// Gateway is the HTTP server. It is a leaf component: it reads from the
// session manager and archive store but nothing imports it.
type Gateway struct {
	config    Config
	logger    *slog.Logger
	manager   *session.Manager
	store     archive.Store
	metrics   *Metrics
	events    *EventHub
	server    *http.Server
	startedAt time.Time
}

// New creates a gateway. The archive store may be nil; the related admin
// endpoint then returns empty results.
func New(cfg Config, manager *session.Manager, store archive.Store, metrics *Metrics, events *EventHub, logger *slog.Logger) *Gateway {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		config:  cfg,
		logger:  logger,
		manager: manager,
		store:   store,
		metrics: metrics,
		events:  events,
	}
}

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Public endpoints, no auth required.
	r.Get("/health", g.handleHealth())
	r.Method(http.MethodGet, "/metrics", g.metrics.Handler())

	// Admin endpoints require auth and are not mounted if no auth is configured.
	if g.config.Auth.IsConfigured() {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(g.config.Auth))
			r.Get("/status", g.handleStatus())
			r.Handle("/ws/events", g.events)
			r.Route("/api", func(r chi.Router) {
				r.Get("/sessions", g.handleListSessions())
				r.Delete("/sessions/{id}", g.handleDeleteSession())
				r.Get("/sessions/{id}/evictions", g.handleSessionEvictions())
			})
		})
	}

	return r
}

// Start begins serving. It returns once the listener is bound; serving
// continues in the background until Stop.
func (g *Gateway) Start() error {
	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen: %w", err)
	}

	go func() {
		g.logger.Info("gateway listening", "addr", g.config.Bind)
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop shuts the server down gracefully with the configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
