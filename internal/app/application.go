// Package app assembles the server from its components and owns the
// process lifecycle.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"roomhub/internal/api"
	"roomhub/internal/auth"
	"roomhub/internal/config"
	"roomhub/internal/dispatch"
	"roomhub/internal/presence"
	"roomhub/internal/ratelimit"
	"roomhub/internal/registry"
	"roomhub/internal/room"
	"roomhub/internal/session"
	"roomhub/internal/transport"
)

// Application wires all components in dependency order:
// registry → rooms → limiter → gate → dispatcher → presence →
// coordinator → transport → HTTP.
type Application struct {
	config     *config.Config
	registry   *registry.Registry
	rooms      *room.Manager
	gate       *auth.Gate
	httpServer *http.Server
}

// NewApplication builds the server from validated configuration.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	reg := registry.NewRegistry(cfg.Limits.MaxConnections, cfg.Limits.OutboundQueueDepth)
	rooms := room.NewManager()
	limiter := ratelimit.NewLimiter(cfg.Limits.RateLimit, cfg.Limits.RateWindow)
	gate := auth.NewGate(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	dispatcher := dispatch.NewDispatcher(reg, rooms)
	tracker := presence.NewTracker(rooms, dispatcher)
	coordinator := session.NewCoordinator(reg, rooms, limiter, gate, dispatcher, tracker,
		cfg.Limits.AuthTimeout, cfg.Limits.RateWindow)

	wsHandler := transport.NewHandler(coordinator, cfg.WebSocket)
	apiServer := api.NewServer(reg, rooms)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)
	mux.Handle("/healthz", apiServer)
	mux.Handle("/stats", apiServer)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		registry:   reg,
		rooms:      rooms,
		gate:       gate,
		httpServer: httpServer,
	}, nil
}

// Gate exposes the token gate for the CLI mint helper.
func (a *Application) Gate() *auth.Gate {
	return a.gate
}

// Addr returns the configured listen address.
func (a *Application) Addr() string {
	return a.httpServer.Addr
}

// Run serves until the context is cancelled, then shuts the listener
// down gracefully. Per-connection goroutines observe their sockets
// closing and tear their own sessions down.
func (a *Application) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("listening on %s", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Printf("shutting down: connections=%d rooms=%d",
			a.registry.Count(), a.rooms.RoomCount())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}
