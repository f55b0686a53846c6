// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/plumeblog/plume/internal/api"
	"github.com/plumeblog/plume/internal/auth"
	"github.com/plumeblog/plume/internal/blog"
	"github.com/plumeblog/plume/internal/cache"
	"github.com/plumeblog/plume/internal/events"
	"github.com/plumeblog/plume/internal/importer"
	"github.com/plumeblog/plume/internal/localstore"
	"github.com/plumeblog/plume/internal/mcpserver"
	"github.com/plumeblog/plume/internal/models"
	"github.com/plumeblog/plume/internal/remote"
	"github.com/plumeblog/plume/internal/search"
)

// Well-known user identities for requests that carry no token.
const (
	localUserID  = "local"
	importUserID = "importer"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("mode", cfg.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := events.NewBroker()
	defer broker.Close()

	svc, lstore, cleanup, err := buildService(cfg, broker, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	defer svc.Close()

	registry := auth.NewRegistry()
	for _, entry := range cfg.Auth.Tokens {
		registry.Register(entry.Token, entry.UserID)
	}
	apiRouter := api.NewRouter(svc, registry, cfg.Auth.AuthEnabled(), auth.User{ID: localUserID}, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !svc.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"loading"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	g, gCtx := errgroup.WithContext(runCtx)

	// Start the drop-directory importer.
	if cfg.Import.Enabled {
		if err := os.MkdirAll(cfg.Import.Dir, 0o755); err != nil {
			return fmt.Errorf("create import dir: %w", err)
		}
		im := importer.New(svc, lstore, cfg.Import.Dir, importUserID, logger)
		g.Go(func() error {
			return im.Run(gCtx)
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		// Stop the importer and any other background work.
		cancelRun()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP starts the MCP server on stdio, backed by the local store.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	// MCP runs on stdio, so logs must go to stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	svc, _, cleanup, err := buildService(cfg, nil, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	defer svc.Close()

	readyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := svc.AwaitReady(readyCtx); err != nil {
		return fmt.Errorf("engine not ready: %w", err)
	}

	return mcpserver.New(svc).ServeStdio()
}

// buildService wires the caches, stores, and facade for the configured
// mode. The returned cleanup closes whichever store was opened; the caller
// closes the facade itself.
func buildService(cfg *Config, broker *events.Broker, logger *slog.Logger) (*blog.Service, *localstore.Store, func(), error) {
	deps := blog.Deps{
		Auth:   auth.NewResolved(&auth.User{ID: localUserID}),
		Broker: broker,
		Search: search.Index{
			Threshold:   cfg.Search.Threshold,
			MinQueryLen: cfg.Search.MinQueryLen,
		},
		Logger: logger,
	}

	newerFirst := func(a, b models.Post) bool { return a.PublishedAt.After(b.PublishedAt) }
	byName := func(a, b models.Category) bool { return a.Name < b.Name }
	postID := func(p models.Post) string { return p.ID }
	catID := func(c models.Category) string { return c.ID }

	switch cfg.Mode {
	case ModeMemory:
		store := remote.NewMemory()
		deps.Store = store
		deps.Posts = cache.New(postID, cache.WithSort(newerFirst))
		deps.Cats = cache.New(catID, cache.WithSort(byName))
		return blog.New(deps), nil, func() { store.Close() }, nil

	default:
		store, err := localstore.Open(cfg.Store.Path)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open local store: %w", err)
		}
		deps.Local = store
		deps.Posts = cache.New(postID, cache.WithSort(newerFirst),
			cache.WithPersist(persistTo[models.Post](store, blog.PostsKey), cache.DefaultPersistDelay, logger))
		deps.Cats = cache.New(catID, cache.WithSort(byName),
			cache.WithPersist(persistTo[models.Category](store, blog.CategoriesKey), cache.DefaultPersistDelay, logger))
		return blog.New(deps), store, func() { store.Close() }, nil
	}
}

// persistTo writes the full item set to one local-store key as JSON.
func persistTo[T any](store *localstore.Store, key string) func([]T) error {
	return func(items []T) error {
		data, err := json.Marshal(items)
		if err != nil {
			return err
		}
		return store.Write(key, data)
	}
}
