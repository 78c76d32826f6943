// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"crypto/tls"
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

	"github.com/starford/geonote/internal/api"
	"github.com/starford/geonote/internal/assets"
	"github.com/starford/geonote/internal/geocode"
	"github.com/starford/geonote/internal/index"
	"github.com/starford/geonote/internal/mcpserver"
	"github.com/starford/geonote/internal/notestore"
	"github.com/starford/geonote/internal/sse"
	"github.com/starford/geonote/internal/storage"
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
		slog.String("store_path", cfg.Store.Path),
		slog.String("index_path", cfg.Index.Path),
		slog.String("tls_mode", cfg.App.HTTP.TLS.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker()
	defer broker.Close()

	// Typed nils must not leak into the interfaces, so only assign when
	// geocoding is enabled.
	var svcGeocoder notestore.Geocoder
	var apiGeocoder api.GeocodeClient
	if cfg.Geocode.Enabled {
		gc := newGeocoder(cfg)
		svcGeocoder = gc
		apiGeocoder = gc
	}

	svc, db, err := buildService(cfg, svcGeocoder, broker, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	apiRouter := api.NewRouter(svc, apiGeocoder, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	// Static frontend assets at the root, when configured.
	if cfg.Assets.Dir != "" {
		static, err := assets.NewHandler(cfg.Assets.Dir)
		if err != nil {
			return fmt.Errorf("init assets: %w", err)
		}
		r.Handle("/*", static)
	}

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	if cfg.App.HTTP.TLS.Enabled() {
		cert, err := assets.Certificate()
		if err != nil {
			return fmt.Errorf("generate certificate: %w", err)
		}
		httpServer.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	// A signal-triggered shutdown must also stop the watcher, which blocks on
	// the group context; stop() is called once the HTTP server is down.
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	g, gCtx := errgroup.WithContext(runCtx)

	// Watch the slot file for external edits.
	g.Go(func() error {
		return notestore.Watch(gCtx, svc, cfg.Store.Path, logger)
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server",
			slog.String("address", cfg.App.HTTP.Address()),
			slog.Bool("tls", cfg.App.HTTP.TLS.Enabled()))
		var err error
		if cfg.App.HTTP.TLS.Enabled() {
			err = httpServer.ListenAndServeTLS("", "")
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
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

		stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP starts the MCP stdio server instead of the HTTP server.
// Logs go to stderr so stdout stays clean for the protocol stream.
func RunMCP(_ context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	var svcGeocoder notestore.Geocoder
	var locator mcpserver.LocationSearcher
	if cfg.Geocode.Enabled {
		gc := newGeocoder(cfg)
		svcGeocoder = gc
		locator = gc
	}

	svc, db, err := buildService(cfg, svcGeocoder, nil, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	logger.Info("Starting MCP server on stdio")
	return mcpserver.New(svc, locator).ServeStdio()
}

// buildService opens the slot file and search index and loads notes into
// a service. The caller owns closing the returned DB.
func buildService(cfg *Config, geocoder notestore.Geocoder, events notestore.Publisher, logger *slog.Logger) (*notestore.Service, *index.DB, error) {
	slot, err := storage.NewFileSlot(cfg.Store.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init store: %w", err)
	}

	db, err := index.Open(cfg.Index.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init index: %w", err)
	}

	svc := notestore.NewService(slot, db, geocoder, events, logger)
	if err := svc.Load(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("load notes: %w", err)
	}
	return svc, db, nil
}

func newGeocoder(cfg *Config) *geocode.Client {
	return geocode.New(geocode.Options{
		BaseURL:      cfg.Geocode.BaseURL,
		UserAgent:    cfg.Geocode.UserAgent,
		CountryCodes: cfg.Geocode.CountryCodes,
		Limit:        cfg.Geocode.Limit,
		Timeout:      time.Duration(cfg.Geocode.TimeoutSeconds) * time.Second,
	})
}
