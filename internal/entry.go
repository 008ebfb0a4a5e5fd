// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
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

	"github.com/starford/journal/internal/api"
	"github.com/starford/journal/internal/catalog"
	"github.com/starford/journal/internal/journalservice"
	"github.com/starford/journal/internal/mcpserver"
	"github.com/starford/journal/internal/sse"
	"github.com/starford/journal/internal/storage"
)

var errConfigRequired = errors.New("config is required")

// openStore ensures the journal root exists and returns storage over it.
func (a *application) openStore() (*storage.FS, error) {
	if err := os.MkdirAll(a.config.Journal.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create journal root: %w", err)
	}
	store, err := storage.NewFS(a.config.Journal.Root)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	return store, nil
}

// openCatalog opens the SQLite catalog and brings it up to date with store.
func (a *application) openCatalog(store storage.Provider) (*catalog.DB, error) {
	db, err := catalog.Open(a.config.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init catalog: %w", err)
	}
	if err := catalog.Sync(db, store, a.logger); err != nil {
		a.logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	return db, nil
}

func (a *application) serviceOptions(extra ...journalservice.Option) []journalservice.Option {
	return append([]journalservice.Option{
		journalservice.WithClock(a.clock),
		journalservice.WithLogger(a.logger),
		journalservice.WithRequireFilter(a.config.Journal.RequireFilter),
	}, extra...)
}

// OpenService builds a catalog-free journal service for one-shot commands.
// Tag and readme listings are computed from the files themselves.
func OpenService(opts ...Option) (*journalservice.Service, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	if app.logger == nil {
		app.logger = slog.Default()
	}
	store, err := app.openStore()
	if err != nil {
		return nil, err
	}
	return journalservice.NewService(store, app.serviceOptions()...), nil
}

// SyncCatalog rebuilds the SQLite catalog from the journal tree and returns
// the number of cataloged entries.
func SyncCatalog(ctx context.Context, opts ...Option) (int, error) {
	app, err := newApplication(opts)
	if err != nil {
		return 0, err
	}
	if app.logger == nil {
		app.logger = slog.Default()
	}
	store, err := app.openStore()
	if err != nil {
		return 0, err
	}
	db, err := catalog.Open(app.config.SQLite.Path)
	if err != nil {
		return 0, fmt.Errorf("init catalog: %w", err)
	}
	defer db.Close()

	svc := journalservice.NewService(store, app.serviceOptions(journalservice.WithCatalog(db))...)
	if err := svc.Sync(ctx); err != nil {
		return 0, err
	}
	sums, err := db.AllChecksums()
	if err != nil {
		return 0, err
	}
	return len(sums), nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	if app.logger == nil {
		// Initialize structured JSON logger.
		app.logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
	}
	logger := app.logger
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("journal_root", cfg.Journal.Root),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("require_filter", cfg.Journal.RequireFilter),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, err := app.openStore()
	if err != nil {
		return err
	}
	db, err := app.openCatalog(store)
	if err != nil {
		return err
	}
	defer db.Close()

	broker := sse.NewBroker(cfg.Events.Throttle)
	defer broker.Close()

	svc := journalservice.NewService(store, app.serviceOptions(
		journalservice.WithCatalog(db),
		journalservice.WithPublisher(broker),
	)...)
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, api.Defaults{
		Order: cfg.Journal.Order(),
		Limit: cfg.Journal.DefaultLimit,
	})

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
		if _, err := db.GetChecksum(""); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"catalog unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Keep the catalog current and forward changes to SSE clients.
	g.Go(func() error {
		if err := catalog.Watch(gCtx, db, store, logger, broker.PublishEntryEvent); err != nil {
			logger.Warn("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

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
		defer signal.Stop(quit)

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

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the journal tools over stdio until the client disconnects or
// a termination signal arrives. Logs go to stderr; stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	if app.logger == nil {
		app.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: app.config.App.LogLevel,
		}))
	}

	store, err := app.openStore()
	if err != nil {
		return err
	}
	db, err := app.openCatalog(store)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := journalservice.NewService(store, app.serviceOptions(journalservice.WithCatalog(db))...)
	srv := mcpserver.New(svc)

	g, gCtx := errgroup.WithContext(ctx)
	watchCtx, stopWatch := context.WithCancel(gCtx)
	g.Go(func() error {
		if err := catalog.Watch(watchCtx, db, store, app.logger, nil); err != nil {
			app.logger.Warn("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})
	g.Go(func() error {
		defer stopWatch()
		return srv.ServeStdio()
	})
	return g.Wait()
}
