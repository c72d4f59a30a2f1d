// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/vellum/internal/api"
	"github.com/starford/vellum/internal/canvas"
	"github.com/starford/vellum/internal/catalog"
	"github.com/starford/vellum/internal/export"
	"github.com/starford/vellum/internal/inbox"
	"github.com/starford/vellum/internal/mcpserver"
	"github.com/starford/vellum/internal/sse"
	"github.com/starford/vellum/internal/storage"
)

// core is everything both the HTTP server and the stdio MCP server need.
type core struct {
	ws      *storage.Workspace
	db      *catalog.DB
	indexer *catalog.Indexer
	svc     *canvas.Service
	browser *export.Browser
}

func (c *core) close(logger *slog.Logger) {
	c.svc.Close()
	if c.browser != nil {
		if err := c.browser.Close(); err != nil {
			logger.Warn("browser close failed", slog.String("error", err.Error()))
		}
	}
	if err := c.db.Close(); err != nil {
		logger.Warn("catalog close failed", slog.String("error", err.Error()))
	}
}

// buildCore opens the workspace and catalog, assembles the canvas service
// and loads the saved board. events may be nil.
func buildCore(cfg *Config, events canvas.Events, logger *slog.Logger) (*core, error) {
	// Ensure workspace directory exists.
	if err := os.MkdirAll(cfg.Workspace.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace dir: %w", err)
	}

	// Initialize storage.
	fs, err := storage.NewFS(cfg.Workspace.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	ws := storage.NewWorkspace(fs)

	// Initialize SQLite catalog.
	db, err := catalog.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init catalog: %w", err)
	}

	c := &core{ws: ws, db: db, indexer: catalog.NewIndexer(db, logger)}

	raster := export.Chain{export.Card{Images: canvas.ImageLoader(ws, nil)}}
	if cfg.Browser.Enabled {
		c.browser = export.NewBrowser(export.BrowserConfig{RemoteURL: cfg.Browser.RemoteURL, Logger: logger})
		raster = append(export.Chain{c.browser}, raster...)
	}

	c.svc = canvas.New(cfg.Canvas.service(cfg.Workspace.AutosaveInterval), canvas.Deps{
		Workspace:  ws,
		Events:     events,
		Observers:  []canvas.Observer{c.indexer},
		Streamer:   cfg.Generation.streamer(),
		Generation: cfg.Generation.pipeline(),
		Exporter:   export.New(cfg.Export.exporter(), raster, export.SystemClipboard{}, logger),
		Logger:     logger,
	})

	if err := c.svc.Load(); err != nil {
		c.close(logger)
		return nil, fmt.Errorf("load board: %w", err)
	}

	// Run initial sync.
	if err := catalog.Sync(db, c.svc.Snapshot().Nodes, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	return c, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := newLogger(os.Stdout, cfg.App.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("workspace_path", cfg.Workspace.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("generation_provider", cfg.Generation.Provider),
		slog.Bool("browser", cfg.Browser.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	c, err := buildCore(cfg, broker, logger)
	if err != nil {
		return err
	}
	defer c.close(logger)

	apiRouter := api.NewRouter(c.svc, c.db, c.ws, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)
	assets := api.NewAssetHandler(c.svc, c.db, c.ws)
	mcpSrv := mcpserver.New(c.svc, c.db, app.version)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", health)
	r.Get("/health/ready", health)

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	// Assets are referenced by <img> tags, which cannot carry a token.
	r.Get("/assets/{name}", assets.ServeFile)

	// MCP over streamable HTTP shares the live canvas.
	r.Group(func(r chi.Router) {
		r.Use(api.AuthMiddleware(cfg.Auth.AuthEnabled(), cfg.Auth.Token))
		r.Handle("/mcp", mcpSrv.HTTPHandler())
	})

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Autosave the board; saves once more on shutdown.
	g.Go(func() error {
		if err := c.svc.Run(gCtx); err != nil {
			return fmt.Errorf("final save: %w", err)
		}
		return nil
	})

	// Write canvas changes to the catalog.
	g.Go(func() error {
		return c.indexer.Run(gCtx, cfg.SQLite.IndexInterval)
	})

	// Watch the inbox for dropped images.
	if cfg.Inbox.Enabled {
		g.Go(func() error {
			return inbox.Watch(gCtx, cfg.Inbox.Path, logger, func(name string, data []byte) error {
				_, err := c.svc.CreateImage(name, data, nil)
				return err
			})
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
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Close SSE streams first so Shutdown does not wait on them.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group's context once the signal handler returns,
// stopping the autosave, indexer and inbox loops.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdin/stdout against the workspace board.
// Logs go to stderr since stdout carries the protocol. It should not share
// a workspace with a running server; use the server's /mcp endpoint then.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := newLogger(os.Stderr, cfg.App.LogLevel)
	slog.SetDefault(logger)

	c, err := buildCore(cfg, nil, logger)
	if err != nil {
		return err
	}
	defer c.close(logger)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.svc.Run(gCtx)
	})
	g.Go(func() error {
		return c.indexer.Run(gCtx, cfg.SQLite.IndexInterval)
	})
	g.Go(func() error {
		logger.Info("Serving MCP over stdio", slog.String("workspace_path", cfg.Workspace.Path))
		if err := mcpserver.New(c.svc, c.db, app.version).ServeStdio(); err != nil {
			return fmt.Errorf("mcp: %w", err)
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("MCP server error", slog.String("error", err.Error()))
		return err
	}
	return nil
}
