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
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/keepmd/internal/api"
	"github.com/starford/keepmd/internal/attachment"
	"github.com/starford/keepmd/internal/convert"
	"github.com/starford/keepmd/internal/index"
	"github.com/starford/keepmd/internal/markdown"
	"github.com/starford/keepmd/internal/mcpserver"
	"github.com/starford/keepmd/internal/noteservice"
	"github.com/starford/keepmd/internal/render"
	"github.com/starford/keepmd/internal/slug"
	"github.com/starford/keepmd/internal/sse"
	"github.com/starford/keepmd/internal/stash"
	"github.com/starford/keepmd/internal/storage"
	"github.com/starford/keepmd/internal/tagtoc"
	"github.com/starford/keepmd/internal/watch"
)

// ErrFailedNotes is returned by Run when the batch finished but some notes
// were skipped.
var ErrFailedNotes = errors.New("some notes failed to convert")

// runtime holds the collaborators shared by every command.
type runtime struct {
	cfg       *Config
	logger    *slog.Logger
	store     *storage.FS
	catalog   *index.DB
	converter *convert.Service
}

func (rt *runtime) Close() {
	if rt.catalog != nil {
		if err := rt.catalog.Close(); err != nil {
			rt.logger.Warn("catalog close failed", slog.String("error", err.Error()))
		}
	}
}

// bootstrap installs the logger and builds the store, catalog, renderer, and
// conversion service from the configuration.
func (a *application) bootstrap() (*runtime, error) {
	if a.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := a.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("unconverted_notes_folder", cfg.Folders.UnconvertedNotesFolder),
		slog.String("converted_notes_folder", cfg.Folders.ConvertedNotesFolder),
		slog.String("tag_toc_file", cfg.Folders.TagTOCFile),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	loc, err := cfg.App.Location()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Folders.ConvertedNotesFolder, 0o755); err != nil {
		return nil, fmt.Errorf("create converted notes dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Folders.ConvertedNotesFolder)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	slugger := slug.Default()
	renderer, err := render.New(cfg.Folders.TemplatesFolder, slugger)
	if err != nil {
		return nil, fmt.Errorf("init templates: %w", err)
	}

	rt := &runtime{cfg: cfg, logger: logger, store: store}

	var extra []convert.Option
	if cfg.SQLite.Enabled() {
		db, err := index.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("init index: %w", err)
		}
		rt.catalog = db
		extra = append(extra, convert.WithCatalog(db))
	}

	stashOn := cfg.Stash.Enabled || a.stash
	if stashOn {
		sc := cfg.Stash
		sc.Enabled = true
		if err := sc.Validate(); err != nil {
			rt.Close()
			return nil, fmt.Errorf("stash: %w", err)
		}
		extra = append(extra, convert.WithStasher(stash.New(sc.Client(), nil, logger)))
	}

	rt.converter = convert.New(convert.Options{
		SourceDir:    cfg.Folders.UnconvertedNotesFolder,
		TOCFile:      cfg.Folders.TagTOCFile,
		NoteTemplate: cfg.Templates.Note,
		TOCTemplate:  cfg.Templates.TagTOC,
		Workers:      cfg.Convert.Workers,
		SkipFailed:   cfg.Convert.SkipFailedNotes,
		Dedupe:       cfg.Convert.DedupeFilenames,
		Location:     loc,
		Stash:        stashOn,
		Exclude:      dumpDirs(cfg),
	}, store, renderer, slugger, logger, extra...)

	return rt, nil
}

// convertOnce runs one conversion and reports skipped notes as ErrFailedNotes.
func (rt *runtime) convertOnce(ctx context.Context) (convert.Result, error) {
	res, err := rt.converter.Run(ctx)
	if err != nil {
		return res, err
	}
	if res.Failed > 0 {
		return res, fmt.Errorf("%w: %d of %d", ErrFailedNotes, res.Failed, res.Failed+res.Converted)
	}
	return res, nil
}

// watchOptions watches the export folder while ignoring everything conversions
// write, so a run never triggers the next one.
func (rt *runtime) watchOptions() watch.Options {
	paths := tagtoc.PathsFor(rt.cfg.Folders.TagTOCFile)
	return watch.Options{
		Root:     rt.cfg.Folders.UnconvertedNotesFolder,
		Debounce: rt.cfg.Watch.Debounce,
		Ignore:   append([]string{rt.store.Root(), paths.JSON, paths.Markdown}, dumpDirs(rt.cfg)...),
	}
}

// dumpDirs returns the stash dump folder when one is configured. Failed
// pushes write JSON there, which must never be read back as a record.
func dumpDirs(cfg *Config) []string {
	if cfg.Stash.DumpDir == "" {
		return nil
	}
	return []string{cfg.Stash.DumpDir}
}

// Run converts the export folder once.
func Run(ctx context.Context, opts ...Option) error {
	rt, err := newApplication(opts).bootstrap()
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := rt.convertOnce(ctx)
	if err != nil {
		return err
	}
	rt.logger.Info("Conversion complete",
		slog.Int("converted", res.Converted),
		slog.Int("attachments", res.Attachments),
		slog.Int("stashed", res.Stashed),
		slog.String("toc", res.TOCPath))
	return nil
}

// Watch converts once, then re-runs the conversion whenever the export folder
// changes, until ctx is cancelled or a shutdown signal arrives.
func Watch(ctx context.Context, opts ...Option) error {
	rt, err := newApplication(opts).bootstrap()
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	run := func(ctx context.Context) error {
		_, err := rt.convertOnce(ctx)
		return err
	}
	if err := run(ctx); err != nil {
		rt.logger.Error("initial conversion failed", slog.String("error", err.Error()))
	}
	return watch.Watch(ctx, rt.watchOptions(), rt.logger, run)
}

// Serve starts the read-only browse API over the converted notes. With
// WithWatch it also re-runs conversions and announces them over SSE.
func Serve(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	rt, err := app.bootstrap()
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg := rt.cfg
	logger := rt.logger

	if rt.catalog == nil {
		return fmt.Errorf("serve requires sqlite.path")
	}

	// Catalog the notes already on disk from earlier runs.
	if n, err := index.Sync(rt.catalog, rt.store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	} else {
		logger.Info("Catalog synced", slog.Int("notes", n))
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	svc := noteservice.NewService(rt.store, rt.catalog, markdown.New(), cfg.Folders.TagTOCFile)
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
		if _, err := rt.catalog.Count(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Relocated attachments, referenced by relative links from the notes.
	root := rt.store.Root()
	api.NewAttachmentHandler(root, attachment.ImagesDir).Mount(r)
	api.NewAttachmentHandler(root, attachment.AssetsDir).Mount(r)

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	if app.watch {
		g.Go(func() error {
			run := func(ctx context.Context) error {
				res, err := rt.convertOnce(ctx)
				summary := sse.RunSummary{
					Converted:   res.Converted,
					Failed:      res.Failed,
					Attachments: res.Attachments,
					TOCPath:     filepath.ToSlash(res.TOCPath),
				}
				if err != nil && !errors.Is(err, ErrFailedNotes) {
					summary.Error = err.Error()
				}
				broker.PublishRun(summary)
				return err
			}
			if err := run(gCtx); err != nil {
				logger.Error("initial conversion failed", slog.String("error", err.Error()))
			}
			return watch.Watch(gCtx, rt.watchOptions(), logger, run)
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

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		// Ends the watcher when the shutdown came from a signal.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")

// ServeMCP serves the MCP tools over stdio. Logs go to stderr.
func ServeMCP(ctx context.Context, opts ...Option) error {
	opts = append(opts, WithLogOutput(os.Stderr))
	app := newApplication(opts)
	rt, err := app.bootstrap()
	if err != nil {
		return err
	}
	defer rt.Close()

	if rt.catalog == nil {
		return fmt.Errorf("mcp requires sqlite.path")
	}
	if _, err := index.Sync(rt.catalog, rt.store, rt.logger); err != nil {
		rt.logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	svc := noteservice.NewService(rt.store, rt.catalog, markdown.New(), rt.cfg.Folders.TagTOCFile)
	srv := mcpserver.New(svc, app.version)
	rt.logger.Info("MCP server starting on stdio")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ServeStdio() }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}
