package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c360studio/coach/analysis"
	"github.com/c360studio/coach/cache"
	"github.com/c360studio/coach/config"
	"github.com/c360studio/coach/knowledge"
	"github.com/c360studio/coach/llm"
	"github.com/c360studio/coach/model"
	"github.com/c360studio/coach/rubric"
	"github.com/c360studio/coach/server"
)

// App wires together the rubric registry, cache backend, LLM client, and
// analyzer from a loaded configuration.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	rubrics   *rubric.Registry
	watcher   *rubric.Watcher
	store     cache.Store
	models    *model.Registry
	client    *llm.Client
	publisher *analysis.NATSPublisher
	analyzer  *analysis.Analyzer
	server    *server.Server
}

// NewApp builds an application instance from config. Nothing is started;
// call Run or use the analyzer directly.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{cfg: cfg, logger: logger}

	rubrics, err := rubric.NewRegistry(cfg.Rubrics.Dir, rubric.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("load rubrics from %s: %w", cfg.Rubrics.Dir, err)
	}
	app.rubrics = rubrics

	if cfg.Rubrics.Watch {
		watcher, err := rubric.NewWatcher(rubrics, rubric.WithWatcherLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("create rubric watcher: %w", err)
		}
		app.watcher = watcher
	}

	store, err := app.buildCacheStore(ctx)
	if err != nil {
		return nil, err
	}
	app.store = store

	if cfg.ModelRegistry != nil {
		app.models = model.FromConfig(cfg.ModelRegistry)
	} else {
		app.models = model.NewDefaultRegistry()
	}

	clientOpts := []llm.ClientOption{llm.WithLogger(logger)}
	if cfg.LLM.Timeout > 0 {
		clientOpts = append(clientOpts, llm.WithTimeout(cfg.LLM.Timeout))
	}
	app.client = llm.NewClient(app.models, clientOpts...)

	analyzerOpts := []analysis.Option{
		analysis.WithLogger(logger),
		analysis.WithKnowledge(knowledge.NewFileProvider(cfg.Knowledge.Dir, knowledge.WithFileLogger(logger))),
		analysis.WithDefaultRole(cfg.DefaultRole()),
		analysis.WithDefaultDimensions(cfg.DefaultDimensions()),
		analysis.WithCacheTTL(cfg.Cache.TTL),
	}
	if cfg.LLM.Timeout > 0 {
		analyzerOpts = append(analyzerOpts, analysis.WithLLMTimeout(cfg.LLM.Timeout))
	}

	if cfg.NATS.PublishEvents {
		publisher, err := analysis.NewNATSPublisher(cfg.NATS.URL, logger)
		if err != nil {
			return nil, fmt.Errorf("create event publisher: %w", err)
		}
		app.publisher = publisher
		analyzerOpts = append(analyzerOpts, analysis.WithPublisher(publisher))
	}

	app.analyzer = analysis.NewAnalyzer(rubrics, store, app.client, analyzerOpts...)
	app.server = server.New(cfg.Server.Addr, app.analyzer, store, rubrics, server.WithLogger(logger))

	return app, nil
}

func (a *App) buildCacheStore(ctx context.Context) (cache.Store, error) {
	switch a.cfg.Cache.Backend {
	case "nats":
		store, err := cache.NewNATSStore(ctx, a.cfg.NATS.URL, a.cfg.Cache.TTL,
			cache.WithNATSLogger(a.logger),
			cache.WithNATSCompressThreshold(a.cfg.Cache.CompressThreshold),
		)
		if err != nil {
			return nil, wrapNATSError(err, a.cfg.NATS.URL)
		}
		return store, nil
	default:
		return cache.NewMemoryStore(
			cache.WithMemoryLogger(a.logger),
			cache.WithCompressThreshold(a.cfg.Cache.CompressThreshold),
		), nil
	}
}

// Run starts the rubric watcher and the HTTP server, blocking until ctx is
// cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.watcher != nil {
		if err := a.watcher.Start(ctx); err != nil {
			return fmt.Errorf("start rubric watcher: %w", err)
		}
	}

	a.logger.Info("coach ready",
		"version", Version,
		"addr", a.cfg.Server.Addr,
		"cache_backend", a.cfg.Cache.Backend,
		"rubrics", len(a.rubrics.List()))

	return a.server.Start(ctx)
}

// Close releases resources held by the application. Safe to call after a
// failed or partial start.
func (a *App) Close() {
	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			a.logger.Warn("stopping rubric watcher", "error", err)
		}
	}
	if a.publisher != nil {
		a.publisher.Close()
	}
	switch s := a.store.(type) {
	case *cache.MemoryStore:
		s.Close()
	case *cache.NATSStore:
		s.Close()
	}
}

// Analyze runs a single analysis through the wired analyzer.
func (a *App) Analyze(ctx context.Context, req *analysis.Request) (*analysis.Report, error) {
	return a.analyzer.Analyze(ctx, req)
}
