// Package app assembles the question-answering stack from configuration:
// language model clients, the vector index and its store, the relational
// source, both pipelines and the router.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/efebarandurmaz/courtside/internal/config"
	"github.com/efebarandurmaz/courtside/internal/ingest"
	"github.com/efebarandurmaz/courtside/internal/llm"
	"github.com/efebarandurmaz/courtside/internal/llm/providers"
	"github.com/efebarandurmaz/courtside/internal/observability"
	"github.com/efebarandurmaz/courtside/internal/prompts"
	"github.com/efebarandurmaz/courtside/internal/retrieval"
	"github.com/efebarandurmaz/courtside/internal/router"
	"github.com/efebarandurmaz/courtside/internal/server"
	"github.com/efebarandurmaz/courtside/internal/sqldb"
	"github.com/efebarandurmaz/courtside/internal/sqltool"
	"github.com/efebarandurmaz/courtside/internal/vector"
	"github.com/efebarandurmaz/courtside/internal/vector/bolt"
	"github.com/efebarandurmaz/courtside/internal/vector/qdrant"
)

// LLM roles that may be overridden under llm.roles.
const (
	RoleClassifier = "classifier"
	RoleSQL        = "sql"
	RoleRAG        = "rag"
)

// App holds every wired component. Build it with New and release it with
// Close.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Classifier *llm.Client
	SQLModel   *llm.Client
	RAGModel   *llm.Client
	Embedder   *llm.Client

	Store  vector.Store
	Index  *vector.Index
	Loader *ingest.Loader
	DB     *sqldb.DB

	Structured *sqltool.Pipeline
	Retrieval  *retrieval.Pipeline
	Router     *router.Router

	Audit  *observability.AuditLogger
	Tracer *observability.TracerProvider

	closers []namedCloser
}

type namedCloser struct {
	name string
	fn   func(context.Context) error
}

// ProviderConfig maps the LLM section, resolved for role, onto the factory
// config. An empty role means the top-level settings.
func ProviderConfig(c config.LLMConfig, role string) llm.ProviderConfig {
	if role != "" {
		c = c.ResolveForRole(role)
	}
	pc := llm.DefaultProviderConfig()
	pc.Provider = c.Provider
	pc.APIKey = c.APIKey
	pc.Model = c.Model
	pc.BaseURL = c.BaseURL
	pc.EmbedModel = c.EmbedModel
	pc.Timeout = c.Timeout
	pc.MaxRetries = c.MaxRetries
	pc.RequestsPerMinute = c.RequestsPerMinute
	pc.TokensPerMinute = c.TokensPerMinute
	return pc
}

// NewFactory returns a provider factory with every built-in backend.
func NewFactory() *llm.ProviderFactory {
	f := llm.NewFactory()
	providers.RegisterDefaults(f)
	return f
}

// NewClient builds the model client for role.
func NewClient(f *llm.ProviderFactory, c config.LLMConfig, role string, logger *slog.Logger) (*llm.Client, error) {
	pc := ProviderConfig(c, role)
	p, err := f.Create(pc)
	if err != nil {
		return nil, fmt.Errorf("%s model: %w", roleName(role), err)
	}
	return llm.NewClient(p, llm.WithModel(pc.Model), llm.WithLogger(logger)), nil
}

func roleName(role string) string {
	if role == "" {
		return "embedding"
	}
	return role
}

// OpenStore returns the index store selected by index.store. The close
// function is never nil.
func OpenStore(ctx context.Context, cfg *config.Config) (vector.Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Index.Store {
	case "memory":
		return vector.NewMemoryStore(), noop, nil
	case "qdrant":
		s, err := qdrant.New(ctx, cfg.Qdrant.Host, cfg.Qdrant.Port, cfg.Qdrant.Collection)
		if err != nil {
			return nil, noop, fmt.Errorf("qdrant store: %w", err)
		}
		return s, s.Close, nil
	case "bolt", "":
		return bolt.New(cfg.Index.Path), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown index store %q", cfg.Index.Store)
	}
}

// NewIndex builds an index over store with the configured chunking.
func NewIndex(cfg *config.Config, embedder vector.Embedder, store vector.Store, logger *slog.Logger) (*vector.Index, error) {
	chunker, err := ingest.NewChunker(cfg.Index.ChunkSize, cfg.Index.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	return vector.NewIndex(embedder, store,
		vector.WithChunker(chunker),
		vector.WithModel(cfg.LLM.EmbedModel),
		vector.WithBatchSize(cfg.Index.BatchSize),
		vector.WithLogger(logger),
	), nil
}

// New wires the full stack. The index is not loaded; call EnsureIndex.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger, Loader: ingest.NewLoader(logger)}
	defer func() {
		if err != nil {
			a.Close(context.Background())
		}
	}()

	a.Tracer, err = observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: observability.DefaultTracingConfig().ServiceVersion,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	a.closers = append(a.closers, namedCloser{"tracing", a.Tracer.Shutdown})

	a.Audit, err = observability.NewAuditLogger(&observability.AuditConfig{
		Enabled:    cfg.Audit.Enabled,
		OutputPath: cfg.Audit.Path,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, namedCloser{"audit", func(context.Context) error { return a.Audit.Close() }})

	factory := NewFactory()
	if a.Classifier, err = NewClient(factory, cfg.LLM, RoleClassifier, logger); err != nil {
		return nil, err
	}
	if a.SQLModel, err = NewClient(factory, cfg.LLM, RoleSQL, logger); err != nil {
		return nil, err
	}
	if a.RAGModel, err = NewClient(factory, cfg.LLM, RoleRAG, logger); err != nil {
		return nil, err
	}
	if a.Embedder, err = NewClient(factory, cfg.LLM, "", logger); err != nil {
		return nil, err
	}

	store, closeStore, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.closers = append(a.closers, namedCloser{"index store", func(context.Context) error { return closeStore() }})

	if a.Index, err = NewIndex(cfg, a.Embedder, store, logger); err != nil {
		return nil, err
	}

	if a.DB, err = sqldb.Open(ctx, cfg.SQL.DSN); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, namedCloser{"database", func(context.Context) error { return a.DB.Close() }})

	shots, err := prompts.LoadFewShots(cfg.SQL.FewShotsFile)
	if err != nil {
		return nil, err
	}

	a.Structured = sqltool.New(a.SQLModel, a.DB,
		sqltool.WithFewShots(shots),
		sqltool.WithTopK(cfg.SQL.TopK),
		sqltool.WithTemperature(cfg.SQL.Temperature),
		sqltool.WithAudit(a.Audit),
		sqltool.WithLogger(logger),
	)
	a.Retrieval = retrieval.New(a.Index, a.RAGModel,
		retrieval.WithK(cfg.Retrieval.K),
		retrieval.WithTemperature(cfg.Retrieval.Temperature),
		retrieval.WithLogger(logger),
	)
	a.Router = router.New(a.Classifier, a.Structured, a.Retrieval,
		router.WithAudit(a.Audit),
		router.WithLogger(logger),
	)
	return a, nil
}

// Rebuild loads every document under index.input_dir and rebuilds the index.
func (a *App) Rebuild(ctx context.Context) (vector.BuildReport, error) {
	start := time.Now()
	docs, err := a.Loader.Load(ctx, a.Config.Index.InputDir)
	if err != nil {
		a.Audit.LogIndexBuild(ctx, 0, 0, time.Since(start), err)
		return vector.BuildReport{}, err
	}
	report, err := a.Index.Build(ctx, docs)
	a.Audit.LogIndexBuild(ctx, report.Documents, report.Chunks, time.Since(start), err)
	return report, err
}

// EnsureIndex loads the persisted index, rebuilding it from the input
// directory when nothing has been committed yet. An inconsistent store is
// reported, not silently rebuilt.
func (a *App) EnsureIndex(ctx context.Context) error {
	err := a.Index.Load(ctx)
	a.Audit.LogIndexLoad(ctx, a.Index.Size(), err)
	if err == nil {
		a.Logger.Info("Index loaded", "chunks", a.Index.Size())
		return nil
	}
	if !errors.Is(err, vector.ErrNotBuilt) {
		return fmt.Errorf("loading index: %w", err)
	}

	a.Logger.Warn("No index found, rebuilding", "input_dir", a.Config.Index.InputDir)
	report, err := a.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("rebuilding index: %w", err)
	}
	a.Logger.Info("Index rebuilt", "documents", report.Documents, "chunks", report.Chunks, "duration", report.Duration)
	return nil
}

// Watch rebuilds the index whenever the input directory changes, until ctx
// is done. A failed rebuild keeps the previous index.
func (a *App) Watch(ctx context.Context, debounce time.Duration) error {
	return ingest.Watch(ctx, a.Config.Index.InputDir, debounce, a.Logger, func(ctx context.Context) {
		report, err := a.Rebuild(ctx)
		if err != nil {
			a.Logger.Error("Index rebuild failed", "error", err)
			return
		}
		a.Logger.Info("Index rebuilt", "documents", report.Documents, "chunks", report.Chunks)
	})
}

// HealthServer returns a health server with checks for the database, the
// index and the answering model.
func (a *App) HealthServer(version string) *server.HealthServer {
	h := server.NewHealthServer(&server.HealthConfig{Version: version})
	h.RegisterCheck("database", server.DatabaseHealthChecker(string(a.DB.Dialect()), a.DB.Ping))
	h.RegisterCheck("index", server.IndexHealthChecker(a.Index.Size))

	name := "none"
	if p := a.RAGModel.Provider(); p != nil {
		name = p.Name()
	}
	h.RegisterCheck("llm", server.LLMHealthChecker(name, nil))
	return h
}

// Close releases every component in reverse construction order.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", c.name, err))
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// ShutdownHooks exposes the closers as prioritized shutdown hooks.
func (a *App) ShutdownHooks() []server.ShutdownHook {
	var hooks []server.ShutdownHook
	for _, c := range a.closers {
		c := c
		switch c.name {
		case "tracing":
			hooks = append(hooks, server.TracingShutdownHook(c.fn))
		case "database":
			hooks = append(hooks, server.DatabaseShutdownHook(func() error { return c.fn(context.Background()) }))
		case "index store":
			hooks = append(hooks, server.IndexStoreShutdownHook(func() error { return c.fn(context.Background()) }))
		case "audit":
			hooks = append(hooks, server.AuditLoggerShutdownHook(func() error { return c.fn(context.Background()) }))
		}
	}
	return hooks
}
