// Package server builds the application's dependency graph and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/etd-crawler/internal/api"
	"github.com/JakeFAU/etd-crawler/internal/catalog"
	"github.com/JakeFAU/etd-crawler/internal/clock/system"
	"github.com/JakeFAU/etd-crawler/internal/config"
	"github.com/JakeFAU/etd-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/etd-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/etd-crawler/internal/id/uuid"
	"github.com/JakeFAU/etd-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/etd-crawler/internal/progress"
	progresssinks "github.com/JakeFAU/etd-crawler/internal/progress/sinks"
	gcppublisher "github.com/JakeFAU/etd-crawler/internal/publisher/pubsub"
	gcsstorage "github.com/JakeFAU/etd-crawler/internal/storage/gcs"
	localstorage "github.com/JakeFAU/etd-crawler/internal/storage/local"
	memoryStorage "github.com/JakeFAU/etd-crawler/internal/storage/memory"
	pgstore "github.com/JakeFAU/etd-crawler/internal/storage/postgres"
	"github.com/JakeFAU/etd-crawler/internal/title"
)

// App contains the application's dependencies.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	catalog     *catalog.Store
	engine      *crawler.Engine
	apiServer   *api.Server
	progressHub *progress.Hub

	storage      *storage.Client
	pubsubClient *pubsub.Client
	publisher    *gcppublisher.Publisher
	mirror       *pgstore.MirrorStore

	registerer prometheus.Registerer
	stopEngine context.CancelFunc
	transport  http.RoundTripper

	closeOnce sync.Once
	closeErr  error
}

// Option customizes Build.
type Option func(*App)

// WithRegisterer registers progress collectors against reg instead of the
// process-wide default registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(a *App) {
		a.registerer = reg
	}
}

// WithClassifierTransport overrides the transport used for document fetches.
func WithClassifierTransport(rt http.RoundTripper) Option {
	return func(a *App) {
		a.transport = rt
	}
}

// Build creates the application's dependencies and loads the catalog.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{cfg: cfg, logger: logger, registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(app)
	}
	app.logger.Info("building application dependencies",
		zap.String("catalog_backend", cfg.Catalog.Backend),
		zap.String("base_url", cfg.Remote.BaseURL),
	)

	if err := app.build(ctx); err != nil {
		app.closeInfrastructure(context.WithoutCancel(ctx))
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context) error {
	backend, err := a.setupCatalogBackend(ctx)
	if err != nil {
		return err
	}
	a.catalog = catalog.New(backend, a.logger.Named("catalog"))
	loaded := a.catalog.Load(ctx)
	a.logger.Info("catalog loaded", zap.Int("records", len(loaded)))

	if err := a.setupMirror(ctx); err != nil {
		return err
	}
	if err := a.setupPublisher(ctx); err != nil {
		return err
	}
	emitter, err := a.setupProgress(ctx)
	if err != nil {
		return err
	}
	if err := a.setupEngine(emitter); err != nil {
		return err
	}
	a.apiServer = api.NewServer(a.engine, a.catalog, a.cfg, a.logger.Named("api"))
	return nil
}

func (a *App) setupCatalogBackend(ctx context.Context) (crawler.CatalogBackend, error) {
	switch a.cfg.Catalog.Backend {
	case config.BackendGCS:
		a.logger.Info("using GCS catalog backend")
		var err error
		a.storage, err = storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		obj, err := gcsstorage.New(a.storage, gcsstorage.Config{
			Bucket: a.cfg.Catalog.GCSBucket,
			Object: a.cfg.Catalog.GCSObject,
		})
		if err != nil {
			return nil, fmt.Errorf("gcs catalog backend init failed: %w", err)
		}
		a.logger.Debug("GCS catalog backend", zap.String("uri", obj.URI()))
		return obj, nil
	case config.BackendMemory:
		a.logger.Warn("using in-memory catalog backend; discoveries are lost on exit")
		return memoryStorage.NewCatalogBlob(), nil
	default:
		file, err := localstorage.New(localstorage.Config{Path: a.cfg.Catalog.Path})
		if err != nil {
			return nil, fmt.Errorf("local catalog backend init failed: %w", err)
		}
		a.logger.Info("using local catalog backend", zap.String("path", file.Path()))
		return file, nil
	}
}

func (a *App) setupMirror(ctx context.Context) error {
	if a.cfg.Postgres.DSN == "" {
		a.logger.Debug("no postgres dsn configured, skipping mirror")
		return nil
	}
	var err error
	a.mirror, err = pgstore.NewMirrorStore(ctx, pgstore.Config{
		DSN:      a.cfg.Postgres.DSN,
		MaxConns: a.cfg.Postgres.MaxConns,
	})
	if err != nil {
		return fmt.Errorf("mirror store init failed: %w", err)
	}
	if err := a.mirror.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("mirror schema init failed: %w", err)
	}
	a.logger.Info("postgres mirror initialized")
	return nil
}

func (a *App) setupPublisher(ctx context.Context) error {
	if a.cfg.PubSub.TopicName == "" {
		a.logger.Debug("no Pub/Sub topic configured, discoveries will not be announced")
		return nil
	}
	var err error
	a.pubsubClient, err = pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.publisher = gcppublisher.New(a.pubsubClient)
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return nil
}

func (a *App) setupProgress(ctx context.Context) (progress.Emitter, error) {
	promSink, err := progresssinks.NewPrometheusSink(a.registerer)
	if err != nil {
		return nil, fmt.Errorf("prometheus sink init failed: %w", err)
	}
	sinkList := []progress.Sink{
		progresssinks.NewLogSink(a.logger.Named("progress_log")),
		promSink,
	}
	if a.mirror != nil {
		sinkList = append(sinkList, progresssinks.NewStoreSink(a.mirror, a.logger.Named("progress_store")))
	}
	if a.publisher != nil {
		sinkList = append(sinkList, progresssinks.NewPublisherSink(
			a.publisher,
			a.cfg.PubSub.TopicName,
			a.logger.Named("progress_publisher"),
		))
	}
	hubCfg := progress.Config{
		BufferSize:     a.cfg.Progress.BufferSize,
		MaxBatchEvents: a.cfg.Progress.BatchSize,
		MaxBatchWait:   time.Duration(a.cfg.Progress.FlushIntervalMs) * time.Millisecond,
		SinkTimeout:    time.Duration(a.cfg.Progress.SinkTimeoutSeconds) * time.Second,
		BaseContext:    context.WithoutCancel(ctx),
		Logger:         a.logger.Named("progress_hub"),
	}
	a.progressHub = progress.NewHub(hubCfg, sinkList...)
	a.logger.Info("progress hub initialized", zap.Int("sinks", len(sinkList)))
	return a.progressHub, nil
}

func (a *App) setupEngine(emitter progress.Emitter) error {
	opts := []collyfetcher.Option{
		collyfetcher.WithLogger(a.logger.Named("classifier")),
		collyfetcher.WithGate(ratelimit.New(ratelimit.Config{RPS: a.cfg.HTTP.MaxRequestsPerSecond})),
	}
	if a.transport != nil {
		opts = append(opts, collyfetcher.WithTransport(a.transport))
	}
	classifier, err := collyfetcher.New(collyfetcher.Config{
		BaseURL:      a.cfg.Remote.BaseURL,
		CookieName:   a.cfg.Remote.CookieName,
		CookieValue:  a.cfg.Remote.CookieValue,
		UserAgent:    a.cfg.Remote.UserAgent,
		Timeout:      a.cfg.Timeout(),
		MaxBodyBytes: a.cfg.HTTP.MaxBodyBytes,
	}, opts...)
	if err != nil {
		return fmt.Errorf("classifier init failed: %w", err)
	}

	engineCtx, cancel := context.WithCancel(context.Background())
	a.stopEngine = cancel
	a.engine, err = crawler.NewEngine(engineCtx, crawler.EngineConfig{
		Delay:      a.cfg.Delay(),
		FlushEvery: a.cfg.Crawler.FlushEvery,
	}, crawler.EngineDeps{
		Catalog:    a.catalog,
		Classifier: classifier,
		Extractor:  title.New(a.logger.Named("title")),
		Clock:      system.NewInLocation(time.Local),
		IDs:        uuid.NewUUIDGenerator(),
		Emitter:    emitter,
		Logger:     a.logger.Named("engine"),
	})
	if err != nil {
		return fmt.Errorf("engine init failed: %w", err)
	}
	return nil
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Catalog returns the loaded document store.
func (a *App) Catalog() *catalog.Store {
	return a.catalog
}

// Engine returns the crawl engine.
func (a *App) Engine() *crawler.Engine {
	return a.engine
}

// Handler returns the HTTP API handler.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run serves the HTTP API and blocks until the context is canceled or a
// termination signal arrives. It closes the App before returning.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	closeErr := a.Close(shutdownCtx)

	select {
	case err := <-serveErr:
		return fmt.Errorf("serve http: %w", err)
	default:
		return closeErr
	}
}

// Close stops any active run, flushes the catalog, and releases clients.
// Repeated calls return the first result.
func (a *App) Close(ctx context.Context) error {
	a.closeOnce.Do(func() {
		a.closeErr = a.close(ctx)
	})
	return a.closeErr
}

func (a *App) close(ctx context.Context) error {
	if a.stopEngine != nil {
		a.stopEngine()
	}
	if a.engine != nil {
		a.engine.Wait()
	}
	var err error
	if a.catalog != nil {
		if ferr := a.catalog.Flush(ctx); ferr != nil {
			a.logger.Error("final catalog flush failed", zap.Error(ferr))
			err = ferr
		}
	}
	a.closeInfrastructure(ctx)
	if serr := a.logger.Sync(); serr != nil {
		a.logger.Debug("logger sync failed", zap.Error(serr))
	}
	a.logger.Info("shutdown complete")
	return err
}

func (a *App) closeInfrastructure(ctx context.Context) {
	if a.progressHub != nil {
		if err := a.progressHub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("publisher close failed", zap.Error(err))
		}
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.mirror != nil {
		a.mirror.Close()
	}
}
