package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/iudanet/changesync/internal/reconcile"
	"github.com/iudanet/changesync/internal/server/applier"
	"github.com/iudanet/changesync/internal/server/config"
	"github.com/iudanet/changesync/internal/server/events"
	"github.com/iudanet/changesync/internal/server/handlers"
	"github.com/iudanet/changesync/internal/server/middleware"
	"github.com/iudanet/changesync/internal/server/storage"
	"github.com/iudanet/changesync/internal/server/storage/boltdb"
	"github.com/iudanet/changesync/internal/server/storage/mongodb"
	"github.com/iudanet/changesync/internal/server/storage/sqlite"
	"github.com/iudanet/changesync/internal/server/tracing"
	"github.com/iudanet/changesync/internal/validation"
)

// App собранный сервер со всеми ресурсами
type App struct {
	logger      *slog.Logger
	store       storage.RecordStorage
	hub         *events.Hub
	rateLimiter *middleware.RateLimiter
	handler     http.Handler
	closers     []func() error
	cfg         *config.Config
}

// New открывает хранилище, подключает приемники событий и собирает маршруты
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, version string) (*App, error) {
	policy, err := reconcile.ParsePolicy(cfg.Sync.Policy)
	if err != nil {
		return nil, err
	}

	store, err := OpenStorage(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}

	app := &App{
		logger: logger,
		store:  store,
		cfg:    cfg,
	}
	app.closers = append(app.closers, store.Close)

	if err := app.setupTracing(version); err != nil {
		_ = app.Close()
		return nil, err
	}

	publishers, err := app.buildPublishers(ctx)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	a := applier.New(store, logger,
		applier.WithPolicy(policy),
		applier.WithProvenance(cfg.Sync.Provenance),
	)

	syncHandler := handlers.NewSyncHandler(logger, a,
		validation.NewBatchValidator(cfg.Sync.MaxBatchSize),
		publishers,
		handlers.SyncConfig{
			MaxBodyBytes:   cfg.Sync.MaxBodyBytes,
			PublishTimeout: cfg.Sync.PublishTimeout,
		})

	if cfg.RateLimit.Requests > 0 {
		app.rateLimiter = middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, logger)
	}

	routes := Routes{
		Logger:      logger,
		Sync:        syncHandler,
		Health:      handlers.NewHealthHandler(logger, store, version),
		RateLimiter: app.rateLimiter,
		Token:       cfg.Token,
	}
	if app.hub != nil {
		routes.Events = app.hub
	}
	app.handler = NewRouter(routes)

	logger.Info("Server configured",
		slog.String("storage", cfg.Storage.Driver),
		slog.String("policy", policy.Name()),
		slog.String("provenance", cfg.Sync.Provenance),
		slog.Int("publishers", len(publishers)),
		slog.String("tracing", cfg.Tracing.Exporter),
	)

	return app, nil
}

// OpenStorage открывает хранилище записей по настройкам
func OpenStorage(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (storage.RecordStorage, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		s, err := sqlite.New(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite storage: %w", err)
		}
		return s, nil
	case config.DriverBolt:
		s, err := boltdb.New(ctx, cfg.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open bolt storage: %w", err)
		}
		return s, nil
	case config.DriverMongo:
		s, err := mongodb.New(ctx, logger, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("failed to open mongo storage: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// setupTracing устанавливает глобальный TracerProvider.
// При exporter none глобальный провайдер не трогается.
func (a *App) setupTracing(version string) error {
	if a.cfg.Tracing.Exporter == config.TraceExporterNone {
		return nil
	}

	p, err := tracing.New(a.cfg.Tracing, version, os.Stderr)
	if err != nil {
		return err
	}
	otel.SetTracerProvider(p.TracerProvider())

	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		return p.Shutdown(ctx)
	})
	return nil
}

func (a *App) buildPublishers(ctx context.Context) (events.Multi, error) {
	var pubs events.Multi
	ev := a.cfg.Events

	if ev.Log {
		pubs = append(pubs, events.NewLogPublisher(a.logger))
	}

	if ev.WebSocket {
		a.hub = events.NewHub(a.logger)
		pubs = append(pubs, a.hub)
		a.closers = append(a.closers, func() error {
			a.hub.Close()
			return nil
		})
	}

	if ev.RedisAddr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{ev.RedisAddr},
		})
		a.closers = append(a.closers, client.Close)
		pubs = append(pubs, events.NewRedisPublisher(client, ev.RedisChannel))
	}

	if ev.PubSubProject != "" {
		p, err := events.NewPubSubPublisher(ctx, ev.PubSubProject, ev.PubSubTopic)
		if err != nil {
			return nil, fmt.Errorf("failed to create pubsub publisher: %w", err)
		}
		a.closers = append(a.closers, p.Close)
		pubs = append(pubs, p)
	}

	return pubs, nil
}

// Handler возвращает корневой HTTP обработчик
func (a *App) Handler() http.Handler {
	return a.handler
}

// Run обслуживает запросы до отмены ctx, затем корректно останавливает сервер
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Server listening", slog.String("addr", a.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down server")

	// Websocket соединения не завершаются через Shutdown, их закрывает hub
	if a.hub != nil {
		a.hub.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// Close освобождает ресурсы в обратном порядке открытия
func (a *App) Close() error {
	if a.rateLimiter != nil {
		a.rateLimiter.Stop()
	}

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
