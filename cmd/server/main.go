// Command server runs the integration hub HTTP API and its background workers.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	appintegration "github.com/erp/integration-hub/internal/application/integration"
	"github.com/erp/integration-hub/internal/domain/integration"
	"github.com/erp/integration-hub/internal/infrastructure/auth"
	"github.com/erp/integration-hub/internal/infrastructure/cache"
	"github.com/erp/integration-hub/internal/infrastructure/config"
	"github.com/erp/integration-hub/internal/infrastructure/delivery"
	"github.com/erp/integration-hub/internal/infrastructure/logger"
	"github.com/erp/integration-hub/internal/infrastructure/migration"
	"github.com/erp/integration-hub/internal/infrastructure/persistence"
	"github.com/erp/integration-hub/internal/infrastructure/persistence/memory"
	"github.com/erp/integration-hub/internal/infrastructure/scheduler"
	"github.com/erp/integration-hub/internal/infrastructure/telemetry"
	"github.com/erp/integration-hub/internal/interfaces/http/handler"
	"github.com/erp/integration-hub/internal/interfaces/http/middleware"
	"github.com/erp/integration-hub/internal/interfaces/http/router"
	"github.com/erp/integration-hub/migrations"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting integration hub",
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("database", cfg.Database.Driver),
	)
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.TracingConfigFrom(cfg.Telemetry), log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfigFrom(cfg.Telemetry), log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	metrics, err := telemetry.NewHubMetrics(meterProvider.Meter(telemetry.TracerName))
	if err != nil {
		log.Fatal("Failed to register hub metrics", zap.Error(err))
	}
	log.Info("Telemetry initialized",
		zap.Bool("tracing", tracerProvider.IsEnabled()),
		zap.Bool("metrics", meterProvider.IsEnabled()),
	)

	repos, err := openStore(cfg, log)
	if err != nil {
		log.Fatal("Failed to open storage", zap.Error(err))
	}
	defer repos.close(log)

	idempotencyCache, err := cache.NewIdempotencyCacheFactory(cfg.Redis, cache.WithLogger(log)).Create()
	if err != nil {
		log.Fatal("Failed to create idempotency cache", zap.Error(err))
	}
	defer func() {
		if err := idempotencyCache.Close(); err != nil {
			log.Error("Error closing idempotency cache", zap.Error(err))
		}
	}()

	dispatcher, closeTransports := newDispatcher(ctx, cfg, log)
	defer closeTransports()

	hub := appintegration.NewHub(appintegration.Dependencies{
		Connectors:      repos.connectors,
		Messages:        repos.messages,
		Transformations: repos.transformations,
		DeadLetters:     repos.deadLetters,
		Cache:           idempotencyCache,
		Gateway:         dispatcher,
		Clock:           time.Now,
		Logger:          log,
		Metrics:         metrics,
	}, settingsFrom(cfg.Hub))

	var workers []worker
	if cfg.Hub.Poller.Enabled {
		workers = append(workers, scheduler.NewRetryPoller(scheduler.RetryPollerConfig{
			Interval:    cfg.Hub.Poller.Interval,
			BatchSize:   cfg.Hub.Poller.BatchSize,
			Concurrency: cfg.Hub.Poller.Concurrency,
			StaleAfter:  cfg.Hub.Poller.StaleAfter,
		}, hub.Router, log))
	}
	if cfg.Hub.Health.Enabled {
		workers = append(workers, scheduler.NewHealthMonitor(scheduler.HealthMonitorConfig{
			Interval: cfg.Hub.Health.Interval,
		}, hub.Connectors, log))
	}
	for _, w := range workers {
		if err := w.Start(ctx); err != nil {
			log.Fatal("Failed to start background worker", zap.Error(err))
		}
	}

	system := handler.NewSystemHandler(repos.pinger, telemetry.ServiceVersion)
	tokens := auth.NewTokenService(cfg.JWT)
	engine, err := router.NewEngine(router.EngineConfig{
		Logger:         log,
		ServiceName:    otelServiceName(cfg.Telemetry),
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		BasePath:       cfg.HTTP.BasePath,
		AdminAuth: middleware.AdminAuth(middleware.AdminAuthConfig{
			Tokens:     tokens,
			Permission: auth.PermissionAdmin,
			Logger:     log,
		}),
	}, router.Handlers{
		Messages:        handler.NewMessageHandler(hub.Router),
		Connectors:      handler.NewConnectorHandler(hub.Connectors),
		Transformations: handler.NewTransformationHandler(hub.Transformations, hub.Engine),
		DeadLetters:     handler.NewDeadLetterHandler(hub.DeadLetters),
		Admin:           handler.NewAdminHandler(hub.Connectors),
		System:          system,
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()
	system.SetReady(true)

	<-ctx.Done()
	log.Info("Shutting down server...")
	system.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	for _, w := range workers {
		if err := w.Stop(shutdownCtx); err != nil {
			log.Error("Background worker did not stop cleanly", zap.Error(err))
		}
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

type worker interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// store holds the repositories for the configured database driver
type store struct {
	connectors      integration.ConnectorRepository
	messages        integration.MessageRepository
	transformations integration.TransformationRepository
	deadLetters     integration.DeadLetterRepository
	pinger          handler.Pinger
	db              *persistence.Database
}

func openStore(cfg *config.Config, log *zap.Logger) (*store, error) {
	if cfg.Database.Driver == "memory" {
		log.Warn("Using in-process storage; state is lost on restart")
		return &store{
			connectors:      memory.NewConnectorRepository(),
			messages:        memory.NewMessageRepository(),
			transformations: memory.NewTransformationRepository(),
			deadLetters:     memory.NewDeadLetterRepository(),
		}, nil
	}

	db, err := persistence.NewDatabase(&cfg.Database, log, logger.MapGormLogLevel(cfg.Log.Level))
	if err != nil {
		return nil, err
	}
	log.Info("Database connected successfully")

	if cfg.Telemetry.Enabled {
		if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfigFrom(cfg.Telemetry, cfg.Database.DBName), log); err != nil {
			return nil, err
		}
	}

	if cfg.Database.Driver == "postgres" && cfg.Database.AutoMigrate {
		sqlDB, err := db.DB.DB()
		if err != nil {
			return nil, err
		}
		m, err := migration.NewFromFS(sqlDB, migrations.FS, log)
		if err != nil {
			return nil, err
		}
		if err := m.Up(); err != nil {
			return nil, err
		}
	}

	return &store{
		connectors:      persistence.NewGormConnectorRepository(db.DB),
		messages:        persistence.NewGormMessageRepository(db.DB),
		transformations: persistence.NewGormTransformationRepository(db.DB),
		deadLetters:     persistence.NewGormDeadLetterRepository(db.DB),
		pinger:          db,
		db:              db,
	}, nil
}

func (s *store) close(log *zap.Logger) {
	if s.db == nil {
		return
	}
	if err := s.db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}
}

// newDispatcher registers every transport the configuration allows. Kafka
// needs brokers; HTTP, S3 and LOOPBACK are always available.
func newDispatcher(ctx context.Context, cfg *config.Config, log *zap.Logger) (*delivery.Dispatcher, func()) {
	opts := []delivery.DispatcherOption{
		delivery.WithDispatcherLogger(log),
		delivery.WithTransport(integration.TransportHTTP, delivery.NewHTTPTransport(
			delivery.WithSigningHeader(cfg.Hub.Delivery.SigningHeader),
			delivery.WithUserAgent(cfg.Hub.Delivery.UserAgent),
		)),
	}
	closers := []func() error{}

	if len(cfg.Kafka.Brokers) > 0 {
		kafkaTransport, err := delivery.NewKafkaTransport(cfg.Kafka)
		if err != nil {
			log.Fatal("Failed to create Kafka transport", zap.Error(err))
		}
		opts = append(opts, delivery.WithTransport(integration.TransportKafka, kafkaTransport))
		closers = append(closers, kafkaTransport.Close)
		log.Info("Kafka transport enabled", zap.Strings("brokers", cfg.Kafka.Brokers))
	}

	s3Transport, err := delivery.NewS3Transport(ctx, cfg.S3)
	if err != nil {
		log.Warn("S3 transport disabled", zap.Error(err))
	} else {
		opts = append(opts, delivery.WithTransport(integration.TransportS3, s3Transport))
	}

	return delivery.NewDispatcher(opts...), func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Error("Error closing transport", zap.Error(err))
			}
		}
	}
}

func settingsFrom(hub config.HubConfig) appintegration.Settings {
	return appintegration.Settings{
		Retry: integration.RetryPolicy{
			BaseDelay:  hub.Retry.BaseDelay,
			MaxDelay:   hub.Retry.MaxDelay,
			Multiplier: hub.Retry.Multiplier,
			MaxRetries: hub.Retry.MaxRetries,
		},
		CircuitCooldown:       hub.Circuit.Cooldown,
		FailureThreshold:      hub.Circuit.FailureThreshold,
		SuccessThreshold:      hub.Circuit.SuccessThreshold,
		CircuitMaxWait:        hub.Circuit.MaxWait,
		DeliveryTimeout:       hub.Delivery.Timeout,
		BulkReprocessLimit:    hub.DLQ.BulkLimit,
		MaxBulkReprocessLimit: hub.DLQ.MaxBulkLimit,
		IdempotencyTTL:        hub.IdempotencyTTL,
	}
}

func otelServiceName(cfg config.TelemetryConfig) string {
	if !cfg.Enabled {
		return ""
	}
	return cfg.ServiceName
}
