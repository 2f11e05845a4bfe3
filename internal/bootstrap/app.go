package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/cassiomorais/checkout/internal/application/checkout"
	"github.com/cassiomorais/checkout/internal/domain/transaction"
	"github.com/cassiomorais/checkout/internal/infrastructure/backend"
	"github.com/cassiomorais/checkout/internal/infrastructure/config"
	"github.com/cassiomorais/checkout/internal/infrastructure/observability"
	infraRedis "github.com/cassiomorais/checkout/internal/infrastructure/redis"
	"github.com/cassiomorais/checkout/internal/repository/postgres"
	"github.com/cassiomorais/checkout/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type App struct {
	Config         *config.Config
	Logger         zerolog.Logger
	Pool           *pgxpool.Pool
	Redis          *redis.Client
	Metrics        *observability.Metrics
	MetricsHandler http.Handler
	Backend        *backend.Client
	Checkout       *service.CheckoutService

	shutdownTracer func(context.Context) error
}

// New loads configuration and wires every dependency of the checkout service.
// Postgres and Redis are only dialed when enabled.
func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.InitLogger(cfg.Observability.LogLevel, os.Stdout)
	if cfg.InstanceID != "" {
		logger = logger.With().Str("instance_id", cfg.InstanceID).Logger()
	}
	logger.Info().Msg("Starting")

	app := &App{Config: cfg, Logger: logger}

	if cfg.Observability.EnableTracing {
		shutdown, err := observability.InitTracer(cfg.Observability.JaegerEndpoint, cfg.Observability.TraceSampleRatio)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		} else {
			app.shutdownTracer = shutdown
			logger.Info().Msg("Tracing enabled")
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.Metrics = observability.NewMetrics(cfg.Observability.MetricsNamespace, registry)
	if cfg.Observability.EnableMetrics {
		app.MetricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
	}

	var journal transaction.EventRepository
	if cfg.Database.Enabled {
		if err := postgres.Migrate(cfg.Database.MigrationURL()); err != nil {
			app.Close(ctx)
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		pool, err := postgres.NewPool(ctx, &cfg.Database)
		if err != nil {
			app.Close(ctx)
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		app.Pool = pool
		journal = postgres.NewEventRepository(pool)
		logger.Info().Msg("Connected to PostgreSQL")
	}

	var (
		locker    checkout.Locker
		publisher service.CompletionPublisher
	)
	if cfg.Redis.Enabled {
		client, err := infraRedis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			app.Close(ctx)
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		app.Redis = client
		locker = infraRedis.NewConfirmLocker(client, cfg.Redis.LockTTL)
		publisher = infraRedis.NewCompletionPublisher(client, cfg.Redis.CompletionStream)
		logger.Info().Msg("Connected to Redis")
	}

	app.Backend = backend.NewClient(backend.Config{
		Timeout:             cfg.Backend.Timeout,
		BreakerMaxRequests:  cfg.Backend.BreakerMaxRequests,
		BreakerInterval:     cfg.Backend.BreakerInterval,
		BreakerTimeout:      cfg.Backend.BreakerTimeout,
		BreakerMinRequests:  cfg.Backend.BreakerMinRequests,
		BreakerFailureRatio: cfg.Backend.BreakerFailureRatio,
	}, app.Metrics, nil)

	app.Checkout = service.NewCheckoutService(
		CheckoutConfig(cfg),
		app.Backend,
		journal,
		locker,
		publisher,
		app.Metrics,
		logger,
	)

	return app, nil
}

// CheckoutConfig maps the loaded configuration onto the session registry settings.
func CheckoutConfig(cfg *config.Config) service.CheckoutConfig {
	return service.CheckoutConfig{
		Engine: checkout.Config{
			CountdownTick:          cfg.Engine.CountdownTick,
			PollInterval:           cfg.Engine.PollInterval,
			RetryAttempts:          cfg.Engine.RetryAttempts,
			RetryDelay:             cfg.Engine.RetryDelay,
			CardGateway:            cfg.Checkout.CardGateway,
			SavedInstrumentGateway: cfg.Checkout.SavedInstrumentGateway,
			DefaultPublicKey:       cfg.Checkout.DefaultPublicKey,
		},
		SessionTTL:      cfg.Checkout.SessionTTL,
		TerminalTTL:     cfg.Checkout.TerminalTTL,
		JanitorInterval: cfg.Checkout.JanitorInterval,
	}
}

// Close stops the open sessions and releases the stores. It is safe on a
// partially built App.
func (a *App) Close(ctx context.Context) {
	if a.Checkout != nil {
		if err := a.Checkout.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("Checkout sessions did not stop in time")
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close redis client")
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	if a.shutdownTracer != nil {
		if err := a.shutdownTracer(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to flush traces")
		}
	}
}
