package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/CatalogGo/pkg/breaker"
	"github.com/utafrali/CatalogGo/pkg/database"
	"github.com/utafrali/CatalogGo/pkg/health"
	"github.com/utafrali/CatalogGo/pkg/httputil"
	pkgkafka "github.com/utafrali/CatalogGo/pkg/kafka"
	"github.com/utafrali/CatalogGo/pkg/middleware"
	"github.com/utafrali/CatalogGo/pkg/tracing"
	"github.com/utafrali/CatalogGo/services/catalog/internal/config"
	"github.com/utafrali/CatalogGo/services/catalog/internal/event"
	handler "github.com/utafrali/CatalogGo/services/catalog/internal/handler/http"
	"github.com/utafrali/CatalogGo/services/catalog/internal/repository"
	"github.com/utafrali/CatalogGo/services/catalog/internal/repository/postgres"
	"github.com/utafrali/CatalogGo/services/catalog/internal/service"
	"github.com/utafrali/CatalogGo/services/catalog/migrations"
)

const serviceName = "catalog-service"

// App wires together all dependencies and runs the catalog service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	events         *event.Producer
	stopRateLimit  func()
	shutdownTracer func(context.Context) error
	httpServer     *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
// Redis and Kafka are optional and only dialed when enabled in cfg.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	// Tracing.
	traceCfg := tracing.DefaultConfig(serviceName)
	traceCfg.Environment = cfg.Environment
	traceCfg.OTLPEndpoint = cfg.OTELEndpoint
	traceCfg.SampleRate = cfg.OTELSampleRate
	traceCfg.Enabled = cfg.OTELEnabled
	shutdownTracer, err := tracing.InitTracer(ctx, traceCfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.shutdownTracer = shutdownTracer

	// Initialize PostgreSQL connection pool.
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)

	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
		logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}
	database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)

	if cfg.RunMigrations {
		if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
			a.close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	// Build the dependency graph.
	cb := breaker.New[[]repository.RowSet](cfg.Breaker(), logger)
	executor := postgres.NewExecutor(pool, cb, logger)
	catalogService := service.NewCatalogService(executor)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})

	// Response cache. A Redis outage at startup disables caching instead of
	// failing the service.
	var cache *middleware.ResponseCache
	if cfg.CacheEnabled() {
		client, err := database.NewRedisClient(ctx, cfg.Redis())
		if err != nil {
			logger.Warn("redis unavailable, response cache disabled", slog.String("error", err.Error()))
		} else {
			a.redis = client
			cache = middleware.NewResponseCache(client, cfg.CacheTTL(), "catalog:resp:", logger)
			healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			})
			logger.Info("response cache enabled",
				slog.String("addr", cfg.Redis().Addr()),
				slog.Duration("ttl", cfg.CacheTTL()),
			)
		}
	}

	// Product view events.
	var views handler.ViewRecorder
	if cfg.ViewEventsEnabled {
		kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
		a.producer = pkgkafka.NewProducer(kafkaCfg, logger)
		a.events = event.NewProducer(a.producer, 0, logger)
		views = a.events
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// HTTP router.
	opts := handler.RouterOptions{
		ServiceName:       serviceName,
		Tenant:            middleware.HeaderTenant(cfg.TenantHeader, cfg.DefaultTenantID),
		Cache:             cache,
		CORS:              cfg.CORS(),
		PprofAllowedCIDRs: cfg.PprofAllowedCIDRs,
	}
	if cfg.RateLimitRPS > 0 {
		opts.RateLimit, a.stopRateLimit = middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, logger)
	}
	if cfg.CacheEnabled() {
		opts.CacheMaxAge = cfg.CacheTTLSeconds
	}

	httputil.ExposeErrorDetails(cfg.IsDevelopment())

	catalogHandler := handler.NewCatalogHandler(catalogService, views, handler.Limits{
		RelatedDefaultCount: cfg.RelatedDefaultCount,
		RelatedMaxCount:     cfg.RelatedMaxCount,
		MaxPageSize:         cfg.MaxPageSize,
	}, logger)
	router := handler.NewRouter(catalogHandler, healthHandler, opts, logger)

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.close()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	// Let in-flight view events drain before the writer closes.
	if a.events != nil {
		if err := a.events.Wait(shutdownCtx); err != nil {
			a.logger.Warn("view events still in flight at shutdown", slog.String("error", err.Error()))
		}
	}

	a.close()

	if err := a.shutdownTracer(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}

// close releases connections. It is safe on a partially built App.
func (a *App) close() {
	if a.stopRateLimit != nil {
		a.stopRateLimit()
		a.stopRateLimit = nil
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
		a.producer = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}
