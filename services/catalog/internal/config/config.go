package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/utafrali/CatalogGo/pkg/breaker"
	pkgconfig "github.com/utafrali/CatalogGo/pkg/config"
	"github.com/utafrali/CatalogGo/pkg/database"
	"github.com/utafrali/CatalogGo/pkg/middleware"
)

// Config holds all configuration for the catalog service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"CATALOG_HTTP_PORT" envDefault:"8010"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"catalog"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"catalog_secret"`
	PostgresDB   string `env:"CATALOG_DB_NAME" envDefault:"catalog_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Apply embedded migrations at startup
	RunMigrations bool `env:"RUN_MIGRATIONS" envDefault:"false"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`
	DBStatementTimeoutMs  int   `env:"DB_STATEMENT_TIMEOUT_MS" envDefault:"5000"`

	// Catalog behaviour
	DefaultTenantID     int64  `env:"CATALOG_DEFAULT_TENANT_ID" envDefault:"0"`
	TenantHeader        string `env:"CATALOG_TENANT_HEADER" envDefault:"X-Tenant-ID"`
	RelatedDefaultCount int    `env:"CATALOG_RELATED_DEFAULT_COUNT" envDefault:"4"`
	RelatedMaxCount     int    `env:"CATALOG_RELATED_MAX_COUNT" envDefault:"0"`
	MaxPageSize         int    `env:"CATALOG_MAX_PAGE_SIZE" envDefault:"0"`

	// Redis response cache
	RedisHost       string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort       int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword   string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB         int    `env:"REDIS_DB" envDefault:"0"`
	CacheTTLSeconds int    `env:"CATALOG_CACHE_TTL_SECONDS" envDefault:"0"`

	// Kafka
	KafkaBrokers      []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	ViewEventsEnabled bool     `env:"CATALOG_VIEW_EVENTS_ENABLED" envDefault:"false"`

	// Rate limiting (per client IP; 0 disables)
	RateLimitRPS   int `env:"RATE_LIMIT_RPS" envDefault:"50"`
	RateLimitBurst int `env:"RATE_LIMIT_BURST" envDefault:"100"`

	// Circuit breaker around the query executor
	CBTimeoutSeconds int     `env:"CIRCUIT_BREAKER_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio   float64 `env:"CIRCUIT_BREAKER_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests    uint32  `env:"CIRCUIT_BREAKER_MIN_REQUESTS" envDefault:"5"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Browser origins allowed to call the catalog ("*" allows any)
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load catalog config: %w", err)
	}
	return cfg, nil
}

// Validate checks the parsed configuration.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	if c.PostgresUser == "" {
		return fmt.Errorf("POSTGRES_USER is required")
	}
	if c.DefaultTenantID < 0 {
		return fmt.Errorf("CATALOG_DEFAULT_TENANT_ID must not be negative, got %d", c.DefaultTenantID)
	}
	if c.TenantHeader == "" {
		return fmt.Errorf("CATALOG_TENANT_HEADER is required")
	}
	if c.RelatedDefaultCount < 1 {
		return fmt.Errorf("CATALOG_RELATED_DEFAULT_COUNT must be at least 1, got %d", c.RelatedDefaultCount)
	}
	if c.RelatedMaxCount < 0 {
		return fmt.Errorf("CATALOG_RELATED_MAX_COUNT must not be negative, got %d", c.RelatedMaxCount)
	}
	if c.RelatedMaxCount > 0 && c.RelatedDefaultCount > c.RelatedMaxCount {
		return fmt.Errorf("CATALOG_RELATED_DEFAULT_COUNT (%d) exceeds CATALOG_RELATED_MAX_COUNT (%d)", c.RelatedDefaultCount, c.RelatedMaxCount)
	}
	if c.MaxPageSize < 0 {
		return fmt.Errorf("CATALOG_MAX_PAGE_SIZE must not be negative, got %d", c.MaxPageSize)
	}
	if c.DBStatementTimeoutMs < 0 {
		return fmt.Errorf("DB_STATEMENT_TIMEOUT_MS must not be negative, got %d", c.DBStatementTimeoutMs)
	}
	if c.CacheTTLSeconds < 0 {
		return fmt.Errorf("CATALOG_CACHE_TTL_SECONDS must not be negative, got %d", c.CacheTTLSeconds)
	}
	if c.ViewEventsEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when CATALOG_VIEW_EVENTS_ENABLED is set")
	}
	if c.CBFailureRatio <= 0 || c.CBFailureRatio > 1.0 {
		return fmt.Errorf("CIRCUIT_BREAKER_FAILURE_RATIO must be in (0, 1], got %f", c.CBFailureRatio)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// IsDevelopment reports whether the service runs in the development environment.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Postgres returns the connection settings for the catalog database.
func (c *Config) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		Host:             c.PostgresHost,
		Port:             c.PostgresPort,
		User:             c.PostgresUser,
		Password:         c.PostgresPass,
		DBName:           c.PostgresDB,
		SSLMode:          c.PostgresSSL,
		ApplicationName:  "catalog-service",
		StatementTimeout: time.Duration(c.DBStatementTimeoutMs) * time.Millisecond,
		MaxConns:         c.DBMaxConns,
		MinConns:         c.DBMinConns,
		MaxConnLifetime:  time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime:  time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// Redis returns the connection settings for the response cache.
func (c *Config) Redis() database.RedisConfig {
	cfg := database.DefaultRedisConfig()
	cfg.Host = c.RedisHost
	cfg.Port = c.RedisPort
	cfg.Password = c.RedisPassword
	cfg.DB = c.RedisDB
	return cfg
}

// CacheEnabled reports whether catalog responses are cached in Redis.
func (c *Config) CacheEnabled() bool {
	return c.CacheTTLSeconds > 0
}

// CacheTTL returns the response cache lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// CORS returns the cross-origin policy for the public routes. The configured
// tenant header is always allowed.
func (c *Config) CORS() middleware.CORSConfig {
	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = c.CORSAllowedOrigins
	if !slices.Contains(cors.AllowedHeaders, c.TenantHeader) {
		cors.AllowedHeaders = append(cors.AllowedHeaders, c.TenantHeader)
	}
	return cors
}

// Breaker returns the circuit breaker settings for the query executor.
func (c *Config) Breaker() breaker.Config {
	cfg := breaker.DefaultConfig("catalog-postgres")
	cfg.Timeout = time.Duration(c.CBTimeoutSeconds) * time.Second
	cfg.FailureRatio = c.CBFailureRatio
	cfg.MinRequests = c.CBMinRequests
	return cfg
}
