package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/CatalogGo/pkg/health"
	"github.com/utafrali/CatalogGo/pkg/httputil"
	"github.com/utafrali/CatalogGo/pkg/middleware"
)

// RouterOptions carries the edge policies applied to the public routes.
type RouterOptions struct {
	ServiceName string
	Tenant      middleware.TenantResolver

	// RateLimit is mounted on the public routes when non-nil.
	RateLimit func(http.Handler) http.Handler

	// Cache may be nil or disabled.
	Cache *middleware.ResponseCache

	// CacheMaxAge sets a public Cache-Control max-age in seconds; 0 omits it.
	CacheMaxAge int

	// CORS falls back to middleware.DefaultCORSConfig when no origin is set.
	CORS middleware.CORSConfig

	PprofAllowedCIDRs []string
}

// NewRouter creates a chi router with all catalog service routes registered.
func NewRouter(
	catalogHandler *CatalogHandler,
	healthHandler *health.Handler,
	opts RouterOptions,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(opts.ServiceName))
	r.Use(middleware.PrometheusMetrics(opts.ServiceName))
	cors := opts.CORS
	if len(cors.AllowedOrigins) == 0 {
		cors = middleware.DefaultCORSConfig()
	}
	r.Use(middleware.CORS(cors))

	r.NotFound(routeNotFound)
	r.MethodNotAllowed(routeNotFound)

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())

	r.Handle("/metrics", promhttp.Handler())
	middleware.RegisterPprof(r, opts.PprofAllowedCIDRs, logger)

	// Catalog API endpoints
	r.Route("/api/v1/external/product", func(r chi.Router) {
		if opts.RateLimit != nil {
			r.Use(opts.RateLimit)
		}
		r.Use(middleware.Tenant(opts.Tenant))
		r.Use(middleware.RequestLogger(logger))
		if opts.CacheMaxAge > 0 {
			r.Use(middleware.CacheControl(opts.CacheMaxAge))
		}
		cached := opts.Cache.Middleware

		r.With(cached).Get("/", catalogHandler.ListProducts)
		r.With(catalogHandler.RecordViews, cached).Get("/{id}", catalogHandler.GetProduct)
		r.With(cached).Get("/{id}/related", catalogHandler.ListRelated)
	})

	return r
}

func routeNotFound(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusNotFound,
		httputil.Failure("ROUTE_NOT_FOUND", fmt.Sprintf("Cannot %s %s", r.Method, r.URL.Path), nil))
}
