package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// catalogMethods are the only methods the public catalog answers.
var catalogMethods = []string{http.MethodGet, http.MethodHead, http.MethodOptions}

// CORSConfig configures cross-origin access to the catalog routes.
type CORSConfig struct {
	// AllowedOrigins lists exact origins. A "*" entry allows any origin.
	AllowedOrigins []string

	// AllowedHeaders defaults to the headers a storefront sends.
	AllowedHeaders []string

	ExposedHeaders []string

	// MaxAge is the preflight cache lifetime in seconds; 0 means one hour.
	MaxAge int
}

// DefaultCORSConfig allows any origin to read the catalog.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"Accept", "Content-Type", CorrelationHeader, DefaultTenantHeader},
		ExposedHeaders: []string{CorrelationHeader, "X-Cache"},
		MaxAge:         3600,
	}
}

// CORS answers preflight requests itself and decorates every other response
// with the allow headers for a permitted origin. Catalog routes are read-only,
// so the advertised methods are fixed.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	if len(cfg.AllowedHeaders) == 0 {
		cfg.AllowedHeaders = DefaultCORSConfig().AllowedHeaders
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 3600
	}

	anyOrigin := slices.Contains(cfg.AllowedOrigins, "*")
	methods := strings.Join(catalogMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")
	exposed := strings.Join(cfg.ExposedHeaders, ", ")
	maxAge := strconv.Itoa(cfg.MaxAge)

	allowOrigin := func(origin string) string {
		switch {
		case anyOrigin:
			return "*"
		case origin != "" && slices.Contains(cfg.AllowedOrigins, origin):
			return origin
		default:
			return ""
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if !anyOrigin {
				h.Add("Vary", "Origin")
			}
			allowed := allowOrigin(r.Header.Get("Origin"))
			if allowed != "" {
				h.Set("Access-Control-Allow-Origin", allowed)
				if exposed != "" {
					h.Set("Access-Control-Expose-Headers", exposed)
				}
			}

			if r.Method != http.MethodOptions || r.Header.Get("Access-Control-Request-Method") == "" {
				next.ServeHTTP(w, r)
				return
			}

			if allowed != "" {
				h.Set("Access-Control-Allow-Methods", methods)
				h.Set("Access-Control-Allow-Headers", headers)
				h.Set("Access-Control-Max-Age", maxAge)
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
