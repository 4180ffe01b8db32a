package middleware

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/CatalogGo/pkg/logger"
)

// RequestLogger stores a request-scoped logger in context for
// logger.FromContext. The logger carries the method and path plus whatever
// correlation, tenant and trace ids the outer middleware recorded, so it must
// be mounted after RequestLogging, Tracing and Tenant.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := logger.WithContext(r.Context(), base).With(
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			next.ServeHTTP(w, r.WithContext(logger.NewContext(r.Context(), l)))
		})
	}
}
