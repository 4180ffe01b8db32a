package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/utafrali/CatalogGo/pkg/errors"
	"github.com/utafrali/CatalogGo/pkg/httputil"
	"github.com/utafrali/CatalogGo/pkg/logger"
)

type contextKeyType string

const tenantIDKey contextKeyType = "tenant_id"

// DefaultTenantHeader carries the account id on catalog requests.
const DefaultTenantHeader = "X-Tenant-ID"

// TenantResolver extracts the tenant (account) id from a request. It returns
// an *apperrors.AppError describing why no tenant could be resolved.
type TenantResolver func(r *http.Request) (int64, error)

// HeaderTenant resolves the tenant from the named header. When the header is
// absent, fallback is used if positive; otherwise the request is unauthorized.
func HeaderTenant(header string, fallback int64) TenantResolver {
	if header == "" {
		header = DefaultTenantHeader
	}
	return func(r *http.Request) (int64, error) {
		raw := strings.TrimSpace(r.Header.Get(header))
		if raw == "" {
			if fallback > 0 {
				return fallback, nil
			}
			return 0, apperrors.Unauthorized("missing " + header + " header")
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 1 {
			return 0, apperrors.InvalidInput(header + " must be a positive integer")
		}
		return id, nil
	}
}

// Tenant resolves the tenant for every request and stores it in context for
// TenantIDFromContext. Requests without a resolvable tenant are rejected.
func Tenant(resolve TenantResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := resolve(r)
			if err != nil {
				httputil.WriteError(w, r, err, nil)
				return
			}
			trace.SpanFromContext(r.Context()).SetAttributes(attribute.Int64("catalog.tenant_id", id))
			ctx := logger.WithTenantID(WithTenantID(r.Context(), id), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithTenantID returns a copy of ctx carrying the tenant id.
func WithTenantID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, tenantIDKey, id)
}

// TenantIDFromContext extracts the tenant id set by the Tenant middleware.
func TenantIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(tenantIDKey).(int64)
	return id, ok && id > 0
}
