package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	apperrors "github.com/utafrali/CatalogGo/pkg/errors"
	"github.com/utafrali/CatalogGo/pkg/httputil"
	"github.com/utafrali/CatalogGo/pkg/middleware"
	"github.com/utafrali/CatalogGo/pkg/validator"
	"github.com/utafrali/CatalogGo/services/catalog/internal/service"
)

// ViewRecorder is notified after a product detail is served.
type ViewRecorder interface {
	ProductViewed(ctx context.Context, tenantID, productID int64)
}

// Limits are the request bounds enforced at the HTTP edge. Zero maxima mean
// unbounded.
type Limits struct {
	RelatedDefaultCount int
	RelatedMaxCount     int
	MaxPageSize         int
}

// CatalogHandler handles HTTP requests for the public catalog endpoints.
type CatalogHandler struct {
	service *service.CatalogService
	views   ViewRecorder
	limits  Limits
	logger  *slog.Logger
}

// NewCatalogHandler creates a new catalog HTTP handler. views may be nil.
func NewCatalogHandler(svc *service.CatalogService, views ViewRecorder, limits Limits, logger *slog.Logger) *CatalogHandler {
	if limits.RelatedDefaultCount < 1 {
		limits.RelatedDefaultCount = 4
	}
	return &CatalogHandler{
		service: svc,
		views:   views,
		limits:  limits,
		logger:  logger,
	}
}

// --- Request DTOs ---

// ListProductsQuery is the query string of the product list endpoint.
type ListProductsQuery struct {
	Page        *int             `query:"page" validate:"omitempty,gte=1"`
	PageSize    *int             `query:"pageSize" validate:"omitempty,gte=1"`
	OrderBy     string           `query:"orderBy" validate:"omitempty,oneof=relevance price_asc price_desc rating_desc newest"`
	CategoryIDs string           `query:"categoryIds"`
	FlavorIDs   string           `query:"flavorIds"`
	PriceMin    *decimal.Decimal `query:"priceMin"`
	PriceMax    *decimal.Decimal `query:"priceMax"`
	SearchTerm  string           `query:"searchTerm" validate:"omitempty,max=100"`
}

// RelatedProductsQuery is the query string of the related products endpoint.
type RelatedProductsQuery struct {
	Count int `query:"count" validate:"gte=1"`
}

func (q ListProductsQuery) input() service.ListInput {
	in := service.ListInput{
		SortKey:     q.OrderBy,
		CategoryIDs: q.CategoryIDs,
		FlavorIDs:   q.FlavorIDs,
		PriceMin:    q.PriceMin,
		PriceMax:    q.PriceMax,
		SearchTerm:  q.SearchTerm,
	}
	if q.Page != nil {
		in.Page = *q.Page
	}
	if q.PageSize != nil {
		in.PageSize = *q.PageSize
	}
	return in
}

// --- Handlers ---

// ListProducts handles GET /api/v1/external/product
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}

	q, ok := parseListQuery(w, r.URL.Query())
	if !ok {
		return
	}
	if err := validator.Validate(q); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}
	if h.limits.MaxPageSize > 0 && q.PageSize != nil && *q.PageSize > h.limits.MaxPageSize {
		writeLimitExceeded(w, "pageSize", h.limits.MaxPageSize)
		return
	}

	lq, err := service.BuildListQuery(tenantID, q.input())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	res, err := h.service.List(r.Context(), lq)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, res.Items, &res.Page)
}

// GetProduct handles GET /api/v1/external/product/{id}
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	raw := chi.URLParam(r, "id")
	productID, ok := httputil.ParseID(w, "id", raw)
	if !ok {
		return
	}

	product, found, err := h.service.Get(r.Context(), tenantID, productID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if !found {
		httputil.WriteError(w, r, apperrors.NotFound("product", raw), h.logger)
		return
	}

	httputil.WriteSuccess(w, product, nil)
}

// RecordViews reports a product view after every 200 detail response, whether
// the body came from GetProduct or from the response cache.
func (h *CatalogHandler) RecordViews(next http.Handler) http.Handler {
	if h.views == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		if sw.status != http.StatusOK {
			return
		}

		tenantID, ok := middleware.TenantIDFromContext(r.Context())
		if !ok {
			return
		}
		productID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			return
		}
		h.views.ProductViewed(r.Context(), tenantID, productID)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

// ListRelated handles GET /api/v1/external/product/{id}/related
func (h *CatalogHandler) ListRelated(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	productID, ok := httputil.ParseID(w, "id", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	q := RelatedProductsQuery{Count: h.limits.RelatedDefaultCount}
	if v := r.URL.Query().Get("count"); v != "" {
		count, err := strconv.Atoi(v)
		if err != nil {
			httputil.WriteInvalidParameter(w, "count must be a valid integer")
			return
		}
		q.Count = count
	}
	if err := validator.Validate(q); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}
	if h.limits.RelatedMaxCount > 0 && q.Count > h.limits.RelatedMaxCount {
		writeLimitExceeded(w, "count", h.limits.RelatedMaxCount)
		return
	}

	related, err := h.service.Related(r.Context(), tenantID, productID, q.Count)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, related, nil)
}

// --- Helpers ---

func (h *CatalogHandler) tenant(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := middleware.TenantIDFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, r, apperrors.Unauthorized("tenant is required"), h.logger)
	}
	return id, ok
}

// parseListQuery converts the raw query string into a ListProductsQuery. The
// search term is trimmed before its length is validated.
// Malformed numbers are answered with 400 INVALID_PARAMETER.
func parseListQuery(w http.ResponseWriter, values url.Values) (ListProductsQuery, bool) {
	q := ListProductsQuery{
		OrderBy:     values.Get("orderBy"),
		CategoryIDs: values.Get("categoryIds"),
		FlavorIDs:   values.Get("flavorIds"),
		SearchTerm:  strings.TrimSpace(values.Get("searchTerm")),
	}

	var ok bool
	if q.Page, ok = queryInt(w, values, "page"); !ok {
		return q, false
	}
	if q.PageSize, ok = queryInt(w, values, "pageSize"); !ok {
		return q, false
	}
	if q.PriceMin, ok = queryDecimal(w, values, "priceMin"); !ok {
		return q, false
	}
	if q.PriceMax, ok = queryDecimal(w, values, "priceMax"); !ok {
		return q, false
	}
	return q, true
}

func queryInt(w http.ResponseWriter, values url.Values, name string) (*int, bool) {
	v := values.Get(name)
	if v == "" {
		return nil, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		httputil.WriteInvalidParameter(w, name+" must be a valid integer")
		return nil, false
	}
	return &n, true
}

func queryDecimal(w http.ResponseWriter, values url.Values, name string) (*decimal.Decimal, bool) {
	v := values.Get(name)
	if v == "" {
		return nil, true
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		httputil.WriteInvalidParameter(w, name+" must be a valid number")
		return nil, false
	}
	return &d, true
}

func writeLimitExceeded(w http.ResponseWriter, field string, limit int) {
	httputil.WriteJSON(w, http.StatusBadRequest, httputil.Failure("VALIDATION_ERROR", "request validation failed",
		map[string]string{field: fmt.Sprintf("must be at most %d", limit)}))
}
