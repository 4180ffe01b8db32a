package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/CatalogGo/pkg/errors"
	"github.com/utafrali/CatalogGo/pkg/health"
	"github.com/utafrali/CatalogGo/pkg/httputil"
	"github.com/utafrali/CatalogGo/pkg/middleware"
	"github.com/utafrali/CatalogGo/services/catalog/internal/repository"
	"github.com/utafrali/CatalogGo/services/catalog/internal/service"
)

// =============================================================================
// Mock QueryExecutor
// =============================================================================

type mockExecutor struct {
	mock.Mock
}

func (m *mockExecutor) Execute(ctx context.Context, queryID string, params map[string]any) ([]repository.RowSet, error) {
	args := m.Called(ctx, queryID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.RowSet), args.Error(1)
}

type recordedView struct {
	tenantID, productID int64
}

type fakeViews struct {
	mu    sync.Mutex
	views []recordedView
}

func (f *fakeViews) ProductViewed(_ context.Context, tenantID, productID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.views = append(f.views, recordedView{tenantID, productID})
}

// =============================================================================
// Test helpers
// =============================================================================

func catalogTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testServer struct {
	exec   *mockExecutor
	views  *fakeViews
	router http.Handler
}

func newTestServer(t *testing.T, limits Limits, opts RouterOptions) *testServer {
	t.Helper()
	exec := new(mockExecutor)
	views := &fakeViews{}
	logger := catalogTestLogger()

	if opts.Tenant == nil {
		opts.Tenant = middleware.HeaderTenant(middleware.DefaultTenantHeader, 1)
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "catalog-test"
	}

	h := NewCatalogHandler(service.NewCatalogService(exec), views, limits, logger)
	return &testServer{
		exec:   exec,
		views:  views,
		router: NewRouter(h, health.NewHandler(), opts, logger),
	}
}

func (s *testServer) get(t *testing.T, target string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func summaryRows(total int64, n int) repository.RowSet {
	set := repository.RowSet{}
	for i := 1; i <= n; i++ {
		set = append(set, repository.Row{
			"id":                int64(i),
			"name":              "Brigadeiro",
			"base_price":        decimal.RequireFromString("3.50"),
			"preparation_time":  "1 day",
			"confectioner_name": "Doce Lar",
			"primary_image_url": nil,
			"average_rating":    4.5,
			"review_count":      int64(3),
			"total":             total,
		})
	}
	return set
}

func detailSets() []repository.RowSet {
	return []repository.RowSet{
		{{
			"id": int64(7), "name": "Bolo de Cenoura", "description": "Carrot cake",
			"ingredients_json": `["carrot","flour"]`, "base_price": decimal.RequireFromString("49.90"),
			"preparation_time": "2 days", "category_id": int64(3), "category_name": "Cakes",
			"confectioner_id": int64(11), "confectioner_name": "Doce Lar", "confectioner_image_url": nil,
			"average_rating": 4.5, "review_count": int64(0),
		}},
		{}, {}, {}, {},
	}
}

// =============================================================================
// List
// =============================================================================

func TestListProducts_Success(t *testing.T) {
	s := newTestServer(t, Limits{}, RouterOptions{})
	s.exec.On("Execute", mock.Anything, repository.QueryProductList, mock.MatchedBy(func(p map[string]any) bool {
		return p["idAccount"] == int64(5) && p["pageNumber"] == 2 && p["pageSize"] == 12 &&
			p["orderBy"] == "price_asc" && p["categoryIds"] == "[1,2,3]" && p["flavorIds"] == nil
	})).Return([]repository.RowSet{summaryRows(37, 12)}, nil)

	rec := s.get(t, "/api/v1/external/product?page=2&pageSize=12&orderBy=price_asc&categoryIds=1,2,3",
		middleware.DefaultTenantHeader, "5")

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success  bool             `json:"success"`
		Data     []map[string]any `json:"data"`
		Metadata map[string]any   `json:"metadata"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Len(t, body.Data, 12)
	assert.NotContains(t, body.Data[0], "total")
	assert.Equal(t, "3.5", body.Data[0]["basePrice"])
	assert.Equal(t, float64(2), body.Metadata["page"])
	assert.Equal(t, float64(12), body.Metadata["pageSize"])
	assert.Equal(t, float64(37), body.Metadata["totalItems"])
	assert.Equal(t, float64(4), body.Metadata["totalPages"])
	assert.Contains(t, body.Metadata, "timestamp")
	s.exec.AssertExpectations(t)
}

func TestListProducts_DefaultsAndEmpty(t *testing.T) {
	s := newTestServer(t, Limits{}, RouterOptions{})
	s.exec.On("Execute", mock.Anything, repository.QueryProductList, mock.MatchedBy(func(p map[string]any) bool {
		return p["idAccount"] == int64(1) && p["pageNumber"] == 1 && p["pageSize"] == 12 && p["orderBy"] == "relevance"
	})).Return([]repository.RowSet{{}}, nil)

	rec := s.get(t, "/api/v1/external/product")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data     []any          `json:"data"`
		Metadata map[string]any `json:"metadata"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.NotNil(t, body.Data)
	assert.Empty(t, body.Data)
	assert.Equal(t, float64(0), body.Metadata["totalPages"])
}

func TestListProducts_SearchTermTrimmedBeforeLengthCheck(t *testing.T) {
	term := strings.Repeat("a", 100)
	s := newTestServer(t, Limits{}, RouterOptions{})
	s.exec.On("Execute", mock.Anything, repository.QueryProductList, mock.MatchedBy(func(p map[string]any) bool {
		return p["searchTerm"] == term
	})).Return([]repository.RowSet{{}}, nil)

	rec := s.get(t, "/api/v1/external/product?searchTerm="+url.QueryEscape("  "+term+"  "))

	assert.Equal(t, http.StatusOK, rec.Code)
	s.exec.AssertExpectations(t)
}

func TestListProducts_SearchTermTooLong(t *testing.T) {
	s := newTestServer(t, Limits{}, RouterOptions{})

	rec := s.get(t, "/api/v1/external/product?searchTerm="+strings.Repeat("b", 101))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	s.exec.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything)
}

func TestListProducts_BadRequests(t *testing.T) {
	tests := []struct {
		name  string
		query string
		code  string
	}{
		{"page not a number", "page=abc", "INVALID_PARAMETER"},
		{"pageSize not a number", "pageSize=1.5", "INVALID_PARAMETER"},
		{"priceMin not a number", "priceMin=cheap", "INVALID_PARAMETER"},
		{"page zero", "page=0", "VALIDATION_ERROR"},
		{"negative pageSize", "pageSize=-1", "VALIDATION_ERROR"},
		{"unknown orderBy", "orderBy=name_asc", "VALIDATION_ERROR"},
		{"bad category id", "categoryIds=1,x", "INVALID_FILTER"},
		{"zero flavor id", "flavorIds=0", "INVALID_FILTER"},
		{"inverted price range", "priceMin=10&priceMax=5", "INVALID_FILTER"},
		{"negative price", "priceMin=-1", "INVALID_FILTER"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, Limits{}, RouterOptions{})

			rec := s.get(t, "/api/v1/external/product?"+tt.query)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeResponse(t, rec)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			s.exec.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestListProducts_PageSizeCap(t *testing.T) {
	s := newTestServer(t, Limits{MaxPageSize: 50}, RouterOptions{})

	rec := s.get(t, "/api/v1/external/product?pageSize=51")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Equal(t, map[string]any{"pageSize": "must be at most 50"}, resp.Error.Details)
}

func TestListProducts_MissingTenant(t *testing.T) {
	s := newTestServer(t, Limits{}, RouterOptions{Tenant: middleware.HeaderTenant(middleware.DefaultTenantHeader, 0)})

	rec := s.get(t, "/api/v1/external/product")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	s.exec.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything)
}

func TestListProducts_DataStoreUnavailable(t *testing.T) {
	s := newTestServer(t, Limits{}, RouterOptions{})
	s.exec.On("Execute", mock.Anything, repository.QueryProductList, mock.Anything).
		Return(nil, apperrors.DataStore(repository.QueryProductList, errors.New("circuit breaker is open"), true))

	rec := s.get(t, "/api/v1/external/product")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "DATA_STORE_ERROR", resp.Error.Code)
	assert.Nil(t, resp.Error.Details)
}

// =============================================================================
// Get
// =============================================================================

func TestGetProduct_Success(t *testing.T) {
	s := newTestServer(t, Limits{}, RouterOptions{})
	s.exec.On("Execute", mock.Anything, repository.QueryProductGet, map[string]any{"idAccount": int64(1), "idProduct": int64(7)}).
		Return(detailSets(), nil)

	rec := s.get(t, "/api/v1/external/product/7")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "Bolo de Cenoura", body.Data["name"])
	assert.Equal(t, []any{"carrot", "flour"}, body.Data["ingredients"])
	assert.Equal(t, map[string]any{"id": float64(3), "name": "Cakes"}, body.Data["category"])
	assert.Equal(t, []any{}, body.Data["images"])

	assert.Equal(t, []recordedView{{1, 7}}, s.views.views)
}

func TestGetProduct_NotFound(t *testing.T) {
	s := newTestServer(t, Limits{}, RouterOptions{})
	sets := detailSets()
	sets[0] = repository.RowSet{}
	s.exec.On("Execute", mock.Anything, repository.QueryProductGet, mock.Anything).Return(sets, nil)

	rec := s.get(t, "/api/v1/external/product/404")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	assert.Empty(t, s.views.views, "a miss is not a view")
}

func TestGetProduct_InvalidID(t *testing.T) {
	s := newTestServer(t, Limits{}, RouterOptions{})

	rec := s.get(t, "/api/v1/external/product/abc")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "INVALID_PARAMETER", resp.Error.Code)
}

func TestGetProduct_MalformedResultSet(t *testing.T) {
	s := newTestServer(t, Limits{}, RouterOptions{})
	s.exec.On("Execute", mock.Anything, repository.QueryProductGet, mock.Anything).Return(detailSets()[:4], nil)

	rec := s.get(t, "/api/v1/external/product/7")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "MALFORMED_RESULT_SET", resp.Error.Code)
}

func TestGetProduct_CorruptIngredients(t *testing.T) {
	s := newTestServer(t, Limits{}, RouterOptions{})
	sets := detailSets()
	sets[0][0]["ingredients_json"] = `{"not":"a list"}`
	s.exec.On("Execute", mock.Anything, repository.QueryProductGet, mock.Anything).Return(sets, nil)

	rec := s.get(t, "/api/v1/external/product/7")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "CORRUPT_RECORD", resp.Error.Code)
}

// =============================================================================
// Related
// =============================================================================

func relatedRows() []repository.RowSet {
	return []repository.RowSet{{
		{"id": int64(8), "name": "Pudim", "base_price": decimal.NewFromInt(12), "primary_image_url": nil, "average_rating": 4.0},
	}}
}

func TestListRelated_DefaultCount(t *testing.T) {
	s := newTestServer(t, Limits{RelatedDefaultCount: 4}, RouterOptions{})
	s.exec.On("Execute", mock.Anything, repository.QueryProductRelated,
		map[string]any{"idAccount": int64(1), "idProduct": int64(7), "count": 4}).Return(relatedRows(), nil)

	rec := s.get(t, "/api/v1/external/product/7/related")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "Pudim", body.Data[0]["name"])
	s.exec.AssertExpectations(t)
}

func TestListRelated_ExplicitCountUncapped(t *testing.T) {
	s := newTestServer(t, Limits{}, RouterOptions{})
	s.exec.On("Execute", mock.Anything, repository.QueryProductRelated,
		map[string]any{"idAccount": int64(1), "idProduct": int64(7), "count": 500}).Return([]repository.RowSet{{}}, nil)

	rec := s.get(t, "/api/v1/external/product/7/related?count=500")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data []any `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, []any{}, body.Data)
}

func TestListRelated_BadCount(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		limits Limits
		code   string
	}{
		{"not a number", "count=many", Limits{}, "INVALID_PARAMETER"},
		{"zero", "count=0", Limits{}, "VALIDATION_ERROR"},
		{"above cap", "count=21", Limits{RelatedMaxCount: 20}, "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.limits, RouterOptions{})

			rec := s.get(t, "/api/v1/external/product/7/related?"+tt.query)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeResponse(t, rec)
			assert.Equal(t, tt.code, resp.Error.Code)
			s.exec.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

// =============================================================================
// Router
// =============================================================================

func TestRouter_UnknownRoute(t *testing.T) {
	s := newTestServer(t, Limits{}, RouterOptions{})

	rec := s.get(t, "/api/v1/nope")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "ROUTE_NOT_FOUND", resp.Error.Code)
	assert.Equal(t, "Cannot GET /api/v1/nope", resp.Error.Message)
}

func TestRouter_UnsupportedMethod(t *testing.T) {
	s := newTestServer(t, Limits{}, RouterOptions{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/external/product", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "Cannot POST /api/v1/external/product", resp.Error.Message)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	s := newTestServer(t, Limits{}, RouterOptions{})

	assert.Equal(t, http.StatusOK, s.get(t, "/health/live").Code)
	assert.Equal(t, http.StatusOK, s.get(t, "/health/ready").Code)

	rec := s.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRouter_ResponseCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := middleware.NewResponseCache(client, time.Minute, "catalog:resp:", catalogTestLogger())
	s := newTestServer(t, Limits{}, RouterOptions{Cache: cache, CacheMaxAge: 60})
	s.exec.On("Execute", mock.Anything, repository.QueryProductList, mock.Anything).
		Return([]repository.RowSet{summaryRows(1, 1)}, nil).Once()

	first := s.get(t, "/api/v1/external/product?page=1")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	assert.Equal(t, "public, max-age=60", first.Header().Get("Cache-Control"))

	second := s.get(t, "/api/v1/external/product?page=1")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	firstResp, secondResp := decodeResponse(t, first), decodeResponse(t, second)
	assert.Equal(t, firstResp.Data, secondResp.Data)
	assert.Equal(t, firstResp.Metadata.Metadata, secondResp.Metadata.Metadata)
	s.exec.AssertNumberOfCalls(t, "Execute", 1)

	assert.True(t, mr.Exists("catalog:resp:1:/api/v1/external/product?page=1"), "entries are keyed by tenant")
}

func TestRouter_CachedDetailStillRecordsViews(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := middleware.NewResponseCache(client, time.Minute, "catalog:resp:", catalogTestLogger())
	s := newTestServer(t, Limits{}, RouterOptions{Cache: cache})
	s.exec.On("Execute", mock.Anything, repository.QueryProductGet, mock.Anything).
		Return(detailSets(), nil).Once()

	first := s.get(t, "/api/v1/external/product/7")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := s.get(t, "/api/v1/external/product/7")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))

	s.exec.AssertNumberOfCalls(t, "Execute", 1)
	assert.Equal(t, []recordedView{{1, 7}, {1, 7}}, s.views.views)
}

func TestRouter_CachedNotFoundRecordsNoView(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := middleware.NewResponseCache(client, time.Minute, "catalog:resp:", catalogTestLogger())
	s := newTestServer(t, Limits{}, RouterOptions{Cache: cache})
	sets := detailSets()
	sets[0] = repository.RowSet{}
	s.exec.On("Execute", mock.Anything, repository.QueryProductGet, mock.Anything).Return(sets, nil)

	rec := s.get(t, "/api/v1/external/product/404")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, s.views.views)
}

func TestRouter_RateLimit(t *testing.T) {
	limit, stop := middleware.RateLimit(1, 1, catalogTestLogger())
	t.Cleanup(stop)

	s := newTestServer(t, Limits{}, RouterOptions{RateLimit: limit})
	s.exec.On("Execute", mock.Anything, repository.QueryProductList, mock.Anything).
		Return([]repository.RowSet{{}}, nil)

	assert.Equal(t, http.StatusOK, s.get(t, "/api/v1/external/product").Code)
	rec := s.get(t, "/api/v1/external/product")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}
