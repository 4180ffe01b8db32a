package service

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	apperrors "github.com/utafrali/CatalogGo/pkg/errors"
	"github.com/utafrali/CatalogGo/services/catalog/internal/domain"
)

// List defaults applied when the caller leaves a field at its zero value.
const (
	DefaultPage     = 1
	DefaultPageSize = 12
	DefaultSortKey  = domain.SortRelevance
)

// ListInput holds the raw list parameters as received from a client. Id
// lists are comma-separated strings; zero values mean "not supplied".
type ListInput struct {
	Page        int
	PageSize    int
	SortKey     string
	CategoryIDs string
	FlavorIDs   string
	PriceMin    *decimal.Decimal
	PriceMax    *decimal.Decimal
	SearchTerm  string
}

// BuildListQuery normalizes raw list input into a CatalogQuerySpec for the
// given tenant.
func BuildListQuery(tenantID int64, in ListInput) (domain.CatalogQuerySpec, error) {
	if tenantID < 1 {
		return domain.CatalogQuerySpec{}, apperrors.InvalidArgument("tenant id must be positive, got %d", tenantID)
	}

	lq := domain.CatalogQuerySpec{
		TenantID: tenantID,
		Page:     in.Page,
		PageSize: in.PageSize,
		SortKey:  domain.SortKey(strings.TrimSpace(in.SortKey)),
	}
	if lq.Page == 0 {
		lq.Page = DefaultPage
	}
	if lq.PageSize == 0 {
		lq.PageSize = DefaultPageSize
	}
	if lq.SortKey == "" {
		lq.SortKey = DefaultSortKey
	}

	if lq.Page < 1 {
		return domain.CatalogQuerySpec{}, apperrors.InvalidArgument("page must be at least 1, got %d", lq.Page)
	}
	if lq.PageSize < 1 {
		return domain.CatalogQuerySpec{}, apperrors.InvalidArgument("pageSize must be at least 1, got %d", lq.PageSize)
	}
	if !lq.SortKey.IsValid() {
		return domain.CatalogQuerySpec{}, apperrors.InvalidArgument("unknown sort key %q", lq.SortKey)
	}

	var err error
	if lq.CategoryIDs, err = parseIDList("categoryIds", in.CategoryIDs); err != nil {
		return domain.CatalogQuerySpec{}, err
	}
	if lq.FlavorIDs, err = parseIDList("flavorIds", in.FlavorIDs); err != nil {
		return domain.CatalogQuerySpec{}, err
	}

	if in.PriceMin != nil && in.PriceMin.IsNegative() {
		return domain.CatalogQuerySpec{}, apperrors.InvalidFilter("priceMin must not be negative")
	}
	if in.PriceMax != nil && in.PriceMax.IsNegative() {
		return domain.CatalogQuerySpec{}, apperrors.InvalidFilter("priceMax must not be negative")
	}
	if in.PriceMin != nil && in.PriceMax != nil && in.PriceMin.GreaterThan(*in.PriceMax) {
		return domain.CatalogQuerySpec{}, apperrors.InvalidFilter("priceMin %s must not exceed priceMax %s", in.PriceMin, in.PriceMax)
	}
	lq.PriceMin = in.PriceMin
	lq.PriceMax = in.PriceMax

	lq.SearchTerm = strings.TrimSpace(in.SearchTerm)
	if n := utf8.RuneCountInString(lq.SearchTerm); n > domain.MaxSearchTermLength {
		return domain.CatalogQuerySpec{}, apperrors.InvalidFilter("searchTerm must be at most %d characters, got %d", domain.MaxSearchTermLength, n)
	}

	return lq, nil
}

// parseIDList parses "1, 2,3" into [1 2 3], keeping the first occurrence of
// duplicates. Blank input is no filter and yields nil.
func parseIDList(field, raw string) ([]int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil || id < 1 {
			return nil, apperrors.InvalidFilter("%s: %q is not a positive integer", field, p)
		}
		ids = append(ids, id)
	}
	return lo.Uniq(ids), nil
}
