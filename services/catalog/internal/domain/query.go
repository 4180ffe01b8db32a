package domain

import (
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// SortKey orders a catalog list.
type SortKey string

// Supported sort keys.
const (
	SortRelevance  SortKey = "relevance"
	SortPriceAsc   SortKey = "price_asc"
	SortPriceDesc  SortKey = "price_desc"
	SortRatingDesc SortKey = "rating_desc"
	SortNewest     SortKey = "newest"
)

// ValidSortKeys returns the sort keys in documentation order.
func ValidSortKeys() []SortKey {
	return []SortKey{SortRelevance, SortPriceAsc, SortPriceDesc, SortRatingDesc, SortNewest}
}

// IsValid reports whether k is a supported sort key.
func (k SortKey) IsValid() bool {
	for _, v := range ValidSortKeys() {
		if v == k {
			return true
		}
	}
	return false
}

// MaxSearchTermLength bounds the free-text search term, in characters.
const MaxSearchTermLength = 100

// CatalogQuerySpec is a normalized list query. A nil id slice or price
// pointer means the filter is absent; an empty SearchTerm means no search.
type CatalogQuerySpec struct {
	TenantID    int64
	Page        int
	PageSize    int
	SortKey     SortKey
	CategoryIDs []int64
	FlavorIDs   []int64
	PriceMin    *decimal.Decimal
	PriceMax    *decimal.Decimal
	SearchTerm  string
}

// Params renders the query in the named-parameter form the list query binds.
// Absent filters become nil so they reach the store as NULL.
func (s CatalogQuerySpec) Params() map[string]any {
	return map[string]any{
		"idAccount":   s.TenantID,
		"pageNumber":  s.Page,
		"pageSize":    s.PageSize,
		"orderBy":     string(s.SortKey),
		"categoryIds": encodeIDs(s.CategoryIDs),
		"flavorIds":   encodeIDs(s.FlavorIDs),
		"priceMin":    decimalOrNil(s.PriceMin),
		"priceMax":    decimalOrNil(s.PriceMax),
		"searchTerm":  stringOrNil(s.SearchTerm),
	}
}

// encodeIDs renders ids as a JSON array string such as "[1,2,3]".
func encodeIDs(ids []int64) any {
	if ids == nil {
		return nil
	}
	var e jx.Encoder
	e.Arr(func(e *jx.Encoder) {
		for _, id := range ids {
			e.Int64(id)
		}
	})
	return e.String()
}

func decimalOrNil(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return *d
}

func stringOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
