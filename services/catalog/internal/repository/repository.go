package repository

import (
	"context"
)

// Named queries understood by a QueryExecutor. Each id has a fixed number of
// row-sets returned in a fixed order.
const (
	// QueryProductList returns one row-set of product summaries. Every row
	// carries a "total" column with the unpaged match count.
	QueryProductList = "catalog.product.list"

	// QueryProductGet returns five row-sets: base record, images, flavors,
	// sizes and reviews.
	QueryProductGet = "catalog.product.get"

	// QueryProductRelated returns one row-set of related products.
	QueryProductRelated = "catalog.product.related"
)

// ProductGetRowSets is the number of row-sets QueryProductGet returns.
const ProductGetRowSets = 5

// Row is one record keyed by column name. Values are whatever the driver
// decoded; SQL NULL is nil.
type Row = map[string]any

// RowSet is the ordered rows of one statement.
type RowSet = []Row

// QueryExecutor runs a named query with named parameters and returns its
// row-sets in declaration order. Any execution fault is reported as a
// data-store error.
type QueryExecutor interface {
	Execute(ctx context.Context, queryID string, params map[string]any) ([]RowSet, error)
}
