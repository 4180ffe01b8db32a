package service

import (
	"context"

	apperrors "github.com/utafrali/CatalogGo/pkg/errors"
	"github.com/utafrali/CatalogGo/pkg/pagination"
	"github.com/utafrali/CatalogGo/services/catalog/internal/domain"
	"github.com/utafrali/CatalogGo/services/catalog/internal/repository"
)

// ListResult is one page of products plus the unpaged match count.
type ListResult struct {
	Items []domain.ProductSummary
	Total int
	Page  pagination.Metadata
}

// listRow is a list row before the windowed total is split off.
type listRow struct {
	domain.ProductSummary `db:",squash"`
	Total                 *int `db:"total"`
}

// CatalogService answers the read-only catalog queries. It keeps no state
// besides its executor and leaves error translation to the caller.
type CatalogService struct {
	exec repository.QueryExecutor
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(exec repository.QueryExecutor) *CatalogService {
	return &CatalogService{exec: exec}
}

// List returns the page of products described by lq.
func (s *CatalogService) List(ctx context.Context, lq domain.CatalogQuerySpec) (ListResult, error) {
	sets, err := s.exec.Execute(ctx, repository.QueryProductList, lq.Params())
	if err != nil {
		return ListResult{}, err
	}
	if len(sets) < 1 {
		return ListResult{}, apperrors.MalformedResultSet(repository.QueryProductList, 1, len(sets))
	}

	rows, err := decodeRows[listRow]("list", sets[0])
	if err != nil {
		return ListResult{}, err
	}

	total := 0
	items := make([]domain.ProductSummary, 0, len(rows))
	for i, row := range rows {
		if i == 0 {
			if row.Total == nil {
				return ListResult{}, apperrors.CorruptRecord("list row carries no total", nil)
			}
			total = *row.Total
		}
		items = append(items, row.ProductSummary)
	}

	page, err := pagination.Compute(lq.Page, lq.PageSize, total)
	if err != nil {
		return ListResult{}, err
	}

	return ListResult{Items: items, Total: total, Page: page}, nil
}

// Get returns the full detail of one product. ok is false when the product
// does not exist for the tenant.
func (s *CatalogService) Get(ctx context.Context, tenantID, productID int64) (*domain.ProductDetail, bool, error) {
	if err := checkIDs(tenantID, productID); err != nil {
		return nil, false, err
	}

	sets, err := s.exec.Execute(ctx, repository.QueryProductGet, map[string]any{
		"idAccount": tenantID,
		"idProduct": productID,
	})
	if err != nil {
		return nil, false, err
	}
	return AssembleDetail(sets)
}

// Related returns up to count products related to productID. count is
// passed through without an upper bound.
func (s *CatalogService) Related(ctx context.Context, tenantID, productID int64, count int) ([]domain.RelatedProduct, error) {
	if err := checkIDs(tenantID, productID); err != nil {
		return nil, err
	}
	if count < 1 {
		return nil, apperrors.InvalidArgument("count must be at least 1, got %d", count)
	}

	sets, err := s.exec.Execute(ctx, repository.QueryProductRelated, map[string]any{
		"idAccount": tenantID,
		"idProduct": productID,
		"count":     count,
	})
	if err != nil {
		return nil, err
	}
	if len(sets) == 0 {
		return []domain.RelatedProduct{}, nil
	}
	return decodeRows[domain.RelatedProduct]("related", sets[0])
}

func checkIDs(tenantID, productID int64) error {
	if tenantID < 1 {
		return apperrors.InvalidArgument("tenant id must be positive, got %d", tenantID)
	}
	if productID < 1 {
		return apperrors.InvalidArgument("product id must be positive, got %d", productID)
	}
	return nil
}
