package pagination

import (
	apperrors "github.com/utafrali/CatalogGo/pkg/errors"
)

// Metadata describes one page of a counted result set.
type Metadata struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

// Compute derives page metadata from the requested page, the page size and
// the total number of matching rows. totalPages is ceil(totalItems/pageSize),
// so it is zero exactly when totalItems is zero. The page is reported as
// given and is never clamped against totalPages.
func Compute(page, pageSize, totalItems int) (Metadata, error) {
	if pageSize <= 0 {
		return Metadata{}, apperrors.InvalidArgument("pageSize must be positive, got %d", pageSize)
	}
	if totalItems < 0 {
		return Metadata{}, apperrors.InvalidArgument("totalItems must not be negative, got %d", totalItems)
	}

	totalPages := totalItems / pageSize
	if totalItems%pageSize > 0 {
		totalPages++
	}

	return Metadata{
		Page:       page,
		PageSize:   pageSize,
		TotalItems: totalItems,
		TotalPages: totalPages,
	}, nil
}
