package service

import (
	"github.com/shopspring/decimal"

	apperrors "github.com/utafrali/CatalogGo/pkg/errors"
	"github.com/utafrali/CatalogGo/services/catalog/internal/domain"
	"github.com/utafrali/CatalogGo/services/catalog/internal/repository"
)

// Positions of the row-sets returned by the product detail query.
const (
	setBase = iota
	setImages
	setFlavors
	setSizes
	setReviews
)

// productBase is the first row-set of the detail query.
type productBase struct {
	ID                   int64           `db:"id"`
	Name                 string          `db:"name"`
	Description          string          `db:"description"`
	IngredientsJSON      *string         `db:"ingredients_json"`
	BasePrice            decimal.Decimal `db:"base_price"`
	PreparationTime      string          `db:"preparation_time"`
	CategoryID           int64           `db:"category_id"`
	CategoryName         string          `db:"category_name"`
	ConfectionerID       int64           `db:"confectioner_id"`
	ConfectionerName     string          `db:"confectioner_name"`
	ConfectionerImageURL *string         `db:"confectioner_image_url"`
	AverageRating        float64         `db:"average_rating"`
	ReviewCount          int             `db:"review_count"`
}

// AssembleDetail composes a ProductDetail from the detail query's row-sets.
// An empty base set reports ok=false with a nil error.
func AssembleDetail(sets []repository.RowSet) (*domain.ProductDetail, bool, error) {
	if len(sets) < repository.ProductGetRowSets {
		return nil, false, apperrors.MalformedResultSet(repository.QueryProductGet, repository.ProductGetRowSets, len(sets))
	}
	if len(sets[setBase]) == 0 {
		return nil, false, nil
	}

	base, err := decodeRow[productBase](sets[setBase][0])
	if err != nil {
		return nil, false, apperrors.CorruptRecord("product base row does not match its shape", err)
	}
	ingredients, err := decodeIngredients(base.IngredientsJSON)
	if err != nil {
		return nil, false, err
	}

	images, err := decodeRows[domain.ProductImage]("images", sets[setImages])
	if err != nil {
		return nil, false, err
	}
	flavors, err := decodeRows[domain.ProductFlavor]("flavors", sets[setFlavors])
	if err != nil {
		return nil, false, err
	}
	sizes, err := decodeRows[domain.ProductSize]("sizes", sets[setSizes])
	if err != nil {
		return nil, false, err
	}
	reviews, err := decodeRows[domain.ProductReview]("reviews", sets[setReviews])
	if err != nil {
		return nil, false, err
	}

	return &domain.ProductDetail{
		ID:              base.ID,
		Name:            base.Name,
		Description:     base.Description,
		Ingredients:     ingredients,
		BasePrice:       base.BasePrice,
		PreparationTime: base.PreparationTime,
		Category: domain.CategoryRef{
			ID:   base.CategoryID,
			Name: base.CategoryName,
		},
		Confectioner: domain.ConfectionerRef{
			ID:       base.ConfectionerID,
			Name:     base.ConfectionerName,
			ImageURL: base.ConfectionerImageURL,
		},
		AverageRating: base.AverageRating,
		ReviewCount:   base.ReviewCount,
		Images:        images,
		Flavors:       flavors,
		Sizes:         sizes,
		Reviews:       reviews,
	}, true, nil
}
