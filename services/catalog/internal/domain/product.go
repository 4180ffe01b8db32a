package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductSummary is one row of a catalog list page.
type ProductSummary struct {
	ID               int64           `json:"id" db:"id"`
	Name             string          `json:"name" db:"name"`
	BasePrice        decimal.Decimal `json:"basePrice" db:"base_price"`
	PreparationTime  string          `json:"preparationTime" db:"preparation_time"`
	ConfectionerName string          `json:"confectionerName" db:"confectioner_name"`
	PrimaryImageURL  *string         `json:"primaryImageUrl" db:"primary_image_url"`
	AverageRating    float64         `json:"averageRating" db:"average_rating"`
	ReviewCount      int             `json:"reviewCount" db:"review_count"`
}

// RelatedProduct is the minimal shape returned for related products.
type RelatedProduct struct {
	ID              int64           `json:"id" db:"id"`
	Name            string          `json:"name" db:"name"`
	BasePrice       decimal.Decimal `json:"basePrice" db:"base_price"`
	PrimaryImageURL *string         `json:"primaryImageUrl" db:"primary_image_url"`
	AverageRating   float64         `json:"averageRating" db:"average_rating"`
}

// CategoryRef names the category a product belongs to.
type CategoryRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ConfectionerRef names the confectioner that makes a product.
type ConfectionerRef struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	ImageURL *string `json:"imageUrl"`
}

// ProductImage is one entry of a product gallery.
type ProductImage struct {
	ID        int64  `json:"id" db:"id"`
	ImageURL  string `json:"imageUrl" db:"image_url"`
	IsPrimary bool   `json:"isPrimary" db:"is_primary"`
}

// ProductFlavor is a flavor a product can be ordered in.
type ProductFlavor struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// ProductSize is an orderable size and its price modifier.
type ProductSize struct {
	ID            int64           `json:"id" db:"id"`
	Name          string          `json:"name" db:"name"`
	Description   string          `json:"description" db:"description"`
	PriceModifier decimal.Decimal `json:"priceModifier" db:"price_modifier"`
}

// ProductReview is a customer review.
type ProductReview struct {
	ID           int64     `json:"id" db:"id"`
	CustomerName string    `json:"customerName" db:"customer_name"`
	Rating       int       `json:"rating" db:"rating"`
	Comment      *string   `json:"comment" db:"comment"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// ProductDetail is the full product page, composed from the base record and
// its images, flavors, sizes and reviews.
type ProductDetail struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Ingredients     []string        `json:"ingredients"`
	BasePrice       decimal.Decimal `json:"basePrice"`
	PreparationTime string          `json:"preparationTime"`
	Category        CategoryRef     `json:"category"`
	Confectioner    ConfectionerRef `json:"confectioner"`
	AverageRating   float64         `json:"averageRating"`
	ReviewCount     int             `json:"reviewCount"`
	Images          []ProductImage  `json:"images"`
	Flavors         []ProductFlavor `json:"flavors"`
	Sizes           []ProductSize   `json:"sizes"`
	Reviews         []ProductReview `json:"reviews"`
}
