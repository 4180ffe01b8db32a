package postgres

import (
	"github.com/utafrali/CatalogGo/services/catalog/internal/repository"
)

// statement is one SQL statement of a named query. Its result becomes one
// row-set, in declaration order.
type statement struct {
	name string
	sql  string
}

// primaryImageSQL picks the primary image, falling back to the first one.
const primaryImageSQL = `(SELECT i.image_url FROM product_images i
			WHERE i.product_id = p.id
			ORDER BY i.is_primary DESC, i.sort_order, i.id
			LIMIT 1)`

const listSQL = `
	WITH stats AS (
		SELECT product_id, AVG(rating)::float8 AS average_rating, count(*) AS review_count
		FROM product_reviews
		GROUP BY product_id
	)
	SELECT p.id, p.name, p.base_price, p.preparation_time,
		c.name AS confectioner_name,
		` + primaryImageSQL + ` AS primary_image_url,
		COALESCE(s.average_rating, 0)::float8 AS average_rating,
		COALESCE(s.review_count, 0) AS review_count,
		count(*) OVER () AS total
	FROM products p
	JOIN confectioners c ON c.id = p.confectioner_id
	LEFT JOIN stats s ON s.product_id = p.id
	WHERE p.account_id = @idAccount
		AND p.is_active
		AND (@categoryIds::jsonb IS NULL
			OR p.category_id IN (SELECT jsonb_array_elements_text(@categoryIds::jsonb)::bigint))
		AND (@flavorIds::jsonb IS NULL
			OR EXISTS (SELECT 1 FROM product_flavors pf
				WHERE pf.product_id = p.id
					AND pf.flavor_id IN (SELECT jsonb_array_elements_text(@flavorIds::jsonb)::bigint)))
		AND (@priceMin::numeric IS NULL OR p.base_price >= @priceMin::numeric)
		AND (@priceMax::numeric IS NULL OR p.base_price <= @priceMax::numeric)
		AND (@searchTerm::text IS NULL
			OR p.name ILIKE '%' || @searchTerm::text || '%'
			OR p.description ILIKE '%' || @searchTerm::text || '%')
	ORDER BY
		CASE WHEN @orderBy::text = 'price_asc' THEN p.base_price END ASC,
		CASE WHEN @orderBy::text = 'price_desc' THEN p.base_price END DESC,
		CASE WHEN @orderBy::text = 'rating_desc' THEN COALESCE(s.average_rating, 0) END DESC,
		CASE WHEN @orderBy::text = 'newest' THEN p.created_at END DESC,
		CASE WHEN @orderBy::text = 'relevance' THEN p.name ILIKE COALESCE(@searchTerm::text, '') || '%' END DESC,
		CASE WHEN @orderBy::text = 'relevance' THEN COALESCE(s.review_count, 0) END DESC,
		p.id
	LIMIT @pageSize OFFSET (@pageNumber - 1) * @pageSize`

const detailBaseSQL = `
	SELECT p.id, p.name, p.description, p.ingredients_json, p.base_price, p.preparation_time,
		cat.id AS category_id, cat.name AS category_name,
		c.id AS confectioner_id, c.name AS confectioner_name, c.image_url AS confectioner_image_url,
		COALESCE((SELECT AVG(r.rating) FROM product_reviews r WHERE r.product_id = p.id), 0)::float8 AS average_rating,
		(SELECT count(*) FROM product_reviews r WHERE r.product_id = p.id) AS review_count
	FROM products p
	JOIN categories cat ON cat.id = p.category_id
	JOIN confectioners c ON c.id = p.confectioner_id
	WHERE p.account_id = @idAccount AND p.id = @idProduct AND p.is_active`

const detailImagesSQL = `
	SELECT i.id, i.image_url, i.is_primary
	FROM product_images i
	JOIN products p ON p.id = i.product_id
	WHERE p.account_id = @idAccount AND i.product_id = @idProduct
	ORDER BY i.is_primary DESC, i.sort_order, i.id`

const detailFlavorsSQL = `
	SELECT f.id, f.name
	FROM product_flavors pf
	JOIN flavors f ON f.id = pf.flavor_id
	JOIN products p ON p.id = pf.product_id
	WHERE p.account_id = @idAccount AND pf.product_id = @idProduct
	ORDER BY f.name, f.id`

const detailSizesSQL = `
	SELECT s.id, s.name, s.description, s.price_modifier
	FROM product_sizes s
	JOIN products p ON p.id = s.product_id
	WHERE p.account_id = @idAccount AND s.product_id = @idProduct
	ORDER BY s.sort_order, s.id`

const detailReviewsSQL = `
	SELECT r.id, r.customer_name, r.rating, r.comment, r.created_at
	FROM product_reviews r
	JOIN products p ON p.id = r.product_id
	WHERE p.account_id = @idAccount AND r.product_id = @idProduct
	ORDER BY r.created_at DESC, r.id DESC`

const relatedSQL = `
	SELECT p.id, p.name, p.base_price,
		` + primaryImageSQL + ` AS primary_image_url,
		COALESCE(s.average_rating, 0)::float8 AS average_rating
	FROM products src
	JOIN products p ON p.account_id = src.account_id
		AND p.category_id = src.category_id
		AND p.id <> src.id
	LEFT JOIN LATERAL (
		SELECT AVG(r.rating)::float8 AS average_rating
		FROM product_reviews r
		WHERE r.product_id = p.id
	) s ON true
	WHERE src.account_id = @idAccount AND src.id = @idProduct AND p.is_active
	ORDER BY average_rating DESC, p.id
	LIMIT @count`

// defaultQueries is the registry of named catalog queries.
func defaultQueries() map[string][]statement {
	return map[string][]statement{
		repository.QueryProductList: {
			{name: "list", sql: listSQL},
		},
		repository.QueryProductGet: {
			{name: "base", sql: detailBaseSQL},
			{name: "images", sql: detailImagesSQL},
			{name: "flavors", sql: detailFlavorsSQL},
			{name: "sizes", sql: detailSizesSQL},
			{name: "reviews", sql: detailReviewsSQL},
		},
		repository.QueryProductRelated: {
			{name: "related", sql: relatedSQL},
		},
	}
}
