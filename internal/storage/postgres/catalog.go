package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nordkart/checkout-api/internal/domain/catalog"
)

var _ catalog.Resolver = (*Catalog)(nil)

// Catalog resolves SKUs against the products table. Only published products
// are visible to checkout.
type Catalog struct {
	pool *pgxpool.Pool
}

// NewCatalog returns a Catalog backed by the given pool.
func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

// Resolve fetches all requested SKUs in a single query. SKUs without a
// published product are absent from the result.
func (c *Catalog) Resolve(ctx context.Context, skus []string) (map[string]catalog.Item, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT id, name, unit_amount, currency, stock
		FROM products
		WHERE id = ANY($1) AND published`, skus)
	if err != nil {
		return nil, errors.Wrap(err, "query products")
	}
	defer rows.Close()

	items := make(map[string]catalog.Item, len(skus))
	for rows.Next() {
		var it catalog.Item
		if err := rows.Scan(&it.SKU, &it.Name, &it.UnitAmount, &it.Currency, &it.Stock); err != nil {
			return nil, errors.Wrap(err, "scan product row")
		}
		items[it.SKU] = it
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate product rows")
	}
	return items, nil
}
