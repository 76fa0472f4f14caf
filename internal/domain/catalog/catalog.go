package catalog

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Item is the read-only catalog view the checkout engine prices against.
// UnitAmount is in minor currency units (øre for NOK).
type Item struct {
	SKU        string
	Name       string
	UnitAmount int64
	Currency   string
	Stock      int
}

// Resolver resolves a set of SKUs against the product catalog in one batched
// call. SKUs with no published product are simply absent from the result map.
type Resolver interface {
	Resolve(ctx context.Context, skus []string) (map[string]Item, error)
}
