package memory

import (
	"context"
	"sync"

	"github.com/nordkart/checkout-api/internal/domain/catalog"
)

var _ catalog.Resolver = (*Catalog)(nil)

// Catalog is a fixed in-memory product catalog.
type Catalog struct {
	mu    sync.RWMutex
	items map[string]catalog.Item
}

// NewCatalog returns a Catalog seeded with the given items.
func NewCatalog(items ...catalog.Item) *Catalog {
	m := make(map[string]catalog.Item, len(items))
	for _, it := range items {
		m[it.SKU] = it
	}
	return &Catalog{items: m}
}

// Put adds or replaces an item.
func (c *Catalog) Put(it catalog.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[it.SKU] = it
}

// Resolve returns the known subset of the requested SKUs.
func (c *Catalog) Resolve(_ context.Context, skus []string) (map[string]catalog.Item, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	found := make(map[string]catalog.Item, len(skus))
	for _, sku := range skus {
		if it, ok := c.items[sku]; ok {
			found[sku] = it
		}
	}
	return found, nil
}
