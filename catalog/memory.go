package catalog

import (
	"context"
	"sort"
	"sync"

	"b2b-storefront/models"
)

// MemoryCatalog serves products from memory. Used by tests and local runs.
type MemoryCatalog struct {
	mu       sync.RWMutex
	products map[string]models.Product
}

func NewMemoryCatalog(products ...models.Product) *MemoryCatalog {
	c := &MemoryCatalog{products: make(map[string]models.Product)}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

// Put adds or replaces a product.
func (c *MemoryCatalog) Put(p models.Product) {
	c.mu.Lock()
	c.products[p.ID] = p
	c.mu.Unlock()
}

func (c *MemoryCatalog) List(_ context.Context, f models.ProductFilter) ([]models.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Product, 0, len(c.products))
	for _, p := range c.products {
		if p.Active && Matches(p, f) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (c *MemoryCatalog) ByIDs(_ context.Context, ids []string) (map[string]models.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]models.Product, len(ids))
	for _, id := range ids {
		if p, ok := c.products[id]; ok && p.Active {
			out[id] = p
		}
	}
	return out, nil
}
