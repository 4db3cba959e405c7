// Package catalog reads the product catalog.
package catalog

import (
	"context"
	"sort"
	"strings"

	"b2b-storefront/models"
)

// PromoCategory is the group name given to products without a category.
const PromoCategory = "Combos y promociones"

type Accessor interface {
	// List returns active products matching f.
	List(ctx context.Context, f models.ProductFilter) ([]models.Product, error)
	// ByIDs returns the active products among ids, keyed by id.
	ByIDs(ctx context.Context, ids []string) (map[string]models.Product, error)
}

// Matches applies f to p the way every accessor filters: category and brand
// by exact match, query as a case-insensitive substring of the name.
func Matches(p models.Product, f models.ProductFilter) bool {
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.Brand != "" && p.Brand != f.Brand {
		return false
	}
	if q := strings.TrimSpace(f.Query); q != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(q)) {
		return false
	}
	return true
}

// GroupByCategory groups products by category, alphabetically, with
// promo items gathered last under PromoCategory.
func GroupByCategory(products []models.Product) []models.CategoryGroup {
	byCategory := make(map[string][]models.Product)
	var promos []models.Product
	for _, p := range products {
		if p.IsPromo() {
			promos = append(promos, p)
			continue
		}
		byCategory[p.Category] = append(byCategory[p.Category], p)
	}

	names := make([]string, 0, len(byCategory))
	for name := range byCategory {
		names = append(names, name)
	}
	sort.Strings(names)

	groups := make([]models.CategoryGroup, 0, len(names)+1)
	for _, name := range names {
		groups = append(groups, models.CategoryGroup{Category: name, Products: byCategory[name]})
	}
	if len(promos) > 0 {
		groups = append(groups, models.CategoryGroup{Category: PromoCategory, Products: promos})
	}
	return groups
}
