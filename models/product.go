package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID       string          `json:"id"`
	Article  string          `json:"articulo"`
	Name     string          `json:"nombre"`
	Brand    string          `json:"marca"`
	Category string          `json:"categoria"`
	Price    decimal.Decimal `json:"precio"`
	Stock    int             `json:"stock"`
	ImageURL string          `json:"imagen,omitempty"`
	Active   bool            `json:"activo"`
}

// IsPromo reports whether the product is a combo/promo item, signalled by a
// blank category.
func (p Product) IsPromo() bool {
	return strings.TrimSpace(p.Category) == ""
}

type ProductFilter struct {
	Category string `form:"category"`
	Query    string `form:"q"`
	Brand    string `form:"brand"`
}

type CategoryGroup struct {
	Category string    `json:"categoria"`
	Products []Product `json:"productos"`
}
