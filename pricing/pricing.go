// Package pricing computes what a customer is charged for catalog products.
//
// Regular products get a flat discount off list price. Products without a
// category are combo/promo items and are charged at list price. All amounts
// are kept in full precision; rounding belongs to presentation.
package pricing

import (
	"sort"

	"b2b-storefront/models"

	"github.com/shopspring/decimal"
)

// DefaultDiscountRate is the flat discount applied to categorized products.
var DefaultDiscountRate = decimal.RequireFromString("0.12")

type Engine struct {
	rate decimal.Decimal
}

func NewEngine(rate decimal.Decimal) *Engine {
	return &Engine{rate: rate}
}

// Default returns an engine using DefaultDiscountRate.
func Default() *Engine {
	return NewEngine(DefaultDiscountRate)
}

type Quote struct {
	ProductID        string          `json:"producto_id"`
	Quantity         int             `json:"cantidad"`
	ListPrice        decimal.Decimal `json:"precio_lista"`
	ChargedUnitPrice decimal.Decimal `json:"precio_unitario"`
	DiscountPerUnit  decimal.Decimal `json:"descuento_unitario"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	Promo            bool            `json:"promo"`
}

type Summary struct {
	Lines                []Quote         `json:"items"`
	TotalWithoutDiscount decimal.Decimal `json:"total_sin_descuento"`
	TotalWithDiscount    decimal.Decimal `json:"total"`
	DiscountApplied      decimal.Decimal `json:"descuento"`
}

// Line prices qty units of p. Negative quantities count as zero.
func (e *Engine) Line(p models.Product, qty int) Quote {
	if qty < 0 {
		qty = 0
	}
	price := p.Price
	discount := decimal.Zero
	if !p.IsPromo() {
		discount = price.Mul(e.rate)
	}
	charged := price.Sub(discount)

	return Quote{
		ProductID:        p.ID,
		Quantity:         qty,
		ListPrice:        price,
		ChargedUnitPrice: charged,
		DiscountPerUnit:  discount,
		Subtotal:         charged.Mul(decimal.NewFromInt(int64(qty))),
		Promo:            p.IsPromo(),
	}
}

// Summarize aggregates quotes. TotalWithoutDiscount - TotalWithDiscount always
// equals DiscountApplied exactly.
func Summarize(lines []Quote) Summary {
	s := Summary{
		Lines:                lines,
		TotalWithoutDiscount: decimal.Zero,
		TotalWithDiscount:    decimal.Zero,
	}
	for _, q := range lines {
		qty := decimal.NewFromInt(int64(q.Quantity))
		s.TotalWithoutDiscount = s.TotalWithoutDiscount.Add(q.ListPrice.Mul(qty))
		s.TotalWithDiscount = s.TotalWithDiscount.Add(q.Subtotal)
	}
	s.DiscountApplied = s.TotalWithoutDiscount.Sub(s.TotalWithDiscount)
	return s
}

// Price quotes every positive entry of quantities whose product is known.
// Entries without a product are skipped; callers that must reject them check
// beforehand.
func (e *Engine) Price(products map[string]models.Product, quantities map[string]int) Summary {
	lines := make([]Quote, 0, len(quantities))
	for id, qty := range quantities {
		p, ok := products[id]
		if !ok || qty <= 0 {
			continue
		}
		lines = append(lines, e.Line(p, qty))
	}
	sortQuotes(lines)
	return Summarize(lines)
}

// Format renders an amount with two decimals for display.
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func sortQuotes(lines []Quote) {
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
}
