package pricing

import (
	"testing"

	"b2b-storefront/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func product(id, category, price string) models.Product {
	return models.Product{ID: id, Name: "p" + id, Category: category, Price: decimal.RequireFromString(price)}
}

func TestLine_PromoItemChargedAtListPrice(t *testing.T) {
	e := Default()
	for _, category := range []string{"", "   ", "\t"} {
		for _, qty := range []int{0, 1, 7, 250} {
			q := e.Line(product("1", category, "1999.90"), qty)

			assert.True(t, q.ChargedUnitPrice.Equal(decimal.RequireFromString("1999.90")))
			assert.True(t, q.DiscountPerUnit.IsZero())
			assert.True(t, q.Promo)
			assert.True(t, q.Subtotal.Equal(q.ChargedUnitPrice.Mul(decimal.NewFromInt(int64(qty)))))
		}
	}
}

func TestLine_RegularItemDiscounted(t *testing.T) {
	q := Default().Line(product("1", "Lacteos", "1000"), 3)

	assert.Equal(t, "880", q.ChargedUnitPrice.String())
	assert.Equal(t, "120", q.DiscountPerUnit.String())
	assert.Equal(t, "2640", q.Subtotal.String())
	assert.False(t, q.Promo)
}

func TestLine_KeepsFullPrecision(t *testing.T) {
	q := Default().Line(product("1", "Bebidas", "333.33"), 3)

	assert.Equal(t, "293.3304", q.ChargedUnitPrice.String())
	assert.Equal(t, "39.9996", q.DiscountPerUnit.String())
	assert.Equal(t, "879.9912", q.Subtotal.String())
	assert.Equal(t, "879.99", Format(q.Subtotal))
}

func TestLine_UnsetPriceAndNegativeQuantity(t *testing.T) {
	q := Default().Line(models.Product{ID: "x", Category: "Secos"}, -4)

	assert.Equal(t, 0, q.Quantity)
	assert.True(t, q.ChargedUnitPrice.IsZero())
	assert.True(t, q.Subtotal.IsZero())
}

func TestSummarize_Reconciles(t *testing.T) {
	e := Default()
	lines := []Quote{
		e.Line(product("1", "Lacteos", "1234.56"), 3),
		e.Line(product("2", "", "9999.99"), 2),
		e.Line(product("3", "Congelados", "0.07"), 11),
	}

	s := Summarize(lines)

	wantWith := decimal.Zero
	wantDiscount := decimal.Zero
	for _, q := range lines {
		qty := decimal.NewFromInt(int64(q.Quantity))
		wantWith = wantWith.Add(q.ChargedUnitPrice.Mul(qty))
		wantDiscount = wantDiscount.Add(q.DiscountPerUnit.Mul(qty))
	}
	assert.True(t, s.TotalWithDiscount.Equal(wantWith))
	assert.True(t, s.TotalWithoutDiscount.Sub(s.TotalWithDiscount).Equal(wantDiscount))
	assert.True(t, s.DiscountApplied.Equal(wantDiscount))
}

func TestPrice_SkipsUnknownAndNonPositive(t *testing.T) {
	products := map[string]models.Product{
		"a": product("a", "Lacteos", "100"),
		"b": product("b", "", "50"),
	}
	s := Default().Price(products, map[string]int{"a": 2, "b": 0, "ghost": 5})

	if assert.Len(t, s.Lines, 1) {
		assert.Equal(t, "a", s.Lines[0].ProductID)
	}
	assert.Equal(t, "176", s.TotalWithDiscount.String())
	assert.Equal(t, "200", s.TotalWithoutDiscount.String())
}

func TestNewEngine_CustomRate(t *testing.T) {
	q := NewEngine(decimal.RequireFromString("0.5")).Line(product("1", "Secos", "10"), 1)
	assert.Equal(t, "5", q.ChargedUnitPrice.String())
}
