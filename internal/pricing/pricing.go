// Package pricing computes line and cart totals. It performs no I/O, so the same inputs
// always produce the same totals, whether for a checkout preview or for order creation.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Discount is a percentage valid within an inclusive time window.
type Discount struct {
	Percent   decimal.Decimal
	Type      string
	ValidFrom time.Time
	ValidTo   time.Time
	Deleted   bool
}

// ActiveAt reports whether the discount applies at the given instant.
func (d Discount) ActiveAt(asOf time.Time) bool {
	if d.Deleted {
		return false
	}
	return !asOf.Before(d.ValidFrom) && !asOf.After(d.ValidTo)
}

// Line is one cart line together with the catalog data needed to price it.
type Line struct {
	VariantID         string
	SKU               string
	ProductName       string
	Quantity          int
	UnitPrice         decimal.Decimal
	ProductDiscounts  []Discount
	CategoryDiscounts []Discount
}

// PricedLine is the result of pricing a single line.
type PricedLine struct {
	VariantID       string          `json:"variant_id"`
	SKU             string          `json:"sku"`
	Name            string          `json:"name"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	// DiscountAmount is per unit and unrounded; rounding happens once, on LineSubtotal.
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	EffectivePrice decimal.Decimal `json:"effective_price"`
	LineSubtotal   decimal.Decimal `json:"subtotal"`
}

// CartTotals is the priced breakdown of a whole cart.
type CartTotals struct {
	ItemSubtotals     []PricedLine    `json:"item_subtotals"`
	TotalItemSubtotal decimal.Decimal `json:"total_item_subtotal"`
	TaxAmount         decimal.Decimal `json:"tax_amount"`
	ShippingCharge    decimal.Decimal `json:"shipping_charge"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
}

// ActiveDiscount picks the discount in effect at asOf. A product level discount takes
// precedence over a category level one. Among several active discounts at the same level
// the most recently started wins, then the larger percentage.
func ActiveDiscount(line Line, asOf time.Time) (Discount, bool) {
	if d, ok := pick(line.ProductDiscounts, asOf); ok {
		return d, true
	}
	return pick(line.CategoryDiscounts, asOf)
}

func pick(discounts []Discount, asOf time.Time) (Discount, bool) {
	var best Discount
	found := false
	for _, d := range discounts {
		if !d.ActiveAt(asOf) {
			continue
		}
		if !found || d.ValidFrom.After(best.ValidFrom) ||
			(d.ValidFrom.Equal(best.ValidFrom) && d.Percent.GreaterThan(best.Percent)) {
			best = d
			found = true
		}
	}
	return best, found
}

// PriceLine applies the active discount to one line.
func PriceLine(line Line, asOf time.Time) PricedLine {
	pct := decimal.Zero
	if d, ok := ActiveDiscount(line, asOf); ok {
		pct = d.Percent
	}
	discountAmount := line.UnitPrice.Mul(pct).Div(hundred)
	effective := line.UnitPrice.Sub(discountAmount)
	subtotal := effective.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2)

	return PricedLine{
		VariantID:       line.VariantID,
		SKU:             line.SKU,
		Name:            line.ProductName,
		Quantity:        line.Quantity,
		UnitPrice:       line.UnitPrice,
		DiscountPercent: pct,
		DiscountAmount:  discountAmount,
		EffectivePrice:  effective,
		LineSubtotal:    subtotal,
	}
}

// PriceCart prices every line and adds tax on the discounted subtotal plus a flat shipping charge.
func PriceCart(lines []Line, asOf time.Time, gstRate, shippingCharge decimal.Decimal) CartTotals {
	totals := CartTotals{
		ItemSubtotals:     make([]PricedLine, 0, len(lines)),
		TotalItemSubtotal: decimal.Zero,
		ShippingCharge:    shippingCharge,
	}
	for _, l := range lines {
		pl := PriceLine(l, asOf)
		totals.ItemSubtotals = append(totals.ItemSubtotals, pl)
		totals.TotalItemSubtotal = totals.TotalItemSubtotal.Add(pl.LineSubtotal)
	}
	totals.TaxAmount = totals.TotalItemSubtotal.Mul(gstRate).Round(2)
	totals.TotalAmount = totals.TotalItemSubtotal.Add(totals.TaxAmount).Add(shippingCharge)
	return totals
}

// MinorUnits converts an amount to the smallest currency unit, e.g. rupees to paise.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}
