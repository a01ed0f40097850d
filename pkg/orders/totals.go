package orders

import (
	"github.com/cuemby/brigade/pkg/types"
	"github.com/shopspring/decimal"
)

// Pricing holds the rates applied to every order
type Pricing struct {
	TaxRate decimal.Decimal // e.g. 0.16
	TipRate decimal.Decimal // Suggested tip, applied to the discounted subtotal
}

// Recalculate sets subtotal, tax, tip and total from the order's items.
// Total = Subtotal - Discount + Tax + Tip. The discount is capped at the
// subtotal; amounts are rounded to cents.
func (p Pricing) Recalculate(order *types.Order) {
	subtotal := decimal.Zero
	for _, item := range order.Items {
		subtotal = subtotal.Add(item.LineTotal())
	}

	discount := order.Discount
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	base := subtotal.Sub(discount)

	order.Subtotal = subtotal.Round(2)
	order.Discount = discount.Round(2)
	order.Tax = base.Mul(p.TaxRate).Round(2)
	order.Tip = base.Mul(p.TipRate).Round(2)
	order.Total = order.Subtotal.Sub(order.Discount).Add(order.Tax).Add(order.Tip)
}
