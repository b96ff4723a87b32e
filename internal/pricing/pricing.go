// Package pricing holds the shipping and tax policies and the order total
// arithmetic shared by the cart view and checkout.
package pricing

import "github.com/shopspring/decimal"

// ShippingPolicy quotes shipping for a cart subtotal.
type ShippingPolicy interface {
	Quote(subtotal decimal.Decimal, lineCount int) decimal.Decimal
}

// TaxPolicy quotes tax for a cart subtotal.
type TaxPolicy interface {
	Quote(subtotal decimal.Decimal) decimal.Decimal
}

// FlatShipping charges Amount for any non-empty cart.
type FlatShipping struct {
	Amount decimal.Decimal
}

func (f FlatShipping) Quote(_ decimal.Decimal, lineCount int) decimal.Decimal {
	if lineCount == 0 {
		return decimal.Zero
	}
	return f.Amount
}

// NoTax always quotes zero.
type NoTax struct{}

func (NoTax) Quote(decimal.Decimal) decimal.Decimal {
	return decimal.Zero
}

// Totals are the monetary fields of a cart view or an order.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// Compute returns subtotal + tax + shipping - discount. The discount never
// exceeds the subtotal, so the total cannot go below tax plus shipping.
func Compute(subtotal, tax, shipping, discount decimal.Decimal) Totals {
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	return Totals{
		Subtotal: subtotal.Round(2),
		Tax:      tax.Round(2),
		Shipping: shipping.Round(2),
		Discount: discount.Round(2),
		Total:    subtotal.Add(tax).Add(shipping).Sub(discount).Round(2),
	}
}
