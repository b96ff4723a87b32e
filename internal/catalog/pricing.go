package catalog

import "github.com/shopspring/decimal"

// CurrentPrice returns the sale price when one is set and lower than the base
// price, otherwise the base price. A sale price of zero is a real price.
func CurrentPrice(base decimal.Decimal, sale *decimal.Decimal) decimal.Decimal {
	if sale != nil && sale.LessThan(base) {
		return *sale
	}
	return base
}
