package helpers

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// BuildOrderLine freezes a cart line into an order line. The variant SKU wins
// over the product SKU; the name stays the product name.
func BuildOrderLine(orderID uuid.UUID, line models.CartLine) models.OrderLine {
	productID := line.ProductID
	out := models.OrderLine{
		OrderID:   orderID,
		ProductID: &productID,
		VariantID: line.VariantID,
		Quantity:  line.Quantity,
		UnitPrice: line.UnitPrice,
		LineTotal: LineTotal(line),
	}
	if line.Product != nil {
		out.ProductName = line.Product.Name
		out.ProductSKU = line.Product.SKU
	}
	if line.Variant != nil && line.Variant.SKU != "" {
		out.ProductSKU = line.Variant.SKU
	}
	return out
}

// LineTotal is quantity times unit price rounded to cents.
func LineTotal(line models.CartLine) decimal.Decimal {
	return line.Subtotal().Round(2)
}

// Subtotal sums the line totals.
func Subtotal(lines []models.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(LineTotal(line))
	}
	return total
}
