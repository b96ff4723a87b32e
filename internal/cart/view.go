package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// View is a priced snapshot of a cart.
type View struct {
	CartID    *uuid.UUID
	Lines     []LineView
	ItemCount int
	Totals    pricing.Totals
}

// LineView is a cart line with its product and variant denormalized.
type LineView struct {
	ID          uuid.UUID
	ProductID   uuid.UUID
	VariantID   *uuid.UUID
	ProductName string
	ProductSlug string
	VariantName *string
	SKU         string
	Quantity    int
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal
}

// Subtotal sums the line subtotals.
func Subtotal(lines []models.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

func (s *service) buildView(cart *models.Cart, lines []models.CartLine) *View {
	view := &View{Lines: make([]LineView, 0, len(lines))}
	if cart != nil {
		id := cart.ID
		view.CartID = &id
	}
	for _, line := range lines {
		lv := LineView{
			ID:        line.ID,
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Subtotal:  line.Subtotal(),
		}
		if line.Product != nil {
			lv.ProductName = line.Product.Name
			lv.ProductSlug = line.Product.Slug
			lv.SKU = line.Product.SKU
		}
		if line.Variant != nil {
			name := line.Variant.Name
			lv.VariantName = &name
			lv.SKU = line.Variant.SKU
		}
		view.ItemCount += line.Quantity
		view.Lines = append(view.Lines, lv)
	}

	subtotal := Subtotal(lines)
	view.Totals = pricing.Compute(
		subtotal,
		s.tax.Quote(subtotal),
		s.shipping.Quote(subtotal, len(lines)),
		decimal.Zero,
	)
	return view
}
