package helpers

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

func validBilling() types.BillingAddress {
	return types.BillingAddress{
		Name:    "Maria Silva",
		Email:   "maria@example.com",
		Phone:   "81999990000",
		Address: "Rua da Aurora, 100",
		City:    "Recife",
		State:   "PE",
		ZipCode: "50050-000",
	}
}

func TestValidateCheckoutInput(t *testing.T) {
	t.Parallel()
	shipping := types.ShippingAddress{"city": "Recife"}

	if err := ValidateCheckoutInput(validBilling(), shipping, "pix"); err != nil {
		t.Fatalf("expected valid input, got %v", err)
	}

	billing := validBilling()
	billing.Email = "not-an-email"
	billing.City = "  "
	err := ValidateCheckoutInput(billing, nil, "")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %T", typed.Details())
	}
	for _, field := range []string{"billing_address.email", "billing_address.city", "shipping_address", "payment_method"} {
		if _, ok := details[field]; !ok {
			t.Fatalf("expected %s in details, got %v", field, details)
		}
	}
}

func TestBuildOrderLinePrefersVariantSKU(t *testing.T) {
	t.Parallel()
	orderID := uuid.New()
	variantID := uuid.New()
	line := models.CartLine{
		ProductID: uuid.New(),
		VariantID: &variantID,
		Quantity:  3,
		UnitPrice: decimal.RequireFromString("19.90"),
		Product:   &models.Product{Name: "Camiseta", SKU: "CAM-001"},
		Variant:   &models.ProductVariant{Name: "G", SKU: "CAM-001-G"},
	}

	got := BuildOrderLine(orderID, line)
	if got.OrderID != orderID || got.ProductName != "Camiseta" || got.ProductSKU != "CAM-001-G" {
		t.Fatalf("unexpected snapshot %+v", got)
	}
	if !got.LineTotal.Equal(decimal.RequireFromString("59.70")) {
		t.Fatalf("expected line total 59.70, got %s", got.LineTotal)
	}
	if got.VariantID == nil || *got.VariantID != variantID {
		t.Fatalf("expected variant id to carry over")
	}

	line.Variant = nil
	line.VariantID = nil
	if got := BuildOrderLine(orderID, line); got.ProductSKU != "CAM-001" {
		t.Fatalf("expected product sku without variant, got %s", got.ProductSKU)
	}
}

func TestSubtotal(t *testing.T) {
	t.Parallel()
	lines := []models.CartLine{
		{Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")},
		{Quantity: 1, UnitPrice: decimal.RequireFromString("0.99")},
	}
	if got := Subtotal(lines); !got.Equal(decimal.RequireFromString("20.99")) {
		t.Fatalf("expected 20.99, got %s", got)
	}
	if got := Subtotal(nil); !got.IsZero() {
		t.Fatalf("expected zero for no lines, got %s", got)
	}
}
