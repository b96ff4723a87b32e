package helpers

import (
	"strings"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// ValidateCheckoutInput checks the addresses and payment method before any
// state is touched. Every failing field is reported in the error details.
func ValidateCheckoutInput(billing types.BillingAddress, shipping types.ShippingAddress, paymentMethod string) error {
	fields := billing.Validate()
	if fields == nil {
		fields = map[string]string{}
	}
	if len(shipping) == 0 {
		fields["shipping_address"] = "required"
	}
	if strings.TrimSpace(paymentMethod) == "" {
		fields["payment_method"] = "required"
	}
	if len(fields) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid checkout request").WithDetails(fields)
}
