package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Address blocks are validated by the checkout service so every field error
// is reported together.
type checkoutRequest struct {
	BillingAddress  types.BillingAddress  `json:"billing_address" validate:"-"`
	ShippingAddress types.ShippingAddress `json:"shipping_address" validate:"-"`
	PaymentMethod   string                `json:"payment_method"`
	CouponCode      string                `json:"coupon_code,omitempty" validate:"max=64"`
}

type checkoutResponse struct {
	Order  orderResponse             `json:"order"`
	Coupon *couponEvaluationResponse `json:"coupon,omitempty"`
}

// Checkout converts the caller's cart into an order.
func Checkout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		identity, err := identityFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Checkout(r.Context(), checkout.Input{
			Identity:      identity,
			Billing:       payload.BillingAddress,
			Shipping:      payload.ShippingAddress,
			PaymentMethod: payload.PaymentMethod,
			CouponCode:    payload.CouponCode,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, checkoutResponse{
			Order:  newOrderResponse(result.Order),
			Coupon: newCouponEvaluationResponse(result.Coupon),
		})
	}
}
