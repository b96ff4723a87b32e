package coupons

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Reason explains why a coupon did not apply.
type Reason string

const (
	ReasonNotFound          Reason = "not_found"
	ReasonInactive          Reason = "inactive"
	ReasonNotStarted        Reason = "not_started"
	ReasonExpired           Reason = "expired"
	ReasonUsageLimitReached Reason = "usage_limit_reached"
	ReasonBelowMinimum      Reason = "below_minimum"
)

// Evaluation is the outcome of checking a code against a subtotal. Exactly one
// of the two shapes is populated: Applied with Coupon and Discount set, or
// not applied with Reason set.
type Evaluation struct {
	Code     string
	Applied  bool
	Coupon   *models.Coupon
	Discount decimal.Decimal
	Reason   Reason
}

func applied(code string, coupon *models.Coupon, discount decimal.Decimal) Evaluation {
	return Evaluation{Code: code, Applied: true, Coupon: coupon, Discount: discount}
}

func notApplicable(code string, reason Reason) Evaluation {
	return Evaluation{Code: code, Discount: decimal.Zero, Reason: reason}
}
