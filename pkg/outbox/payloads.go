package outbox

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderCreatedEvent is emitted once checkout commits an order.
type OrderCreatedEvent struct {
	OrderID        uuid.UUID       `json:"order_id"`
	UserID         *uuid.UUID      `json:"user_id,omitempty"`
	SessionID      *string         `json:"session_id,omitempty"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	ShippingAmount decimal.Decimal `json:"shipping_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	CouponCode     *string         `json:"coupon_code,omitempty"`
	LineCount      int             `json:"line_count"`
}

// OrderStatusChangedEvent records an administrative status transition.
type OrderStatusChangedEvent struct {
	OrderID uuid.UUID         `json:"order_id"`
	From    enums.OrderStatus `json:"from"`
	To      enums.OrderStatus `json:"to"`
}

// OrderCancelledEvent is emitted when a customer cancels their order.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	CancelledAt time.Time `json:"cancelled_at"`
	Reason      string    `json:"reason,omitempty"`
}

// CouponRedeemedEvent is emitted when an order consumes a coupon use.
type CouponRedeemedEvent struct {
	CouponID       uuid.UUID       `json:"coupon_id"`
	Code           string          `json:"code"`
	OrderID        uuid.UUID       `json:"order_id"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}
