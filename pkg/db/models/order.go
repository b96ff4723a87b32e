package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Order is created once at checkout; afterwards only its status changes.
type Order struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	UserID          *uuid.UUID            `gorm:"column:user_id;type:uuid;index"`
	SessionID       *string               `gorm:"column:session_id;index"`
	Status          enums.OrderStatus     `gorm:"column:status;not null;default:'pending'"`
	PaymentStatus   enums.PaymentStatus   `gorm:"column:payment_status;not null;default:'pending'"`
	PaymentMethod   string                `gorm:"column:payment_method;not null"`
	BillingAddress  types.BillingAddress  `gorm:"column:billing_address;type:jsonb;serializer:json;not null"`
	ShippingAddress types.ShippingAddress `gorm:"column:shipping_address;type:jsonb;serializer:json;not null"`
	Subtotal        decimal.Decimal       `gorm:"column:subtotal;type:numeric(10,2);not null"`
	TaxAmount       decimal.Decimal       `gorm:"column:tax_amount;type:numeric(10,2);not null"`
	ShippingAmount  decimal.Decimal       `gorm:"column:shipping_amount;type:numeric(10,2);not null"`
	DiscountAmount  decimal.Decimal       `gorm:"column:discount_amount;type:numeric(10,2);not null"`
	TotalAmount     decimal.Decimal       `gorm:"column:total_amount;type:numeric(10,2);not null"`
	CouponID        *uuid.UUID            `gorm:"column:coupon_id;type:uuid"`
	CouponCode      *string               `gorm:"column:coupon_code"`
	Lines           []OrderLine           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// OrderLine is a frozen snapshot of a cart line. Product and variant ids are
// informational and may point at rows that no longer exist.
type OrderLine struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID   *uuid.UUID      `gorm:"column:product_id;type:uuid"`
	VariantID   *uuid.UUID      `gorm:"column:variant_id;type:uuid"`
	ProductName string          `gorm:"column:product_name;not null"`
	ProductSKU  string          `gorm:"column:product_sku;not null"`
	Quantity    int             `gorm:"column:quantity;not null"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(10,2);not null"`
	LineTotal   decimal.Decimal `gorm:"column:line_total;type:numeric(10,2);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (l *OrderLine) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
