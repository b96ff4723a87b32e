package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Coupon is a discount code. A nil UsageLimit means unlimited redemptions and a
// nil window bound leaves that side open.
type Coupon struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Code          string             `gorm:"column:code;not null;uniqueIndex:ux_coupons_code"`
	Type          enums.DiscountType `gorm:"column:type;not null"`
	Value         decimal.Decimal    `gorm:"column:value;type:numeric(10,2);not null"`
	MinimumAmount decimal.Decimal    `gorm:"column:minimum_amount;type:numeric(10,2);not null;default:0"`
	UsageLimit    *int               `gorm:"column:usage_limit"`
	UsedCount     int                `gorm:"column:used_count;not null;default:0;check:chk_coupons_used_count_non_negative,used_count >= 0"`
	IsActive      bool               `gorm:"column:is_active;not null;default:true"`
	StartsAt      *time.Time         `gorm:"column:starts_at"`
	ExpiresAt     *time.Time         `gorm:"column:expires_at"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Coupon) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
