package coupons

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/repo"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Repository persists coupons.
type Repository struct {
	base repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{base: r.base.WithTx(tx)}
}

func (r *Repository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.base.DB(ctx).Where("code = ?", code).First(&coupon).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

// Create inserts every column so an explicit is_active=false is not replaced
// by the column default.
func (r *Repository) Create(ctx context.Context, coupon *models.Coupon) error {
	return r.base.DB(ctx).Select("*").Create(coupon).Error
}

// List returns coupons newest first with the total count.
func (r *Repository) List(ctx context.Context, params pagination.Params) ([]models.Coupon, int64, error) {
	return repo.Page[models.Coupon](r.base.DB(ctx), params, nil, repo.NewestFirst)
}

// Redeem consumes one use of the coupon in a single conditional statement and
// reports how many rows changed. Zero means the usage limit was reached.
func (r *Repository) Redeem(ctx context.Context, couponID uuid.UUID) (int64, error) {
	res := r.base.DB(ctx).Model(&models.Coupon{}).
		Where("id = ?", couponID).
		Where("(usage_limit IS NULL OR used_count < usage_limit)").
		Update("used_count", gorm.Expr("used_count + ?", 1))
	return res.RowsAffected, res.Error
}
