package coupons

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

const constraintCouponCode = "ux_coupons_code"

var hundred = decimal.NewFromInt(100)

// Service evaluates and redeems discount codes.
type Service interface {
	Evaluate(ctx context.Context, code string, subtotal decimal.Decimal, now time.Time) (Evaluation, error)
	EvaluateTx(ctx context.Context, tx *gorm.DB, code string, subtotal decimal.Decimal, now time.Time) (Evaluation, error)
	Redeem(ctx context.Context, tx *gorm.DB, couponID uuid.UUID) error
	Create(ctx context.Context, input CreateInput) (*models.Coupon, error)
	List(ctx context.Context, params pagination.Params) ([]models.Coupon, int64, error)
}

// CreateInput is the admin payload for a new coupon.
type CreateInput struct {
	Code          string
	Type          string
	Value         decimal.Decimal
	MinimumAmount decimal.Decimal
	UsageLimit    *int
	IsActive      bool
	StartsAt      *time.Time
	ExpiresAt     *time.Time
}

type service struct {
	repo *Repository
	logg *logger.Logger
}

func NewService(repo *Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	return &service{repo: repo, logg: logg}, nil
}

// NormalizeCode trims surrounding whitespace. Codes are otherwise matched
// exactly as stored, so "welcome10" and "WELCOME10" are different coupons.
func NormalizeCode(code string) string {
	return strings.TrimSpace(code)
}

func (s *service) Evaluate(ctx context.Context, code string, subtotal decimal.Decimal, now time.Time) (Evaluation, error) {
	return s.evaluate(ctx, s.repo, code, subtotal, now)
}

// EvaluateTx evaluates inside tx so the usage count read matches the
// redemption that follows it.
func (s *service) EvaluateTx(ctx context.Context, tx *gorm.DB, code string, subtotal decimal.Decimal, now time.Time) (Evaluation, error) {
	return s.evaluate(ctx, s.repo.WithTx(tx), code, subtotal, now)
}

func (s *service) evaluate(ctx context.Context, repo *Repository, code string, subtotal decimal.Decimal, now time.Time) (Evaluation, error) {
	code = NormalizeCode(code)
	if code == "" {
		return notApplicable(code, ReasonNotFound), nil
	}

	coupon, err := repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notApplicable(code, ReasonNotFound), nil
		}
		return Evaluation{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}

	if reason, ok := checkApplicable(coupon, subtotal, now); !ok {
		return notApplicable(code, reason), nil
	}
	return applied(code, coupon, Discount(coupon, subtotal)), nil
}

func checkApplicable(coupon *models.Coupon, subtotal decimal.Decimal, now time.Time) (Reason, bool) {
	switch {
	case !coupon.IsActive:
		return ReasonInactive, false
	case coupon.StartsAt != nil && now.Before(*coupon.StartsAt):
		return ReasonNotStarted, false
	case coupon.ExpiresAt != nil && now.After(*coupon.ExpiresAt):
		return ReasonExpired, false
	case coupon.UsageLimit != nil && coupon.UsedCount >= *coupon.UsageLimit:
		return ReasonUsageLimitReached, false
	case subtotal.LessThan(coupon.MinimumAmount):
		return ReasonBelowMinimum, false
	}
	return "", true
}

// Discount computes the coupon's discount on subtotal. Percentages round to
// cents; fixed amounts never exceed the subtotal.
func Discount(coupon *models.Coupon, subtotal decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch coupon.Type {
	case enums.DiscountTypePercentage:
		discount = subtotal.Mul(coupon.Value).Div(hundred).Round(2)
	case enums.DiscountTypeFixed:
		discount = coupon.Value
	default:
		return decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		return subtotal
	}
	if discount.IsNegative() {
		return decimal.Zero
	}
	return discount
}

// Redeem consumes one use inside tx. A coupon whose limit filled up since it
// was evaluated fails with a conflict.
func (s *service) Redeem(ctx context.Context, tx *gorm.DB, couponID uuid.UUID) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	affected, err := s.repo.WithTx(tx).Redeem(ctx, couponID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redeem coupon")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "coupon usage limit reached")
	}
	return nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Coupon, error) {
	code := NormalizeCode(input.Code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	}
	discountType, err := enums.ParseDiscountType(input.Type)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "type must be percentage or fixed")
	}
	if !input.Value.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "value must be greater than zero")
	}
	if discountType == enums.DiscountTypePercentage && input.Value.GreaterThan(hundred) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "percentage value cannot exceed 100")
	}
	if input.MinimumAmount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "minimum_amount cannot be negative")
	}
	if input.UsageLimit != nil && *input.UsageLimit < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "usage_limit must be at least 1")
	}
	if input.StartsAt != nil && input.ExpiresAt != nil && !input.ExpiresAt.After(*input.StartsAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "expires_at must be after starts_at")
	}

	coupon := &models.Coupon{
		Code:          code,
		Type:          discountType,
		Value:         input.Value.Round(2),
		MinimumAmount: input.MinimumAmount.Round(2),
		UsageLimit:    input.UsageLimit,
		IsActive:      input.IsActive,
		StartsAt:      input.StartsAt,
		ExpiresAt:     input.ExpiresAt,
	}
	if err := s.repo.Create(ctx, coupon); err != nil {
		if dbpkg.IsUniqueViolation(err, constraintCouponCode) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "coupon code already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create coupon")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "coupon_code", code), "coupon created")
	}
	return coupon, nil
}

func (s *service) List(ctx context.Context, params pagination.Params) ([]models.Coupon, int64, error) {
	rows, total, err := s.repo.List(ctx, params.Normalize())
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list coupons")
	}
	return rows, total, nil
}
