package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/repo"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Repository exposes persistence operations for carts and their lines.
type Repository struct {
	base repo.Base
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{base: r.base.WithTx(tx)}
}

// FindByIdentity loads the cart owned by the user, or by the session when the
// identity is anonymous.
func (r *Repository) FindByIdentity(ctx context.Context, identity types.Identity) (*models.Cart, error) {
	query := r.base.DB(ctx)
	switch {
	case identity.IsUser():
		query = query.Where("user_id = ?", *identity.UserID)
	case identity.Session() != nil:
		query = query.Where("session_id = ?", *identity.Session())
	default:
		return nil, errors.New("identity has neither user nor session")
	}
	var cart models.Cart
	if err := query.First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *Repository) Create(ctx context.Context, cart *models.Cart) error {
	return r.base.DB(ctx).Create(cart).Error
}

// FindLineByItem returns the line holding the product/variant pair.
func (r *Repository) FindLineByItem(ctx context.Context, cartID, productID uuid.UUID, variantID *uuid.UUID) (*models.CartLine, error) {
	query := r.base.DB(ctx).Where("cart_id = ? AND product_id = ?", cartID, productID)
	if variantID == nil {
		query = query.Where("variant_id IS NULL")
	} else {
		query = query.Where("variant_id = ?", *variantID)
	}
	var line models.CartLine
	if err := query.First(&line).Error; err != nil {
		return nil, err
	}
	return &line, nil
}

// FindLine loads a line scoped to the cart, with product and variant attached.
func (r *Repository) FindLine(ctx context.Context, cartID, lineID uuid.UUID) (*models.CartLine, error) {
	var line models.CartLine
	err := r.base.DB(ctx).
		Preload("Product").
		Preload("Variant").
		Where("id = ? AND cart_id = ?", lineID, cartID).
		First(&line).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *Repository) CreateLine(ctx context.Context, line *models.CartLine) error {
	return r.base.DB(ctx).Omit("Product", "Variant").Create(line).Error
}

// IncrementLine adds qty to the stored quantity in a single statement.
func (r *Repository) IncrementLine(ctx context.Context, lineID uuid.UUID, qty int) error {
	return r.base.DB(ctx).Model(&models.CartLine{}).
		Where("id = ?", lineID).
		Update("quantity", gorm.Expr("quantity + ?", qty)).Error
}

func (r *Repository) UpdateLineQuantity(ctx context.Context, cartID, lineID uuid.UUID, qty int) (int64, error) {
	res := r.base.DB(ctx).Model(&models.CartLine{}).
		Where("id = ? AND cart_id = ?", lineID, cartID).
		Update("quantity", qty)
	return res.RowsAffected, res.Error
}

func (r *Repository) DeleteLine(ctx context.Context, cartID, lineID uuid.UUID) (int64, error) {
	res := r.base.DB(ctx).
		Where("id = ? AND cart_id = ?", lineID, cartID).
		Delete(&models.CartLine{})
	return res.RowsAffected, res.Error
}

func (r *Repository) DeleteLines(ctx context.Context, cartID uuid.UUID) (int64, error) {
	res := r.base.DB(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartLine{})
	return res.RowsAffected, res.Error
}

// ListLines returns the cart lines in insertion order with product and
// variant attached.
func (r *Repository) ListLines(ctx context.Context, cartID uuid.UUID) ([]models.CartLine, error) {
	var lines []models.CartLine
	err := r.base.DB(ctx).
		Preload("Product").
		Preload("Variant").
		Where("cart_id = ?", cartID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&lines).Error
	return lines, err
}

// DeleteStaleSessionCarts removes anonymous carts whose cart row and lines
// have not changed since cutoff. User carts are never pruned.
func (r *Repository) DeleteStaleSessionCarts(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	db := r.base.WithTx(tx).DB(ctx)
	stale := db.Model(&models.Cart{}).
		Select("id").
		Where("user_id IS NULL AND session_id IS NOT NULL").
		Where("updated_at < ?", cutoff).
		Where("NOT EXISTS (SELECT 1 FROM cart_lines WHERE cart_lines.cart_id = carts.id AND cart_lines.updated_at >= ?)", cutoff)

	var ids []uuid.UUID
	if err := stale.Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := db.Where("cart_id IN ?", ids).Delete(&models.CartLine{}).Error; err != nil {
		return 0, err
	}
	res := db.Where("id IN ?", ids).Delete(&models.Cart{})
	return res.RowsAffected, res.Error
}
