package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/repo"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// ListFilter narrows the storefront product listing. Category is a category
// slug; only products linked to that active category match.
type ListFilter struct {
	Search   string
	Featured *bool
	Category string
}

// Repository reads products and variants.
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

func (r *Repository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.base.DB(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *Repository) FindVariant(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	if err := r.base.DB(ctx).Where("id = ?", id).First(&variant).Error; err != nil {
		return nil, err
	}
	return &variant, nil
}

// FindActiveBySlug loads an active product with its variants.
func (r *Repository) FindActiveBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var product models.Product
	err := r.base.DB(ctx).
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("price ASC") }).
		Preload("Categories", activeCategories).
		Where("slug = ? AND status = ?", slug, enums.ProductStatusActive).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListActive returns purchasable products, newest first, and the total count
// for the filter.
func (r *Repository) ListActive(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Product, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("status = ?", enums.ProductStatusActive).
			Where("(stock_quantity > 0 OR manage_stock = ?)", false)
		if search := strings.TrimSpace(filter.Search); search != "" {
			like := "%" + strings.ToLower(search) + "%"
			db = db.Where("(LOWER(name) LIKE ? OR LOWER(description) LIKE ?)", like, like)
		}
		if filter.Featured != nil {
			db = db.Where("featured = ?", *filter.Featured)
		}
		if slug := strings.TrimSpace(filter.Category); slug != "" {
			db = db.Where("id IN (?)", productsInCategory(db, slug))
		}
		return db
	}

	withCategories := func(db *gorm.DB) *gorm.DB { return db.Preload("Categories", activeCategories) }
	return repo.Page[models.Product](r.base.DB(ctx), params, scope, withCategories, repo.NewestFirst)
}
