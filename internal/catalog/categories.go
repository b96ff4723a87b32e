package catalog

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/repo"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// activeCategories keeps active categories in menu order.
func activeCategories(db *gorm.DB) *gorm.DB {
	return db.Where("is_active = ?", true).Order("sort_order ASC").Order("name ASC")
}

// productsInCategory selects the ids of products linked to the active
// category with slug.
func productsInCategory(db *gorm.DB, slug string) *gorm.DB {
	return db.Session(&gorm.Session{NewDB: true}).
		Table("product_categories").
		Select("product_categories.product_id").
		Joins("JOIN categories ON categories.id = product_categories.category_id").
		Where("categories.slug = ? AND categories.is_active = ?", slug, true)
}

// ListRootCategories returns active top-level categories with their active
// children.
func (r *Repository) ListRootCategories(ctx context.Context) ([]models.Category, error) {
	rows := []models.Category{}
	err := r.base.DB(ctx).
		Preload("Children", activeCategories).
		Scopes(activeCategories).
		Where("parent_id IS NULL").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// FindActiveCategoryBySlug loads an active category with its active children.
func (r *Repository) FindActiveCategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var category models.Category
	err := r.base.DB(ctx).
		Preload("Children", activeCategories).
		Where("slug = ? AND is_active = ?", slug, true).
		First(&category).Error
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func (s *service) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := s.repo.ListRootCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	return rows, nil
}

func (s *service) GetCategory(ctx context.Context, slug string) (*models.Category, error) {
	slug = strings.TrimSpace(strings.ToLower(slug))
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug is required")
	}
	category, err := s.repo.FindActiveCategoryBySlug(ctx, slug)
	if err != nil {
		return nil, repo.MapError(err, "category not found", "load category")
	}
	return category, nil
}
