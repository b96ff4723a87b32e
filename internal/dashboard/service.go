// Package dashboard aggregates the storefront figures shown on the admin
// dashboard.
package dashboard

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/repo"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const topN = 5

const (
	revenueSQL = `
SELECT COALESCE(SUM(total_amount), 0) AS value
FROM orders
WHERE status <> ?
`

	customersSQL = `
SELECT COUNT(DISTINCT user_id) AS value
FROM orders
WHERE user_id IS NOT NULL
`

	topProductsSQL = `
SELECT
  product_id,
  MAX(product_name) AS name,
  COUNT(*) AS line_count,
  COALESCE(SUM(quantity), 0) AS units_sold
FROM order_lines
WHERE product_id IS NOT NULL
GROUP BY product_id
ORDER BY line_count DESC, units_sold DESC, name ASC
LIMIT ?
`
)

// Stats is the admin dashboard snapshot.
type Stats struct {
	TotalOrders    int64
	TotalProducts  int64
	TotalCustomers int64
	// TotalRevenue sums total_amount over every order that is not cancelled.
	TotalRevenue decimal.Decimal
	RecentOrders []models.Order
	TopProducts  []TopProduct
}

// TopProduct ranks a product by how many order lines reference it.
type TopProduct struct {
	ProductID uuid.UUID `gorm:"column:product_id"`
	Name      string    `gorm:"column:name"`
	LineCount int64     `gorm:"column:line_count"`
	UnitsSold int64     `gorm:"column:units_sold"`
}

// Service reads dashboard aggregates.
type Service interface {
	Stats(ctx context.Context) (*Stats, error)
}

type service struct {
	base repo.Base
}

func NewService(db *gorm.DB) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("database required")
	}
	return &service{base: repo.NewBase(db)}, nil
}

// Stats runs each aggregate separately; customers are distinct signed-in
// buyers since guests only carry a session id.
func (s *service) Stats(ctx context.Context) (*Stats, error) {
	db := s.base.DB(ctx)
	stats := &Stats{}

	if err := db.Model(&models.Order{}).Count(&stats.TotalOrders).Error; err != nil {
		return nil, dependency(err, "count orders")
	}
	if err := db.Model(&models.Product{}).Count(&stats.TotalProducts).Error; err != nil {
		return nil, dependency(err, "count products")
	}
	if err := db.Raw(customersSQL).Scan(&stats.TotalCustomers).Error; err != nil {
		return nil, dependency(err, "count customers")
	}

	var revenue struct {
		Value decimal.Decimal `gorm:"column:value"`
	}
	if err := db.Raw(revenueSQL, enums.OrderStatusCancelled).Scan(&revenue).Error; err != nil {
		return nil, dependency(err, "sum revenue")
	}
	stats.TotalRevenue = revenue.Value.Round(2)

	stats.RecentOrders = []models.Order{}
	err := db.Scopes(repo.NewestFirst).
		Preload("Lines").
		Limit(topN).
		Find(&stats.RecentOrders).Error
	if err != nil {
		return nil, dependency(err, "load recent orders")
	}

	stats.TopProducts = []TopProduct{}
	if err := db.Raw(topProductsSQL, topN).Scan(&stats.TopProducts).Error; err != nil {
		return nil, dependency(err, "rank products")
	}
	return stats, nil
}

func dependency(err error, msg string) error {
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
