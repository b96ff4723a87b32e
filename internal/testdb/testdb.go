// Package testdb opens isolated in-memory SQLite databases with the storefront
// schema and seeds fixtures for repository and service tests.
package testdb

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Open returns a fresh database migrated with every model.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:testdb_" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=on"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// a single connection keeps the shared in-memory database alive and
	// serializes writers the way SQLite expects.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

// Client wraps Open in the db.Client used by services.
func Client(t *testing.T) (*db.Client, *gorm.DB) {
	t.Helper()
	conn := Open(t)
	return db.NewFromGorm(conn), conn
}

// Money parses a decimal literal.
func Money(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("parse money %q: %v", value, err)
	}
	return d
}

// ProductOption customizes a seeded product.
type ProductOption func(*models.Product)

func WithStock(qty int) ProductOption {
	return func(p *models.Product) { p.StockQuantity = qty }
}

func WithSalePrice(d decimal.Decimal) ProductOption {
	return func(p *models.Product) { p.SalePrice = &d }
}

func WithStatus(status enums.ProductStatus) ProductOption {
	return func(p *models.Product) { p.Status = status }
}

func Unmanaged() ProductOption {
	return func(p *models.Product) { p.ManageStock = false }
}

func Featured() ProductOption {
	return func(p *models.Product) { p.Featured = true }
}

// SeedProduct inserts an active, stock-managed product priced at price.
func SeedProduct(t *testing.T, conn *gorm.DB, name string, price decimal.Decimal, opts ...ProductOption) *models.Product {
	t.Helper()
	suffix := uuid.NewString()[:8]
	product := &models.Product{
		Name:          name,
		Slug:          slugify(name) + "-" + suffix,
		SKU:           "SKU-" + suffix,
		Price:         price,
		StockQuantity: 100,
		ManageStock:   true,
		Status:        enums.ProductStatusActive,
	}
	for _, opt := range opts {
		opt(product)
	}
	// gorm skips zero values that carry a column default, so persist them explicitly.
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if err := conn.Model(product).Updates(map[string]any{
		"stock_quantity": product.StockQuantity,
		"manage_stock":   product.ManageStock,
		"featured":       product.Featured,
	}).Error; err != nil {
		t.Fatalf("seed product flags: %v", err)
	}
	return product
}

// SeedVariant inserts a variant of product with its own price and stock.
func SeedVariant(t *testing.T, conn *gorm.DB, product *models.Product, name string, price decimal.Decimal, stock int) *models.ProductVariant {
	t.Helper()
	variant := &models.ProductVariant{
		ProductID:     product.ID,
		Name:          name,
		SKU:           product.SKU + "-" + slugify(name),
		Price:         price,
		StockQuantity: stock,
	}
	if err := conn.Create(variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	if err := conn.Model(variant).Update("stock_quantity", stock).Error; err != nil {
		t.Fatalf("seed variant stock: %v", err)
	}
	return variant
}

// CategoryOption customizes a seeded category.
type CategoryOption func(*models.Category)

func ChildOf(parent *models.Category) CategoryOption {
	return func(c *models.Category) { c.ParentID = &parent.ID }
}

func Inactive() CategoryOption {
	return func(c *models.Category) { c.IsActive = false }
}

func SortOrder(order int) CategoryOption {
	return func(c *models.Category) { c.SortOrder = order }
}

// SeedCategory inserts an active category whose slug is derived from name.
func SeedCategory(t *testing.T, conn *gorm.DB, name string, opts ...CategoryOption) *models.Category {
	t.Helper()
	category := &models.Category{Name: name, Slug: slugify(name), IsActive: true}
	for _, opt := range opts {
		opt(category)
	}
	if err := conn.Create(category).Error; err != nil {
		t.Fatalf("seed category: %v", err)
	}
	if err := conn.Model(category).Update("is_active", category.IsActive).Error; err != nil {
		t.Fatalf("seed category flags: %v", err)
	}
	return category
}

// Categorize links product to categories.
func Categorize(t *testing.T, conn *gorm.DB, product *models.Product, categories ...*models.Category) {
	t.Helper()
	for _, c := range categories {
		if err := conn.Model(product).Association("Categories").Append(c); err != nil {
			t.Fatalf("link category: %v", err)
		}
	}
}

// SeedCoupon inserts coupon as given, forcing zero-valued flags to persist.
func SeedCoupon(t *testing.T, conn *gorm.DB, coupon *models.Coupon) *models.Coupon {
	t.Helper()
	if err := conn.Create(coupon).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}
	if err := conn.Model(coupon).Updates(map[string]any{
		"is_active":  coupon.IsActive,
		"used_count": coupon.UsedCount,
	}).Error; err != nil {
		t.Fatalf("seed coupon flags: %v", err)
	}
	return coupon
}

// SeedOrder inserts an order owned by identity with a single line.
func SeedOrder(t *testing.T, conn *gorm.DB, identity types.Identity, status enums.OrderStatus) *models.Order {
	t.Helper()
	amount := decimal.RequireFromString("25.00")
	order := &models.Order{
		UserID:          identity.User(),
		SessionID:       identity.Session(),
		Status:          status,
		PaymentStatus:   enums.PaymentStatusPending,
		PaymentMethod:   "pix",
		BillingAddress:  BillingAddress(),
		ShippingAddress: types.ShippingAddress{"city": "Recife"},
		Subtotal:        amount,
		TaxAmount:       decimal.Zero,
		ShippingAmount:  decimal.Zero,
		DiscountAmount:  decimal.Zero,
		TotalAmount:     amount,
		Lines: []models.OrderLine{{
			ProductName: "Seeded item",
			ProductSKU:  "SKU-SEEDED",
			Quantity:    1,
			UnitPrice:   amount,
			LineTotal:   amount,
		}},
	}
	if err := conn.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

// BillingAddress returns a complete, valid billing block.
func BillingAddress() types.BillingAddress {
	return types.BillingAddress{
		Name:    "Maria Silva",
		Email:   "maria@example.com",
		Phone:   "+55 81 99999-0000",
		Address: "Rua da Aurora, 100",
		City:    "Recife",
		State:   "PE",
		ZipCode: "50050-000",
	}
}

func slugify(value string) string {
	out := make([]rune, 0, len(value))
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		default:
			out = append(out, '-')
		}
	}
	return string(out)
}
