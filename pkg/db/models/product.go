package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Product is a catalog listing with its own stock counter.
type Product struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Name             string              `gorm:"column:name;not null"`
	Slug             string              `gorm:"column:slug;not null;uniqueIndex:ux_products_slug"`
	Description      string              `gorm:"column:description;not null;default:''"`
	ShortDescription *string             `gorm:"column:short_description"`
	SKU              string              `gorm:"column:sku;not null;uniqueIndex:ux_products_sku"`
	Price            decimal.Decimal     `gorm:"column:price;type:numeric(10,2);not null"`
	SalePrice        *decimal.Decimal    `gorm:"column:sale_price;type:numeric(10,2)"`
	StockQuantity    int                 `gorm:"column:stock_quantity;not null;default:0;check:chk_products_stock_non_negative,stock_quantity >= 0"`
	ManageStock      bool                `gorm:"column:manage_stock;not null;default:true"`
	Status           enums.ProductStatus `gorm:"column:status;not null;default:'active'"`
	Featured         bool                `gorm:"column:featured;not null;default:false"`
	Variants         []ProductVariant    `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Categories       []Category          `gorm:"many2many:product_categories;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// ProductVariant is a purchasable option of a product with an absolute price
// and a stock counter independent from its parent.
type ProductVariant struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	ProductID     uuid.UUID        `gorm:"column:product_id;type:uuid;not null;index"`
	Name          string           `gorm:"column:name;not null"`
	SKU           string           `gorm:"column:sku;not null;uniqueIndex:ux_product_variants_sku"`
	Price         decimal.Decimal  `gorm:"column:price;type:numeric(10,2);not null"`
	SalePrice     *decimal.Decimal `gorm:"column:sale_price;type:numeric(10,2)"`
	StockQuantity int              `gorm:"column:stock_quantity;not null;default:0;check:chk_product_variants_stock_non_negative,stock_quantity >= 0"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *ProductVariant) BeforeCreate(*gorm.DB) error {
	ensureID(&v.ID)
	return nil
}
