package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Category groups products for browsing. Categories nest one level through
// ParentID; products link to any number of them through product_categories.
type Category struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ParentID    *uuid.UUID `gorm:"column:parent_id;type:uuid;index"`
	Name        string     `gorm:"column:name;not null"`
	Slug        string     `gorm:"column:slug;not null;uniqueIndex:ux_categories_slug"`
	Description *string    `gorm:"column:description"`
	IsActive    bool       `gorm:"column:is_active;not null;default:true"`
	SortOrder   int        `gorm:"column:sort_order;not null;default:0"`
	Children    []Category `gorm:"foreignKey:ParentID;constraint:OnDelete:SET NULL"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Category) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
