package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// CartRepository defines the persistence surface required by the cart service.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindByIdentity(ctx context.Context, identity types.Identity) (*models.Cart, error)
	Create(ctx context.Context, cart *models.Cart) error
	FindLineByItem(ctx context.Context, cartID, productID uuid.UUID, variantID *uuid.UUID) (*models.CartLine, error)
	FindLine(ctx context.Context, cartID, lineID uuid.UUID) (*models.CartLine, error)
	CreateLine(ctx context.Context, line *models.CartLine) error
	IncrementLine(ctx context.Context, lineID uuid.UUID, qty int) error
	UpdateLineQuantity(ctx context.Context, cartID, lineID uuid.UUID, qty int) (int64, error)
	DeleteLine(ctx context.Context, cartID, lineID uuid.UUID) (int64, error)
	DeleteLines(ctx context.Context, cartID uuid.UUID) (int64, error)
	ListLines(ctx context.Context, cartID uuid.UUID) ([]models.CartLine, error)
}
