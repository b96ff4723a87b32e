package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/internal/repo"
	dbpkg "github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

const (
	constraintCartUser    = "ux_carts_user_id"
	constraintCartSession = "ux_carts_session_id"
	constraintCartLine    = "ux_cart_lines_cart_product_variant"
)

type priceResolver interface {
	ResolvePrice(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*catalog.PriceQuote, error)
}

// Service exposes the cart store.
type Service interface {
	GetOrCreate(ctx context.Context, identity types.Identity) (*models.Cart, error)
	AddLine(ctx context.Context, identity types.Identity, input AddLineInput) (*models.CartLine, error)
	UpdateLine(ctx context.Context, identity types.Identity, lineID uuid.UUID, qty int) (*models.CartLine, error)
	RemoveLine(ctx context.Context, identity types.Identity, lineID uuid.UUID) error
	Clear(ctx context.Context, identity types.Identity) error
	View(ctx context.Context, identity types.Identity) (*View, error)
}

// AddLineInput is a request to put qty units of a product (or variant) in the cart.
type AddLineInput struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int
}

type service struct {
	repo     CartRepository
	catalog  priceResolver
	shipping pricing.ShippingPolicy
	tax      pricing.TaxPolicy
	logg     *logger.Logger
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, catalog priceResolver, shipping pricing.ShippingPolicy, tax pricing.TaxPolicy, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("price resolver required")
	}
	if shipping == nil {
		return nil, fmt.Errorf("shipping policy required")
	}
	if tax == nil {
		tax = pricing.NoTax{}
	}
	return &service{
		repo:     repo,
		catalog:  catalog,
		shipping: shipping,
		tax:      tax,
		logg:     logg,
	}, nil
}

// GetOrCreate returns the identity's cart, creating it on first use. A losing
// concurrent insert re-reads the winner's row.
func (s *service) GetOrCreate(ctx context.Context, identity types.Identity) (*models.Cart, error) {
	if identity.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart identity required")
	}

	cart, err := s.repo.FindByIdentity(ctx, identity)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	cart = &models.Cart{UserID: identity.User(), SessionID: identity.Session()}
	if err := s.repo.Create(ctx, cart); err != nil {
		if dbpkg.IsUniqueViolation(err, constraintCartUser) || dbpkg.IsUniqueViolation(err, constraintCartSession) {
			existing, findErr := s.repo.FindByIdentity(ctx, identity)
			if findErr != nil {
				return nil, repo.MapError(findErr, "cart not found", "load cart")
			}
			return existing, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}

	if s.logg != nil {
		logCtx := s.logg.WithField(ctx, "cart_id", cart.ID.String())
		s.logg.Info(logCtx, "cart created")
	}
	return cart, nil
}

// AddLine prices the item at its current catalog price and merges it into an
// existing line for the same product/variant pair. Stock is only checked at
// checkout.
func (s *service) AddLine(ctx context.Context, identity types.Identity, input AddLineInput) (*models.CartLine, error) {
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
	}

	cart, err := s.GetOrCreate(ctx, identity)
	if err != nil {
		return nil, err
	}
	quote, err := s.catalog.ResolvePrice(ctx, input.ProductID, input.VariantID)
	if err != nil {
		return nil, err
	}

	lineID, err := s.mergeLine(ctx, cart.ID, input, quote.UnitPrice)
	if err != nil {
		return nil, err
	}
	line, err := s.repo.FindLine(ctx, cart.ID, lineID)
	if err != nil {
		return nil, repo.MapError(err, "cart line not found", "load cart line")
	}
	return line, nil
}

func (s *service) mergeLine(ctx context.Context, cartID uuid.UUID, input AddLineInput, unitPrice decimal.Decimal) (uuid.UUID, error) {
	existing, err := s.repo.FindLineByItem(ctx, cartID, input.ProductID, input.VariantID)
	switch {
	case err == nil:
		if err := s.repo.IncrementLine(ctx, existing.ID, input.Quantity); err != nil {
			return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment cart line")
		}
		return existing.ID, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
	}

	line := &models.CartLine{
		CartID:    cartID,
		ProductID: input.ProductID,
		VariantID: input.VariantID,
		Quantity:  input.Quantity,
		UnitPrice: unitPrice,
	}
	if err := s.repo.CreateLine(ctx, line); err != nil {
		if !dbpkg.IsUniqueViolation(err, constraintCartLine) {
			return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart line")
		}
		existing, findErr := s.repo.FindLineByItem(ctx, cartID, input.ProductID, input.VariantID)
		if findErr != nil {
			return uuid.Nil, repo.MapError(findErr, "cart line not found", "load cart line")
		}
		if err := s.repo.IncrementLine(ctx, existing.ID, input.Quantity); err != nil {
			return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment cart line")
		}
		return existing.ID, nil
	}
	return line.ID, nil
}

func (s *service) UpdateLine(ctx context.Context, identity types.Identity, lineID uuid.UUID, qty int) (*models.CartLine, error) {
	if qty < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	cart, err := s.findCart(ctx, identity)
	if err != nil {
		return nil, err
	}
	affected, err := s.repo.UpdateLineQuantity(ctx, cart.ID, lineID, qty)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
	}
	line, err := s.repo.FindLine(ctx, cart.ID, lineID)
	if err != nil {
		return nil, repo.MapError(err, "cart line not found", "load cart line")
	}
	return line, nil
}

func (s *service) RemoveLine(ctx context.Context, identity types.Identity, lineID uuid.UUID) error {
	cart, err := s.findCart(ctx, identity)
	if err != nil {
		return err
	}
	affected, err := s.repo.DeleteLine(ctx, cart.ID, lineID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart line")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
	}
	return nil
}

// Clear empties the cart. Clearing a cart that was never created is a no-op.
func (s *service) Clear(ctx context.Context, identity types.Identity) error {
	cart, err := s.findCart(ctx, identity)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil
		}
		return err
	}
	if _, err := s.repo.DeleteLines(ctx, cart.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

// View prices the cart. An identity without a cart gets an empty view.
func (s *service) View(ctx context.Context, identity types.Identity) (*View, error) {
	cart, err := s.findCart(ctx, identity)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return s.buildView(nil, nil), nil
		}
		return nil, err
	}
	lines, err := s.repo.ListLines(ctx, cart.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart lines")
	}
	return s.buildView(cart, lines), nil
}

func (s *service) findCart(ctx context.Context, identity types.Identity) (*models.Cart, error) {
	if identity.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart identity required")
	}
	cart, err := s.repo.FindByIdentity(ctx, identity)
	if err != nil {
		return nil, repo.MapError(err, "cart not found", "load cart")
	}
	return cart, nil
}
