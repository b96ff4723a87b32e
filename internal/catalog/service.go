package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/repo"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

const productCacheTTL = time.Minute

// Service exposes catalog reads used by the cart, checkout and storefront.
type Service interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetVariant(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error)
	ResolvePrice(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*PriceQuote, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) (*ListResult, error)
	GetBySlug(ctx context.Context, slug string) (*models.Product, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	GetCategory(ctx context.Context, slug string) (*models.Category, error)
}

// PriceQuote is the current unit price for a product or one of its variants.
type PriceQuote struct {
	Product   *models.Product
	Variant   *models.ProductVariant
	UnitPrice decimal.Decimal
}

// ListResult is one page of the storefront listing.
type ListResult struct {
	Products []models.Product
	Total    int64
	Params   pagination.Params
}

type productCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CacheKey(parts ...string) string
}

type service struct {
	repo  *Repository
	cache productCache
	logg  *logger.Logger
}

// NewService builds the catalog service. cache may be nil.
func NewService(repository *Repository, cache productCache, logg *logger.Logger) (Service, error) {
	if repository == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repository, cache: cache, logg: logg}, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindProduct(ctx, id)
	if err != nil {
		return nil, repo.MapError(err, "product not found", "load product")
	}
	return product, nil
}

func (s *service) GetVariant(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error) {
	variant, err := s.repo.FindVariant(ctx, id)
	if err != nil {
		return nil, repo.MapError(err, "variant not found", "load variant")
	}
	return variant, nil
}

// ResolvePrice returns the variant's current price when variantID is set,
// otherwise the product's. The variant must belong to the product.
func (s *service) ResolvePrice(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*PriceQuote, error) {
	product, err := s.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if variantID == nil {
		return &PriceQuote{
			Product:   product,
			UnitPrice: CurrentPrice(product.Price, product.SalePrice),
		}, nil
	}

	variant, err := s.GetVariant(ctx, *variantID)
	if err != nil {
		return nil, err
	}
	if variant.ProductID != product.ID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found for product")
	}
	return &PriceQuote{
		Product:   product,
		Variant:   variant,
		UnitPrice: CurrentPrice(variant.Price, variant.SalePrice),
	}, nil
}

func (s *service) List(ctx context.Context, filter ListFilter, params pagination.Params) (*ListResult, error) {
	params = params.Normalize()
	rows, total, err := s.repo.ListActive(ctx, filter, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return &ListResult{Products: rows, Total: total, Params: params}, nil
}

// GetBySlug serves active products, read through the cache when configured.
func (s *service) GetBySlug(ctx context.Context, slug string) (*models.Product, error) {
	slug = strings.TrimSpace(strings.ToLower(slug))
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug is required")
	}

	key := ""
	if s.cache != nil {
		key = s.cache.CacheKey("product", slug)
		if raw, err := s.cache.Get(ctx, key); err == nil {
			var cached models.Product
			if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil {
				return &cached, nil
			}
		}
	}

	product, err := s.repo.FindActiveBySlug(ctx, slug)
	if err != nil {
		return nil, repo.MapError(err, "product not found", "load product")
	}

	if s.cache != nil {
		if payload, err := json.Marshal(product); err == nil {
			if err := s.cache.Set(ctx, key, string(payload), productCacheTTL); err != nil && s.logg != nil {
				s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "product cache write failed")
			}
		}
	}
	return product, nil
}

