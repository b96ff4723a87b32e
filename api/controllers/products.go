package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

const maxSearchLength = 100

type productCatalog interface {
	List(ctx context.Context, filter catalog.ListFilter, params pagination.Params) (*catalog.ListResult, error)
	GetBySlug(ctx context.Context, slug string) (*models.Product, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	GetCategory(ctx context.Context, slug string) (*models.Category, error)
}

// ProductList returns the storefront listing. category narrows it to one
// category slug.
func ProductList(svc productCatalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		writeProductPage(w, r, svc, logg, validators.QueryString(r, "category", maxSearchLength))
	}
}

// ProductsByCategory lists the products of an active category; an unknown or
// inactive slug is a 404 rather than an empty page.
func ProductsByCategory(svc productCatalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		category, err := svc.GetCategory(r.Context(), chi.URLParam(r, "slug"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeProductPage(w, r, svc, logg, category.Slug)
	}
}

func writeProductPage(w http.ResponseWriter, r *http.Request, svc productCatalog, logg *logger.Logger, category string) {
	params, err := validators.ParsePageParams(r)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	featured, err := validators.ParseQueryBool(r, "featured")
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	filter := catalog.ListFilter{
		Search:   validators.QueryString(r, "search", maxSearchLength),
		Featured: featured,
		Category: category,
	}

	result, err := svc.List(r.Context(), filter, params)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}

	items := make([]productResponse, 0, len(result.Products))
	for _, p := range result.Products {
		items = append(items, newProductResponse(p))
	}
	responses.WritePaged(w, items, result.Params.Meta(result.Total))
}

// ProductBySlug returns one active product with its variants.
func ProductBySlug(svc productCatalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		slug := strings.TrimSpace(chi.URLParam(r, "slug"))
		if slug == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "slug is required"))
			return
		}

		product, err := svc.GetBySlug(r.Context(), slug)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newProductResponse(*product))
	}
}

// CategoryList returns the active category tree, top level first.
func CategoryList(svc productCatalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		rows, err := svc.ListCategories(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items := make([]categoryResponse, 0, len(rows))
		for i := range rows {
			items = append(items, newCategoryResponse(&rows[i]))
		}
		responses.WriteSuccess(w, items)
	}
}

func CategoryBySlug(svc productCatalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		category, err := svc.GetCategory(r.Context(), chi.URLParam(r, "slug"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCategoryResponse(category))
	}
}
