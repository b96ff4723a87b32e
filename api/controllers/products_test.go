package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type stubCatalog struct {
	result      *catalog.ListResult
	product     *models.Product
	categories  []models.Category
	category    *models.Category
	err         error
	categoryErr error
	gotFilter   catalog.ListFilter
	gotParams   pagination.Params
	gotSlug     string
	listCalled  bool
}

func (s *stubCatalog) List(_ context.Context, filter catalog.ListFilter, params pagination.Params) (*catalog.ListResult, error) {
	s.listCalled = true
	s.gotFilter = filter
	s.gotParams = params
	return s.result, s.err
}

func (s *stubCatalog) GetBySlug(_ context.Context, slug string) (*models.Product, error) {
	s.gotSlug = slug
	return s.product, s.err
}

func (s *stubCatalog) ListCategories(context.Context) ([]models.Category, error) {
	return s.categories, s.err
}

func (s *stubCatalog) GetCategory(_ context.Context, slug string) (*models.Category, error) {
	s.gotSlug = slug
	return s.category, s.categoryErr
}

func TestProductListPassesFilters(t *testing.T) {
	sale := dec("39.9")
	svc := &stubCatalog{result: &catalog.ListResult{
		Products: []models.Product{{ID: uuid.New(), Name: "Camiseta", Slug: "camiseta", SKU: "TSHIRT-1", Price: dec("49.9"), SalePrice: &sale, StockQuantity: 5, ManageStock: true}},
		Total:    1,
		Params:   pagination.Params{Page: 1, PerPage: 10},
	}}

	req := newRequest(http.MethodGet, "/api/v1/products?search=%20cami%20&featured=true&per_page=10&category=roupas", nil, nil)
	resp := httptest.NewRecorder()
	ProductList(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.gotFilter.Search != "cami" || svc.gotFilter.Featured == nil || !*svc.gotFilter.Featured || svc.gotFilter.Category != "roupas" {
		t.Fatalf("unexpected filter %+v", svc.gotFilter)
	}
	if svc.gotParams.PerPage != 10 || svc.gotParams.Page != 1 {
		t.Fatalf("unexpected params %+v", svc.gotParams)
	}

	var body struct {
		Data []productResponse `json:"data"`
		Meta pagination.Meta   `json:"meta"`
	}
	if err := jsonDecode(resp, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data) != 1 || body.Data[0].CurrentPrice != "39.90" || body.Meta.Total != 1 {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestProductListRejectsBadPaging(t *testing.T) {
	resp := httptest.NewRecorder()
	ProductList(&stubCatalog{}, nil).ServeHTTP(resp, newRequest(http.MethodGet, "/api/v1/products?per_page=0", nil, nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestProductBySlug(t *testing.T) {
	product := &models.Product{
		ID:    uuid.New(),
		Name:  "Tênis",
		Slug:  "tenis",
		Price: dec("200"),
		Variants: []models.ProductVariant{
			{ID: uuid.New(), Name: "42", SKU: "TENIS-42", Price: dec("210"), StockQuantity: 3},
		},
	}
	svc := &stubCatalog{product: product}

	req := newRequest(http.MethodGet, "/api/v1/products/tenis", nil, map[string]string{"slug": "tenis"})
	resp := httptest.NewRecorder()
	ProductBySlug(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK || svc.gotSlug != "tenis" {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var body productResponse
	decodeData(t, resp, &body)
	if len(body.Variants) != 1 || body.Variants[0].CurrentPrice != "210.00" {
		t.Fatalf("unexpected variants %+v", body.Variants)
	}

	svc = &stubCatalog{err: pkgerrors.New(pkgerrors.CodeNotFound, "product not found")}
	resp = httptest.NewRecorder()
	ProductBySlug(svc, nil).ServeHTTP(resp, newRequest(http.MethodGet, "/", nil, map[string]string{"slug": "missing"}))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestCategoryList(t *testing.T) {
	parent := uuid.New()
	svc := &stubCatalog{categories: []models.Category{{
		ID:   parent,
		Name: "Roupas",
		Slug: "roupas",
		Children: []models.Category{
			{ID: uuid.New(), ParentID: &parent, Name: "Camisetas", Slug: "camisetas", SortOrder: 1},
		},
	}}}

	resp := httptest.NewRecorder()
	CategoryList(svc, nil).ServeHTTP(resp, newRequest(http.MethodGet, "/api/v1/categories", nil, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var body []categoryResponse
	decodeData(t, resp, &body)
	if len(body) != 1 || body[0].Slug != "roupas" || len(body[0].Children) != 1 {
		t.Fatalf("unexpected categories %+v", body)
	}
	if child := body[0].Children[0]; child.ParentID == nil || *child.ParentID != parent || child.Children == nil {
		t.Fatalf("unexpected child %+v", child)
	}
}

func TestCategoryBySlug(t *testing.T) {
	svc := &stubCatalog{category: &models.Category{ID: uuid.New(), Name: "Casa", Slug: "casa"}}
	resp := httptest.NewRecorder()
	CategoryBySlug(svc, nil).ServeHTTP(resp, newRequest(http.MethodGet, "/api/v1/categories/casa", nil, map[string]string{"slug": "casa"}))
	if resp.Code != http.StatusOK || svc.gotSlug != "casa" {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	svc = &stubCatalog{categoryErr: pkgerrors.New(pkgerrors.CodeNotFound, "category not found")}
	resp = httptest.NewRecorder()
	CategoryBySlug(svc, nil).ServeHTTP(resp, newRequest(http.MethodGet, "/", nil, map[string]string{"slug": "nada"}))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestProductsByCategory(t *testing.T) {
	svc := &stubCatalog{
		category: &models.Category{ID: uuid.New(), Name: "Casa", Slug: "casa"},
		result: &catalog.ListResult{
			Products: []models.Product{{ID: uuid.New(), Name: "Luminária", Slug: "luminaria", Price: dec("80"),
				Categories: []models.Category{{ID: uuid.New(), Name: "Casa", Slug: "casa"}}}},
			Total:  1,
			Params: pagination.Params{Page: 1, PerPage: 15},
		},
	}

	req := newRequest(http.MethodGet, "/api/v1/products/category/CASA?search=lum", nil, map[string]string{"slug": "CASA"})
	resp := httptest.NewRecorder()
	ProductsByCategory(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.gotFilter.Category != "casa" || svc.gotFilter.Search != "lum" {
		t.Fatalf("expected filter on the resolved slug, got %+v", svc.gotFilter)
	}
	var body []productResponse
	decodeData(t, resp, &body)
	if len(body) != 1 || len(body[0].Categories) != 1 || body[0].Categories[0].Slug != "casa" {
		t.Fatalf("unexpected products %+v", body)
	}

	svc = &stubCatalog{categoryErr: pkgerrors.New(pkgerrors.CodeNotFound, "category not found")}
	resp = httptest.NewRecorder()
	ProductsByCategory(svc, nil).ServeHTTP(resp, newRequest(http.MethodGet, "/", nil, map[string]string{"slug": "nada"}))
	if resp.Code != http.StatusNotFound || svc.listCalled {
		t.Fatalf("expected 404 without listing, got %d", resp.Code)
	}
}
