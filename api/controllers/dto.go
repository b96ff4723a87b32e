package controllers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/coupons"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

func money(v decimal.Decimal) string {
	return v.StringFixed(2)
}

func optionalMoney(v *decimal.Decimal) *string {
	if v == nil {
		return nil
	}
	s := money(*v)
	return &s
}

type variantResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	SKU           string    `json:"sku"`
	Price         string    `json:"price"`
	SalePrice     *string   `json:"sale_price,omitempty"`
	CurrentPrice  string    `json:"current_price"`
	StockQuantity int       `json:"stock_quantity"`
}

type productResponse struct {
	ID               uuid.UUID         `json:"id"`
	Name             string            `json:"name"`
	Slug             string            `json:"slug"`
	Description      string            `json:"description"`
	ShortDescription *string           `json:"short_description,omitempty"`
	SKU              string            `json:"sku"`
	Price            string            `json:"price"`
	SalePrice        *string           `json:"sale_price,omitempty"`
	CurrentPrice     string            `json:"current_price"`
	StockQuantity    int               `json:"stock_quantity"`
	ManageStock      bool              `json:"manage_stock"`
	Featured         bool              `json:"featured"`
	Variants         []variantResponse `json:"variants,omitempty"`
	Categories       []categoryRef     `json:"categories,omitempty"`
}

type categoryRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
}

type categoryResponse struct {
	ID          uuid.UUID          `json:"id"`
	ParentID    *uuid.UUID         `json:"parent_id,omitempty"`
	Name        string             `json:"name"`
	Slug        string             `json:"slug"`
	Description *string            `json:"description,omitempty"`
	SortOrder   int                `json:"sort_order"`
	Children    []categoryResponse `json:"children"`
}

func newCategoryResponse(c *models.Category) categoryResponse {
	resp := categoryResponse{
		ID:          c.ID,
		ParentID:    c.ParentID,
		Name:        c.Name,
		Slug:        c.Slug,
		Description: c.Description,
		SortOrder:   c.SortOrder,
		Children:    make([]categoryResponse, 0, len(c.Children)),
	}
	for i := range c.Children {
		resp.Children = append(resp.Children, newCategoryResponse(&c.Children[i]))
	}
	return resp
}

func newProductResponse(p models.Product) productResponse {
	resp := productResponse{
		ID:               p.ID,
		Name:             p.Name,
		Slug:             p.Slug,
		Description:      p.Description,
		ShortDescription: p.ShortDescription,
		SKU:              p.SKU,
		Price:            money(p.Price),
		SalePrice:        optionalMoney(p.SalePrice),
		CurrentPrice:     money(catalog.CurrentPrice(p.Price, p.SalePrice)),
		StockQuantity:    p.StockQuantity,
		ManageStock:      p.ManageStock,
		Featured:         p.Featured,
	}
	for _, v := range p.Variants {
		resp.Variants = append(resp.Variants, variantResponse{
			ID:            v.ID,
			Name:          v.Name,
			SKU:           v.SKU,
			Price:         money(v.Price),
			SalePrice:     optionalMoney(v.SalePrice),
			CurrentPrice:  money(catalog.CurrentPrice(v.Price, v.SalePrice)),
			StockQuantity: v.StockQuantity,
		})
	}
	for _, c := range p.Categories {
		resp.Categories = append(resp.Categories, categoryRef{ID: c.ID, Name: c.Name, Slug: c.Slug})
	}
	return resp
}

type totalsResponse struct {
	Subtotal string `json:"subtotal"`
	Tax      string `json:"tax"`
	Shipping string `json:"shipping"`
	Discount string `json:"discount"`
	Total    string `json:"total"`
}

func newTotalsResponse(t pricing.Totals) totalsResponse {
	return totalsResponse{
		Subtotal: money(t.Subtotal),
		Tax:      money(t.Tax),
		Shipping: money(t.Shipping),
		Discount: money(t.Discount),
		Total:    money(t.Total),
	}
}

type cartLineResponse struct {
	ID          uuid.UUID  `json:"id"`
	ProductID   uuid.UUID  `json:"product_id"`
	VariantID   *uuid.UUID `json:"variant_id,omitempty"`
	ProductName string     `json:"product_name"`
	ProductSlug string     `json:"product_slug"`
	VariantName *string    `json:"variant_name,omitempty"`
	SKU         string     `json:"sku"`
	Quantity    int        `json:"quantity"`
	UnitPrice   string     `json:"unit_price"`
	Subtotal    string     `json:"subtotal"`
}

type cartResponse struct {
	ID        *uuid.UUID         `json:"id"`
	Lines     []cartLineResponse `json:"lines"`
	ItemCount int                `json:"item_count"`
	Totals    totalsResponse     `json:"totals"`
}

func newCartResponse(view *cart.View) cartResponse {
	if view == nil {
		return cartResponse{Lines: []cartLineResponse{}}
	}
	resp := cartResponse{
		ID:        view.CartID,
		Lines:     make([]cartLineResponse, 0, len(view.Lines)),
		ItemCount: view.ItemCount,
		Totals:    newTotalsResponse(view.Totals),
	}
	for _, line := range view.Lines {
		resp.Lines = append(resp.Lines, cartLineResponse{
			ID:          line.ID,
			ProductID:   line.ProductID,
			VariantID:   line.VariantID,
			ProductName: line.ProductName,
			ProductSlug: line.ProductSlug,
			VariantName: line.VariantName,
			SKU:         line.SKU,
			Quantity:    line.Quantity,
			UnitPrice:   money(line.UnitPrice),
			Subtotal:    money(line.Subtotal),
		})
	}
	return resp
}

type cartLineMutationResponse struct {
	ID        uuid.UUID  `json:"id"`
	CartID    uuid.UUID  `json:"cart_id"`
	ProductID uuid.UUID  `json:"product_id"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Quantity  int        `json:"quantity"`
	UnitPrice string     `json:"unit_price"`
}

func newCartLineMutationResponse(line *models.CartLine) cartLineMutationResponse {
	return cartLineMutationResponse{
		ID:        line.ID,
		CartID:    line.CartID,
		ProductID: line.ProductID,
		VariantID: line.VariantID,
		Quantity:  line.Quantity,
		UnitPrice: money(line.UnitPrice),
	}
}

type couponEvaluationResponse struct {
	Code     string `json:"code"`
	Applied  bool   `json:"applied"`
	Discount string `json:"discount"`
	Reason   string `json:"reason,omitempty"`
}

func newCouponEvaluationResponse(e *coupons.Evaluation) *couponEvaluationResponse {
	if e == nil {
		return nil
	}
	return &couponEvaluationResponse{
		Code:     e.Code,
		Applied:  e.Applied,
		Discount: money(e.Discount),
		Reason:   string(e.Reason),
	}
}

type orderLineResponse struct {
	ID          uuid.UUID  `json:"id"`
	ProductID   *uuid.UUID `json:"product_id,omitempty"`
	VariantID   *uuid.UUID `json:"variant_id,omitempty"`
	ProductName string     `json:"product_name"`
	ProductSKU  string     `json:"product_sku"`
	Quantity    int        `json:"quantity"`
	UnitPrice   string     `json:"unit_price"`
	LineTotal   string     `json:"line_total"`
}

type orderResponse struct {
	ID              uuid.UUID             `json:"id"`
	UserID          *uuid.UUID            `json:"user_id,omitempty"`
	Status          string                `json:"status"`
	PaymentStatus   string                `json:"payment_status"`
	PaymentMethod   string                `json:"payment_method"`
	BillingAddress  types.BillingAddress  `json:"billing_address"`
	ShippingAddress types.ShippingAddress `json:"shipping_address"`
	Subtotal        string                `json:"subtotal"`
	Tax             string                `json:"tax_amount"`
	Shipping        string                `json:"shipping_amount"`
	Discount        string                `json:"discount_amount"`
	Total           string                `json:"total_amount"`
	CouponCode      *string               `json:"coupon_code,omitempty"`
	Lines           []orderLineResponse   `json:"lines"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

func newOrderResponse(o *models.Order) orderResponse {
	resp := orderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		PaymentMethod:   o.PaymentMethod,
		BillingAddress:  o.BillingAddress,
		ShippingAddress: o.ShippingAddress,
		Subtotal:        money(o.Subtotal),
		Tax:             money(o.TaxAmount),
		Shipping:        money(o.ShippingAmount),
		Discount:        money(o.DiscountAmount),
		Total:           money(o.TotalAmount),
		CouponCode:      o.CouponCode,
		Lines:           make([]orderLineResponse, 0, len(o.Lines)),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	for _, line := range o.Lines {
		resp.Lines = append(resp.Lines, orderLineResponse{
			ID:          line.ID,
			ProductID:   line.ProductID,
			VariantID:   line.VariantID,
			ProductName: line.ProductName,
			ProductSKU:  line.ProductSKU,
			Quantity:    line.Quantity,
			UnitPrice:   money(line.UnitPrice),
			LineTotal:   money(line.LineTotal),
		})
	}
	return resp
}

func newOrderListResponse(list []models.Order) []orderResponse {
	out := make([]orderResponse, 0, len(list))
	for i := range list {
		out = append(out, newOrderResponse(&list[i]))
	}
	return out
}

type couponResponse struct {
	ID            uuid.UUID  `json:"id"`
	Code          string     `json:"code"`
	Type          string     `json:"type"`
	Value         string     `json:"value"`
	MinimumAmount string     `json:"minimum_amount"`
	UsageLimit    *int       `json:"usage_limit"`
	UsedCount     int        `json:"used_count"`
	IsActive      bool       `json:"is_active"`
	StartsAt      *time.Time `json:"starts_at,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func newCouponResponse(c *models.Coupon) couponResponse {
	return couponResponse{
		ID:            c.ID,
		Code:          c.Code,
		Type:          string(c.Type),
		Value:         money(c.Value),
		MinimumAmount: money(c.MinimumAmount),
		UsageLimit:    c.UsageLimit,
		UsedCount:     c.UsedCount,
		IsActive:      c.IsActive,
		StartsAt:      c.StartsAt,
		ExpiresAt:     c.ExpiresAt,
		CreatedAt:     c.CreatedAt,
	}
}
