package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/internal/dashboard"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type dashboardStats interface {
	Stats(ctx context.Context) (*dashboard.Stats, error)
}

type topProductResponse struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	LineCount int64     `json:"order_items_count"`
	UnitsSold int64     `json:"units_sold"`
}

type dashboardStatsResponse struct {
	TotalOrders    int64                `json:"total_orders"`
	TotalProducts  int64                `json:"total_products"`
	TotalCustomers int64                `json:"total_customers"`
	TotalRevenue   string               `json:"total_revenue"`
	RecentOrders   []orderResponse      `json:"recent_orders"`
	TopProducts    []topProductResponse `json:"top_products"`
}

// AdminDashboardStats returns store-wide counts, revenue excluding cancelled
// orders, the latest orders and the most ordered products.
func AdminDashboardStats(svc dashboardStats, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dashboard service unavailable"))
			return
		}
		stats, err := svc.Stats(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := dashboardStatsResponse{
			TotalOrders:    stats.TotalOrders,
			TotalProducts:  stats.TotalProducts,
			TotalCustomers: stats.TotalCustomers,
			TotalRevenue:   money(stats.TotalRevenue),
			RecentOrders:   newOrderListResponse(stats.RecentOrders),
			TopProducts:    make([]topProductResponse, 0, len(stats.TopProducts)),
		}
		for _, p := range stats.TopProducts {
			resp.TopProducts = append(resp.TopProducts, topProductResponse{
				ProductID: p.ProductID,
				Name:      p.Name,
				LineCount: p.LineCount,
				UnitsSold: p.UnitsSold,
			})
		}
		responses.WriteSuccess(w, resp)
	}
}
