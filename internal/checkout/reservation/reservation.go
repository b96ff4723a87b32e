// Package reservation decrements stock for the lines of an order.
package reservation

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// StockRequest asks for Qty units of a variant when VariantID is set, else of
// the product. ManageStock only gates product-level requests: a variant keeps
// its own counter and is always decremented.
type StockRequest struct {
	ProductID   uuid.UUID
	VariantID   *uuid.UUID
	Qty         int
	ManageStock bool
}

// DecrementStock applies every request inside tx with a conditional update so
// stock never goes below zero. The first request that cannot be served fails
// with a conflict and the caller rolls the transaction back.
func DecrementStock(ctx context.Context, tx *gorm.DB, requests []StockRequest) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	for _, req := range requests {
		if req.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
		if req.VariantID == nil && !req.ManageStock {
			continue
		}

		var (
			model any = &models.Product{}
			id        = req.ProductID
		)
		if req.VariantID != nil {
			model = &models.ProductVariant{}
			id = *req.VariantID
		}

		res := tx.WithContext(ctx).Model(model).
			Where("id = ? AND stock_quantity >= ?", id, req.Qty).
			Update("stock_quantity", gorm.Expr("stock_quantity - ?", req.Qty))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").
				WithDetails(map[string]any{
					"product_id": req.ProductID,
					"variant_id": req.VariantID,
					"requested":  req.Qty,
				})
		}
	}
	return nil
}
