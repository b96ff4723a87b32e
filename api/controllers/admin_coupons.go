package controllers

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/coupons"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type createCouponRequest struct {
	Code          string          `json:"code" validate:"required,max=64"`
	Type          string          `json:"type" validate:"required,oneof=percentage fixed"`
	Value         decimal.Decimal `json:"value" validate:"money"`
	MinimumAmount decimal.Decimal `json:"minimum_amount" validate:"money"`
	UsageLimit    *int            `json:"usage_limit,omitempty"`
	IsActive      *bool           `json:"is_active,omitempty"`
	StartsAt      *time.Time      `json:"starts_at,omitempty"`
	ExpiresAt     *time.Time      `json:"expires_at,omitempty"`
}

func AdminCouponList(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}
		params, err := validators.ParsePageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, total, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items := make([]couponResponse, 0, len(list))
		for i := range list {
			items = append(items, newCouponResponse(&list[i]))
		}
		responses.WritePaged(w, items, params.Meta(total))
	}
}

// AdminCouponCreate registers a new code. Codes are stored trimmed but with
// their case preserved; is_active defaults to true.
func AdminCouponCreate(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}

		var payload createCouponRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		active := true
		if payload.IsActive != nil {
			active = *payload.IsActive
		}
		coupon, err := svc.Create(r.Context(), coupons.CreateInput{
			Code:          payload.Code,
			Type:          payload.Type,
			Value:         payload.Value,
			MinimumAmount: payload.MinimumAmount,
			UsageLimit:    payload.UsageLimit,
			IsActive:      active,
			StartsAt:      payload.StartsAt,
			ExpiresAt:     payload.ExpiresAt,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newCouponResponse(coupon))
	}
}
