package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/checkout/helpers"
	"github.com/angelmondragon/storefront-backend/internal/checkout/reservation"
	"github.com/angelmondragon/storefront-backend/internal/coupons"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type couponRedeemer interface {
	EvaluateTx(ctx context.Context, tx *gorm.DB, code string, subtotal decimal.Decimal, now time.Time) (coupons.Evaluation, error)
	Redeem(ctx context.Context, tx *gorm.DB, couponID uuid.UUID) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type stockReserver interface {
	DecrementStock(ctx context.Context, tx *gorm.DB, requests []reservation.StockRequest) error
}

type attemptRecorder interface {
	ObserveAttempt(outcome string, elapsed time.Duration)
	IncCouponRedeemed(code string)
}

type reservationEngine struct{}

func (reservationEngine) DecrementStock(ctx context.Context, tx *gorm.DB, requests []reservation.StockRequest) error {
	return reservation.DecrementStock(ctx, tx, requests)
}

// Service turns a cart into an order.
type Service interface {
	Checkout(ctx context.Context, input Input) (*Result, error)
}

// Input is the checkout request for the identity's cart.
type Input struct {
	Identity      types.Identity
	Billing       types.BillingAddress
	Shipping      types.ShippingAddress
	PaymentMethod string
	CouponCode    string
}

// Result carries the created order and, when a code was sent, how the coupon
// was evaluated.
type Result struct {
	Order  *models.Order
	Coupon *coupons.Evaluation
}

// ServiceParams wires the checkout collaborators.
type ServiceParams struct {
	Tx          txRunner
	Carts       cart.CartRepository
	Orders      orders.Repository
	Coupons     couponRedeemer
	Shipping    pricing.ShippingPolicy
	Tax         pricing.TaxPolicy
	Outbox      outboxPublisher
	Reservation stockReserver
	Metrics     attemptRecorder
	Logger      *logger.Logger
}

type service struct {
	tx          txRunner
	carts       cart.CartRepository
	orders      orders.Repository
	coupons     couponRedeemer
	shipping    pricing.ShippingPolicy
	tax         pricing.TaxPolicy
	outbox      outboxPublisher
	reservation stockReserver
	metrics     attemptRecorder
	logg        *logger.Logger
	now         func() time.Time
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Coupons == nil {
		return nil, fmt.Errorf("coupon service required")
	}
	if params.Shipping == nil {
		return nil, fmt.Errorf("shipping policy required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Tax == nil {
		params.Tax = pricing.NoTax{}
	}
	if params.Reservation == nil {
		params.Reservation = reservationEngine{}
	}
	if params.Metrics == nil {
		params.Metrics = metrics.NewCheckoutMetrics(nil)
	}
	return &service{
		tx:          params.Tx,
		carts:       params.Carts,
		orders:      params.Orders,
		coupons:     params.Coupons,
		shipping:    params.Shipping,
		tax:         params.Tax,
		outbox:      params.Outbox,
		reservation: params.Reservation,
		metrics:     params.Metrics,
		logg:        params.Logger,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Checkout(ctx context.Context, input Input) (*Result, error) {
	started := time.Now()
	result, err := s.checkout(ctx, input)
	s.metrics.ObserveAttempt(outcomeFor(err), time.Since(started))
	if err != nil {
		s.logFailure(ctx, input.Identity, err)
		return nil, err
	}

	if result.Coupon != nil && result.Coupon.Applied {
		s.metrics.IncCouponRedeemed(result.Coupon.Code)
	}
	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, result.Order.ID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"total_amount": result.Order.TotalAmount.StringFixed(2),
			"line_count":   len(result.Order.Lines),
		})
		s.logg.Info(logCtx, "order placed")
	}
	return result, nil
}

func (s *service) checkout(ctx context.Context, input Input) (*Result, error) {
	if input.Identity.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart identity required")
	}
	if err := helpers.ValidateCheckoutInput(input.Billing, input.Shipping, input.PaymentMethod); err != nil {
		return nil, err
	}

	record, err := s.carts.FindByIdentity(ctx, input.Identity)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, emptyCart()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	lines, err := s.carts.ListLines(ctx, record.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart lines")
	}
	if len(lines) == 0 {
		return nil, emptyCart()
	}

	var result *Result
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var terr error
		result, terr = s.placeOrder(ctx, tx, input, record)
		return terr
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeEmptyCart) {
			return nil, err
		}
		return nil, transactionFailure(err)
	}
	return result, nil
}

// placeOrder runs every write of a checkout on tx.
func (s *service) placeOrder(ctx context.Context, tx *gorm.DB, input Input, record *models.Cart) (*Result, error) {
	cartRepo := s.carts.WithTx(tx)
	ordersRepo := s.orders.WithTx(tx)

	lines, err := cartRepo.ListLines(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, emptyCart()
	}

	subtotal := helpers.Subtotal(lines)
	shipping := s.shipping.Quote(subtotal, len(lines))
	tax := s.tax.Quote(subtotal)

	var evaluation *coupons.Evaluation
	discount := decimal.Zero
	if code := strings.TrimSpace(input.CouponCode); code != "" {
		eval, err := s.coupons.EvaluateTx(ctx, tx, code, subtotal, s.now())
		if err != nil {
			return nil, err
		}
		evaluation = &eval
		if eval.Applied {
			discount = eval.Discount
		}
	}
	totals := pricing.Compute(subtotal, tax, shipping, discount)

	order := &models.Order{
		UserID:          input.Identity.User(),
		SessionID:       input.Identity.Session(),
		Status:          enums.OrderStatusPending,
		PaymentStatus:   enums.PaymentStatusPending,
		PaymentMethod:   strings.TrimSpace(input.PaymentMethod),
		BillingAddress:  input.Billing.Normalize(),
		ShippingAddress: input.Shipping,
		Subtotal:        totals.Subtotal,
		TaxAmount:       totals.Tax,
		ShippingAmount:  totals.Shipping,
		DiscountAmount:  totals.Discount,
		TotalAmount:     totals.Total,
	}
	if evaluation != nil && evaluation.Applied {
		couponID := evaluation.Coupon.ID
		code := evaluation.Coupon.Code
		order.CouponID = &couponID
		order.CouponCode = &code
	}
	if err := ordersRepo.Create(ctx, order); err != nil {
		return nil, err
	}

	order.Lines = make([]models.OrderLine, 0, len(lines))
	for _, line := range lines {
		if line.Product == nil {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "product no longer available").
				WithDetails(map[string]any{"product_id": line.ProductID})
		}
		snapshot := helpers.BuildOrderLine(order.ID, line)
		if err := ordersRepo.CreateLine(ctx, &snapshot); err != nil {
			return nil, err
		}
		order.Lines = append(order.Lines, snapshot)

		request := reservation.StockRequest{
			ProductID:   line.ProductID,
			VariantID:   line.VariantID,
			Qty:         line.Quantity,
			ManageStock: line.Product.ManageStock,
		}
		if err := s.reservation.DecrementStock(ctx, tx, []reservation.StockRequest{request}); err != nil {
			return nil, err
		}
	}

	if evaluation != nil && evaluation.Applied {
		if err := s.coupons.Redeem(ctx, tx, evaluation.Coupon.ID); err != nil {
			return nil, err
		}
	}

	if _, err := cartRepo.DeleteLines(ctx, record.ID); err != nil {
		return nil, err
	}

	if err := s.emitEvents(ctx, tx, input.Identity, order, evaluation, len(lines)); err != nil {
		return nil, err
	}
	return &Result{Order: order, Coupon: evaluation}, nil
}

func (s *service) emitEvents(ctx context.Context, tx *gorm.DB, identity types.Identity, order *models.Order, evaluation *coupons.Evaluation, lineCount int) error {
	actor := &outbox.ActorRef{UserID: identity.User()}
	if sid := identity.Session(); sid != nil {
		actor.SessionID = *sid
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data: outbox.OrderCreatedEvent{
			OrderID:        order.ID,
			UserID:         order.UserID,
			SessionID:      order.SessionID,
			Subtotal:       order.Subtotal,
			DiscountAmount: order.DiscountAmount,
			ShippingAmount: order.ShippingAmount,
			TotalAmount:    order.TotalAmount,
			CouponCode:     order.CouponCode,
			LineCount:      lineCount,
		},
	}); err != nil {
		return err
	}

	if evaluation == nil || !evaluation.Applied {
		return nil
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCouponRedeemed,
		AggregateType: enums.AggregateCoupon,
		AggregateID:   evaluation.Coupon.ID,
		Actor:         actor,
		Data: outbox.CouponRedeemedEvent{
			CouponID:       evaluation.Coupon.ID,
			Code:           evaluation.Coupon.Code,
			OrderID:        order.ID,
			DiscountAmount: order.DiscountAmount,
		},
	})
}

func (s *service) logFailure(ctx context.Context, identity types.Identity, err error) {
	if s.logg == nil {
		return
	}
	if identity.IsUser() {
		ctx = s.logg.WithUserID(ctx, identity.UserID.String())
	} else if sid := identity.Session(); sid != nil {
		ctx = s.logg.WithSessionID(ctx, *sid)
	}
	fields := pkgerrors.Dump(err).Fields()

	switch outcomeFor(err) {
	case metrics.OutcomeValidation, metrics.OutcomeEmptyCart:
		s.logg.Warn(s.logg.WithFields(ctx, fields), "checkout rejected")
	default:
		// Error attaches err itself.
		delete(fields, "error")
		s.logg.Error(s.logg.WithFields(ctx, fields), "checkout failed", err)
	}
}

func emptyCart() error {
	return pkgerrors.New(pkgerrors.CodeEmptyCart, "cart has no items")
}

// transactionFailure wraps a rolled-back cause. Typed business causes such as
// insufficient stock keep their message as the public reason.
func transactionFailure(cause error) error {
	wrapped := pkgerrors.Wrap(pkgerrors.CodeTransaction, cause, "checkout transaction failed")
	if typed := pkgerrors.As(cause); typed != nil && typed.Code() != pkgerrors.CodeDependency && typed.Code() != pkgerrors.CodeInternal {
		wrapped = wrapped.WithDetails(map[string]any{"reason": typed.Message()})
	}
	return wrapped
}

func outcomeFor(err error) string {
	typed := pkgerrors.As(err)
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case typed == nil:
		return metrics.OutcomeError
	case typed.Code() == pkgerrors.CodeValidation:
		return metrics.OutcomeValidation
	case typed.Code() == pkgerrors.CodeEmptyCart:
		return metrics.OutcomeEmptyCart
	case typed.Code() == pkgerrors.CodeTransaction:
		return metrics.OutcomeTransactionFailed
	default:
		return metrics.OutcomeError
	}
}
