package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/repo"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

const cancelReasonCustomer = "customer_request"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines order reads and post-checkout status changes.
type Service interface {
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	GetForOwner(ctx context.Context, identity types.Identity, orderID uuid.UUID) (*models.Order, error)
	ListForOwner(ctx context.Context, identity types.Identity, params pagination.Params) (*OrderList, error)
	List(ctx context.Context, params pagination.Params, status *enums.OrderStatus) (*OrderList, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status string) (*models.Order, error)
	Cancel(ctx context.Context, identity types.Identity, orderID uuid.UUID) (*models.Order, error)
}

// OrderList is one page of orders.
type OrderList struct {
	Orders []models.Order
	Total  int64
	Params pagination.Params
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
	now    func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(repo Repository, tx txRunner, publisher outboxPublisher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		outbox: publisher,
		logg:   logg,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, repo.MapError(err, "order not found", "load order")
	}
	return order, nil
}

// GetForOwner hides orders of other identities behind NOT_FOUND.
func (s *service) GetForOwner(ctx context.Context, identity types.Identity, orderID uuid.UUID) (*models.Order, error) {
	if identity.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required")
	}
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !ownedBy(order, identity) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) ListForOwner(ctx context.Context, identity types.Identity, params pagination.Params) (*OrderList, error) {
	if identity.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required")
	}
	return s.list(ctx, ListFilter{UserID: identity.User(), SessionID: identity.Session()}, params)
}

func (s *service) List(ctx context.Context, params pagination.Params, status *enums.OrderStatus) (*OrderList, error) {
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	return s.list(ctx, ListFilter{Status: status}, params)
}

func (s *service) list(ctx context.Context, filter ListFilter, params pagination.Params) (*OrderList, error) {
	params = params.Normalize()
	rows, total, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return &OrderList{Orders: rows, Total: total, Params: params}, nil
}

// UpdateStatus sets any of the five statuses regardless of the current one.
func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, status string) (*models.Order, error) {
	next, err := enums.ParseOrderStatus(strings.ToLower(strings.TrimSpace(status)))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status").
			WithDetails(map[string]any{"allowed": enums.OrderStatuses()})
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var previous enums.OrderStatus
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		order, err := txRepo.FindForUpdate(ctx, orderID)
		if err != nil {
			return repo.MapError(err, "order not found", "load order")
		}
		previous = order.Status
		if _, err := txRepo.UpdateStatus(ctx, orderID, next); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         &outbox.ActorRef{Role: string(enums.UserRoleAdmin)},
			Data: outbox.OrderStatusChangedEvent{
				OrderID: orderID,
				From:    previous,
				To:      next,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, orderID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{"from": previous, "to": next})
		s.logg.Info(logCtx, "order status updated")
	}
	return s.Get(ctx, orderID)
}

// Cancel lets the owner cancel an order that has not shipped yet.
func (s *service) Cancel(ctx context.Context, identity types.Identity, orderID uuid.UUID) (*models.Order, error) {
	if identity.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		order, err := txRepo.FindForUpdate(ctx, orderID)
		if err != nil {
			return repo.MapError(err, "order not found", "load order")
		}
		if !ownedBy(order, identity) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if !order.Status.CustomerCancellable() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled").
				WithDetails(map[string]any{"status": order.Status})
		}
		if _, err := txRepo.UpdateStatus(ctx, orderID, enums.OrderStatusCancelled); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         actorFor(identity),
			Data: outbox.OrderCancelledEvent{
				OrderID:     orderID,
				CancelledAt: s.now(),
				Reason:      cancelReasonCustomer,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), "order cancelled")
	}
	return s.Get(ctx, orderID)
}

func ownedBy(order *models.Order, identity types.Identity) bool {
	if identity.IsUser() {
		return order.UserID != nil && *order.UserID == *identity.UserID
	}
	sid := identity.Session()
	return sid != nil && order.SessionID != nil && *order.SessionID == *sid
}

func actorFor(identity types.Identity) *outbox.ActorRef {
	if identity.IsUser() {
		return &outbox.ActorRef{UserID: identity.User(), Role: string(enums.UserRoleCustomer)}
	}
	return &outbox.ActorRef{SessionID: *identity.Session()}
}
