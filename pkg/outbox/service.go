package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Service writes domain events to the outbox table inside the caller's
// transaction.
type Service struct {
	repo   *Repository
	router *EventRouter
	logg   *logger.Logger
	now    func() time.Time
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		router: NewEventRouter(),
		logg:   logg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Emit stores event inside tx so it commits or rolls back with the state
// change that produced it. Events the publisher could never route are
// rejected here instead of failing later.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errors.New("outbox emit requires a transaction")
	}
	if err := s.router.check(event); err != nil {
		return err
	}
	if event.AggregateID == uuid.Nil {
		return fmt.Errorf("%s event without aggregate id", event.EventType)
	}

	eventID := uuid.NewString()
	payload, err := sealEnvelope(event, eventID, s.now())
	if err != nil {
		return err
	}
	if err := s.repo.Insert(tx, models.OutboxEvent{
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       payload,
	}); err != nil {
		return fmt.Errorf("insert %s outbox row: %w", event.EventType, err)
	}

	if s.logg != nil {
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"event_id":     eventID,
			"event_type":   event.EventType,
			"aggregate_id": event.AggregateID.String(),
		}), "outbox event queued")
	}
	return nil
}
