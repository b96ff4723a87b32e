package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/rabbitmq"
)

const (
	fallbackBatchSize   = 50
	fallbackPoll        = 500 * time.Millisecond
	fallbackMaxAttempts = 10

	publishTimeout = 15 * time.Second
	backoffCeiling = 10 * time.Second
	maxJitter      = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type broker interface {
	Ping(context.Context) error
	Publish(ctx context.Context, msg rabbitmq.Message) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*outbox.ResolvedEvent, error)
}

type publishRecorder interface {
	IncPublished(eventType string)
	IncFailed(eventType string)
	IncTerminal(eventType string)
}

type ServiceParams struct {
	Config     config.OutboxConfig
	Logger     *logger.Logger
	DB         dbClient
	Broker     broker
	Repository outboxRepository
	Router     eventResolver
	Metrics    publishRecorder
}

// Service drains the outbox table into the broker. Rows are locked per batch
// so several publishers can run side by side.
type Service struct {
	logg    *logger.Logger
	db      dbClient
	broker  broker
	repo    outboxRepository
	router  eventResolver
	metrics publishRecorder

	batchSize   int
	maxAttempts int
	poll        time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	var missing []string
	if params.Logger == nil {
		missing = append(missing, "logger")
	}
	if params.DB == nil {
		missing = append(missing, "database client")
	}
	if params.Broker == nil {
		missing = append(missing, "broker")
	}
	if params.Repository == nil {
		missing = append(missing, "outbox repository")
	}
	if params.Router == nil {
		missing = append(missing, "event router")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("outbox publisher: missing %v", missing)
	}

	s := &Service{
		logg:        params.Logger,
		db:          params.DB,
		broker:      params.Broker,
		repo:        params.Repository,
		router:      params.Router,
		metrics:     params.Metrics,
		batchSize:   orDefault(params.Config.BatchSize, fallbackBatchSize),
		maxAttempts: orDefault(params.Config.MaxAttempts, fallbackMaxAttempts),
		poll:        fallbackPoll,
	}
	if params.Config.PollIntervalMS > 0 {
		s.poll = time.Duration(params.Config.PollIntervalMS) * time.Millisecond
	}
	if s.metrics == nil {
		s.metrics = noopRecorder{}
	}
	return s, nil
}

// Run polls until ctx is cancelled. An idle or failed batch waits before the
// next poll; failures double the wait up to backoffCeiling.
func (s *Service) Run(ctx context.Context) error {
	if err := s.checkDependencies(ctx); err != nil {
		return err
	}

	wait := backoff{base: s.poll, ceiling: backoffCeiling}
	for ctx.Err() == nil {
		busy, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox batch failed", err)
			err = sleep(ctx, jitter(wait.fail()))
		case busy:
			wait.reset()
			continue
		default:
			wait.reset()
			err = sleep(ctx, jitter(s.poll))
		}
		if err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (s *Service) checkDependencies(ctx context.Context) error {
	for _, dep := range []struct {
		name string
		ping func(context.Context) error
	}{
		{"database", s.db.Ping},
		{"rabbitmq", s.broker.Ping},
	} {
		if err := dep.ping(ctx); err != nil {
			s.logg.Error(ctx, dep.name+" unreachable", err)
			return fmt.Errorf("%s ping: %w", dep.name, err)
		}
	}
	return nil
}

// processBatch reports whether any rows were claimed.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	var claimed int
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim outbox rows: %w", err)
		}
		claimed = len(events)
		for i := range events {
			if err := s.deliver(ctx, tx, events[i]); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed > 0, err
}

// deliver publishes one row and writes the outcome back to it. A returned
// error means the bookkeeping itself failed and the batch rolls back.
func (s *Service) deliver(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) error {
	resolved, err := s.router.Resolve(event)
	if err != nil {
		return s.giveUp(ctx, tx, event, logFields(event, nil), err)
	}
	fields := logFields(event, resolved)

	pubErr := s.publish(ctx, event, resolved)
	if pubErr == nil {
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark %s published: %w", event.ID, err)
		}
		s.metrics.IncPublished(string(event.EventType))
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event published")
		return nil
	}

	attempt := event.AttemptCount + 1
	fields["attempt_count"] = attempt
	var permanent outbox.NonRetryableError
	switch {
	case errors.As(pubErr, &permanent):
		return s.giveUp(ctx, tx, event, fields, pubErr)
	case attempt >= s.maxAttempts:
		fields["terminal_reason"] = "max_attempts"
		return s.giveUp(ctx, tx, event, fields, fmt.Errorf("gave up after %d attempts: %w", attempt, pubErr))
	}

	fields["error"] = pubErr.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox publish failed, will retry")
	s.metrics.IncFailed(string(event.EventType))
	if err := s.repo.MarkFailedTx(tx, event.ID, pubErr); err != nil {
		return fmt.Errorf("mark %s failed: %w", event.ID, err)
	}
	return nil
}

// giveUp parks the row so it is never claimed again.
func (s *Service) giveUp(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, fields map[string]any, cause error) error {
	fields["error"] = cause.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox event will not be retried")
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark %s terminal: %w", event.ID, err)
	}
	s.metrics.IncTerminal(string(event.EventType))
	return nil
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *outbox.ResolvedEvent) error {
	msg := rabbitmq.Message{
		MessageID:  resolved.Envelope.EventID,
		RoutingKey: resolved.Descriptor.RoutingKey,
		Type:       string(event.EventType),
		Body:       event.Payload,
		Headers: map[string]interface{}{
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"attempt":        int32(event.AttemptCount + 1),
		},
		Timestamp: resolved.Envelope.OccurredAt.UTC(),
	}
	if msg.MessageID == "" {
		msg.MessageID = event.ID.String()
	}
	if resolved.Envelope.OccurredAt.IsZero() {
		msg.Timestamp = event.CreatedAt.UTC()
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return s.broker.Publish(ctx, msg)
}

func logFields(event models.OutboxEvent, resolved *outbox.ResolvedEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if resolved != nil {
		fields["routing_key"] = resolved.Descriptor.RoutingKey
		if id := resolved.Envelope.EventID; id != "" {
			fields["event_id"] = id
		}
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

// backoff doubles the wait on every consecutive failure.
type backoff struct {
	base    time.Duration
	ceiling time.Duration
	current time.Duration
}

func (b *backoff) fail() time.Duration {
	b.current = min(max(b.current, b.base)*2, b.ceiling)
	return b.current
}

func (b *backoff) reset() { b.current = 0 }

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(maxJitter)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func orDefault(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

type noopRecorder struct{}

func (noopRecorder) IncPublished(string) {}
func (noopRecorder) IncFailed(string)    {}
func (noopRecorder) IncTerminal(string)  {}
