package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	OutboxRetentionJobName = "outbox-retention"
	SessionCartJobName     = "session-cart-prune"

	defaultOutboxRetention = 30 * 24 * time.Hour
	defaultSessionCartTTL  = 30 * 24 * time.Hour
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type rowsRecorder interface {
	AddRowsDeleted(job string, rows int64)
}

// deleteFunc removes rows older than cutoff and reports how many went.
type deleteFunc func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)

// PruneJobParams configure a job that deletes rows past a retention window.
type PruneJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Retention time.Duration
	Metrics   rowsRecorder
}

type pruneJob struct {
	name      string
	logg      *logger.Logger
	db        txRunner
	delete    deleteFunc
	retention time.Duration
	metrics   rowsRecorder
	now       func() time.Time
}

type outboxPruner interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type sessionCartPruner interface {
	DeleteStaleSessionCarts(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// NewOutboxRetentionJob drops published outbox rows once they age out.
func NewOutboxRetentionJob(params PruneJobParams, repo outboxPruner) (Job, error) {
	if repo == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	job, err := newPruneJob(OutboxRetentionJobName, params, defaultOutboxRetention, repo.DeletePublishedBefore)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// NewSessionCartJob drops anonymous carts nobody has touched within the TTL.
func NewSessionCartJob(params PruneJobParams, repo sessionCartPruner) (Job, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	job, err := newPruneJob(SessionCartJobName, params, defaultSessionCartTTL, repo.DeleteStaleSessionCarts)
	if err != nil {
		return nil, err
	}
	return job, nil
}

func newPruneJob(name string, params PruneJobParams, fallback time.Duration, fn deleteFunc) (*pruneJob, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = fallback
	}
	return &pruneJob{
		name:      name,
		logg:      params.Logger,
		db:        params.DB,
		delete:    fn,
		retention: retention,
		metrics:   params.Metrics,
		now:       time.Now,
	}, nil
}

func (j *pruneJob) Name() string { return j.name }

func (j *pruneJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.delete(ctx, tx, cutoff)
		deleted = rows
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	if j.metrics != nil {
		j.metrics.AddRowsDeleted(j.name, deleted)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "prune complete")
	return nil
}
