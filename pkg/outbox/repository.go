package outbox

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// lastErrorLimit is the byte cap for outbox_events.last_error.
const lastErrorLimit = 1024

var errNoTx = errors.New("outbox: transaction required")

// Repository persists outbox rows. Writes that must commit with domain
// changes take the caller's transaction.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func undelivered(db *gorm.DB) *gorm.DB {
	return db.Where("published_at IS NULL")
}

func (r *Repository) Insert(tx *gorm.DB, event models.OutboxEvent) error {
	if tx == nil {
		return errNoTx
	}
	return tx.Create(&event).Error
}

// FetchUnpublishedForPublish claims the oldest undelivered rows with attempts
// left. Rows held by another publisher are skipped rather than waited on.
func (r *Repository) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, errNoTx
	}
	rows := []models.OutboxEvent{}
	err := tx.Scopes(undelivered).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("attempt_count < ?", maxAttempts).
		Order(clause.OrderBy{Columns: []clause.OrderByColumn{
			{Column: clause.Column{Name: "created_at"}},
			{Column: clause.Column{Name: "id"}},
		}}).
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	return setColumns(tx, id, map[string]any{
		"published_at": time.Now().UTC(),
		"last_error":   nil,
	})
}

func (r *Repository) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	return setColumns(tx, id, map[string]any{
		"last_error":    clipError(err),
		"attempt_count": gorm.Expr("attempt_count + 1"),
	})
}

// MarkTerminalTx pins attempt_count at the limit so the row is never claimed
// again but stays around for inspection.
func (r *Repository) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	return setColumns(tx, id, map[string]any{
		"last_error":    clipError(err),
		"attempt_count": terminalAttempts,
	})
}

func (r *Repository) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.OutboxEvent{}).Scopes(undelivered).Count(&n).Error
	return n, err
}

// DeletePublishedBefore removes delivered rows older than cutoff. A nil tx
// runs outside any transaction.
func (r *Repository) DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	res := tx.WithContext(ctx).
		Where("published_at IS NOT NULL AND published_at < ?", cutoff).
		Delete(&models.OutboxEvent{})
	return res.RowsAffected, res.Error
}

func setColumns(tx *gorm.DB, id uuid.UUID, values map[string]any) error {
	if tx == nil {
		return errNoTx
	}
	return tx.Model(&models.OutboxEvent{}).Where("id = ?", id).Updates(values).Error
}

// clipError cuts the message to lastErrorLimit bytes without splitting a rune.
func clipError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) <= lastErrorLimit {
		return msg
	}
	cut := lastErrorLimit
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}
