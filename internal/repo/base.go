// Package repo holds the gorm plumbing shared by the domain repositories.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Scope is a reusable query fragment for gorm's Scopes.
type Scope = func(*gorm.DB) *gorm.DB

type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the connection bound to ctx.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// WithTx rebinds to tx. A nil tx keeps the current connection.
func (b Base) WithTx(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}

// NewestFirst orders by creation time with id as the tiebreaker so paging
// is stable.
func NewestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("created_at DESC").Order("id DESC")
}

// ForUpdate row-locks whatever the query selects for the rest of the tx.
func ForUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// Page counts the rows matching filter and loads one page of them. extra
// scopes (ordering, preloads) only apply to the page query.
func Page[T any](db *gorm.DB, params pagination.Params, filter Scope, extra ...Scope) ([]T, int64, error) {
	if filter == nil {
		filter = func(db *gorm.DB) *gorm.DB { return db }
	}

	var total int64
	if err := db.Model(new(T)).Scopes(filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	rows := []T{}
	if total == 0 {
		return rows, 0, nil
	}

	params = params.Normalize()
	scopes := append([]Scope{filter}, extra...)
	err := db.Scopes(scopes...).
		Offset(params.Offset()).
		Limit(params.Limit()).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// MapError turns a missing row into NOT_FOUND and any other untyped failure
// into DEPENDENCY_ERROR. Typed errors pass through.
func MapError(err error, notFoundMsg, dependencyMsg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, notFoundMsg)
	case pkgerrors.As(err) != nil:
		return err
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, dependencyMsg)
	}
}
