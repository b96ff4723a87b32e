package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type widget struct {
	ID        int `gorm:"primaryKey"`
	Color     string
	CreatedAt int64
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&widget{}))
	return conn
}

func seedWidgets(t *testing.T, db *gorm.DB) {
	t.Helper()
	for i := 1; i <= 5; i++ {
		color := "red"
		if i%2 == 0 {
			color = "blue"
		}
		require.NoError(t, db.Create(&widget{ID: i, Color: color, CreatedAt: int64(i)}).Error)
	}
}

func TestBaseDBBindsContext(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	ctx := context.WithValue(context.Background(), struct{}{}, "value")
	assert.Equal(t, ctx, base.DB(ctx).Statement.Context)
	assert.Same(t, db, base.DB(nil))
}

func TestBaseWithTx(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	assert.Same(t, db, base.WithTx(nil).db)
	tx := db.Session(&gorm.Session{})
	assert.Same(t, tx, base.WithTx(tx).db)
}

func TestPageCountsFilterAndOrdersPage(t *testing.T) {
	db := newTestDB(t)
	seedWidgets(t, db)

	red := func(db *gorm.DB) *gorm.DB { return db.Where("color = ?", "red") }
	rows, total, err := Page[widget](db, pagination.Params{Page: 1, PerPage: 2}, red, NewestFirst)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, rows, 2)
	assert.Equal(t, 5, rows[0].ID)
	assert.Equal(t, 3, rows[1].ID)

	rows, _, err = Page[widget](db, pagination.Params{Page: 2, PerPage: 2}, red, NewestFirst)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].ID)
}

func TestPageEmptyResultIsNotNil(t *testing.T) {
	db := newTestDB(t)

	rows, total, err := Page[widget](db, pagination.Params{}, nil)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, rows)
}

func TestMapError(t *testing.T) {
	assert.NoError(t, MapError(nil, "x", "y"))

	err := MapError(fmt.Errorf("lookup: %w", gorm.ErrRecordNotFound), "product not found", "load product")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	typed := pkgerrors.New(pkgerrors.CodeValidation, "bad")
	assert.Same(t, typed, MapError(typed, "x", "y"))

	cause := errors.New("connection reset")
	err = MapError(cause, "x", "load product")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.ErrorIs(t, err, cause)
}
