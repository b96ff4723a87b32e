package coupons

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return NewRepository(gormDB), mock
}

func TestRedeemIssuesConditionalIncrement(t *testing.T) {
	repo, mock := newMockRepository(t)
	couponID := uuid.New()

	mock.ExpectExec(`UPDATE "coupons" SET "used_count"=used_count \+ \$1,"updated_at"=\$2 WHERE id = \$3 AND \(usage_limit IS NULL OR used_count < usage_limit\)`).
		WithArgs(1, sqlmock.AnyArg(), couponID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	affected, err := repo.Redeem(context.Background(), couponID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedeemReportsExhaustedLimit(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(`UPDATE "coupons" SET .* WHERE id = \$3 AND \(usage_limit IS NULL OR used_count < usage_limit\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	affected, err := repo.Redeem(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Zero(t, affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}
