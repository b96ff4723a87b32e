package reservation

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/testdb"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func TestDecrementStock(t *testing.T) {
	conn := testdb.Open(t)
	ctx := context.Background()
	product := testdb.SeedProduct(t, conn, "Caneca", testdb.Money(t, "30.00"), testdb.WithStock(50))
	variantParent := testdb.SeedProduct(t, conn, "Camiseta", testdb.Money(t, "50.00"), testdb.WithStock(7))
	variant := testdb.SeedVariant(t, conn, variantParent, "G", testdb.Money(t, "55.00"), 4)
	unmanaged := testdb.SeedProduct(t, conn, "Ebook", testdb.Money(t, "9.90"), testdb.WithStock(0), testdb.Unmanaged())

	err := conn.Transaction(func(tx *gorm.DB) error {
		return DecrementStock(ctx, tx, []StockRequest{
			{ProductID: product.ID, Qty: 3, ManageStock: true},
			{ProductID: variantParent.ID, VariantID: &variant.ID, Qty: 4, ManageStock: true},
			{ProductID: unmanaged.ID, Qty: 10, ManageStock: false},
		})
	})
	if err != nil {
		t.Fatalf("decrement: %v", err)
	}

	var gotProduct, gotParent models.Product
	var gotVariant models.ProductVariant
	if err := conn.First(&gotProduct, "id = ?", product.ID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if err := conn.First(&gotParent, "id = ?", variantParent.ID).Error; err != nil {
		t.Fatalf("reload parent: %v", err)
	}
	if err := conn.First(&gotVariant, "id = ?", variant.ID).Error; err != nil {
		t.Fatalf("reload variant: %v", err)
	}
	if gotProduct.StockQuantity != 47 {
		t.Fatalf("expected 47 units left, got %d", gotProduct.StockQuantity)
	}
	if gotVariant.StockQuantity != 0 || gotParent.StockQuantity != 7 {
		t.Fatalf("expected variant drained and parent untouched, got variant=%d parent=%d", gotVariant.StockQuantity, gotParent.StockQuantity)
	}
}

func TestDecrementStockVariantIgnoresProductFlag(t *testing.T) {
	conn := testdb.Open(t)
	ctx := context.Background()
	parent := testdb.SeedProduct(t, conn, "Pôster", testdb.Money(t, "20.00"), testdb.WithStock(0), testdb.Unmanaged())
	variant := testdb.SeedVariant(t, conn, parent, "A3", testdb.Money(t, "35.00"), 3)

	err := conn.Transaction(func(tx *gorm.DB) error {
		return DecrementStock(ctx, tx, []StockRequest{{ProductID: parent.ID, VariantID: &variant.ID, Qty: 2, ManageStock: false}})
	})
	require.NoError(t, err)

	var stored models.ProductVariant
	require.NoError(t, conn.First(&stored, "id = ?", variant.ID).Error)
	assert.Equal(t, 1, stored.StockQuantity)

	err = conn.Transaction(func(tx *gorm.DB) error {
		return DecrementStock(ctx, tx, []StockRequest{{ProductID: parent.ID, VariantID: &variant.ID, Qty: 2, ManageStock: false}})
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	require.NoError(t, conn.First(&stored, "id = ?", variant.ID).Error)
	assert.Equal(t, 1, stored.StockQuantity)
}

func TestDecrementStockInsufficient(t *testing.T) {
	conn := testdb.Open(t)
	ctx := context.Background()
	product := testdb.SeedProduct(t, conn, "Caneca", testdb.Money(t, "30.00"), testdb.WithStock(2))

	err := conn.Transaction(func(tx *gorm.DB) error {
		return DecrementStock(ctx, tx, []StockRequest{{ProductID: product.ID, Qty: 3, ManageStock: true}})
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	var stored models.Product
	if err := conn.First(&stored, "id = ?", product.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.StockQuantity != 2 {
		t.Fatalf("expected stock untouched, got %d", stored.StockQuantity)
	}
}

func TestDecrementStockInvalidQty(t *testing.T) {
	conn := testdb.Open(t)

	err := DecrementStock(context.Background(), conn, []StockRequest{{ProductID: uuid.New(), Qty: 0, ManageStock: true}})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := DecrementStock(context.Background(), nil, nil); err == nil {
		t.Fatalf("expected error without transaction")
	}
}

func TestDecrementStockSQLShape(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	productID := uuid.New()
	variantID := uuid.New()

	mock.ExpectExec(`UPDATE "products" SET "stock_quantity"=stock_quantity - \$1,"updated_at"=\$2 WHERE id = \$3 AND stock_quantity >= \$4`).
		WithArgs(3, sqlmock.AnyArg(), productID, 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "product_variants" SET "stock_quantity"=stock_quantity - \$1,"updated_at"=\$2 WHERE id = \$3 AND stock_quantity >= \$4`).
		WithArgs(30, sqlmock.AnyArg(), variantID, 30).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = DecrementStock(context.Background(), gormDB, []StockRequest{
		{ProductID: productID, Qty: 3, ManageStock: true},
		{ProductID: productID, VariantID: &variantID, Qty: 30, ManageStock: true},
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}
