package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/internal/testdb"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

func newTestService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	catalogSvc, err := catalog.NewService(catalog.NewRepository(conn), nil, nil)
	if err != nil {
		t.Fatalf("catalog service: %v", err)
	}
	svc, err := NewService(NewRepository(conn), catalogSvc, pricing.FlatShipping{Amount: testdb.Money(t, "10.00")}, pricing.NoTax{}, nil)
	if err != nil {
		t.Fatalf("cart service: %v", err)
	}
	return svc
}

func TestGetOrCreateIsIdempotentPerIdentity(t *testing.T) {
	conn := testdb.Open(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	session := types.SessionIdentity("sess-1")
	first, err := svc.GetOrCreate(ctx, session)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	second, err := svc.GetOrCreate(ctx, session)
	if err != nil {
		t.Fatalf("get or create again: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same cart, got %s and %s", first.ID, second.ID)
	}

	user, err := svc.GetOrCreate(ctx, types.UserIdentity(uuid.New()))
	if err != nil {
		t.Fatalf("user cart: %v", err)
	}
	if user.ID == first.ID || user.SessionID != nil {
		t.Fatalf("expected a separate user cart without session")
	}

	var count int64
	conn.Model(&models.Cart{}).Count(&count)
	if count != 2 {
		t.Fatalf("expected 2 carts, got %d", count)
	}

	if _, err := svc.GetOrCreate(ctx, types.Identity{}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for empty identity, got %v", err)
	}
}

func TestAddLineMergesSamePair(t *testing.T) {
	conn := testdb.Open(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	identity := types.SessionIdentity("sess-merge")

	product := testdb.SeedProduct(t, conn, "Notebook", testdb.Money(t, "20.00"))
	variant := testdb.SeedVariant(t, conn, product, "Dotted", testdb.Money(t, "22.00"), 5)

	if _, err := svc.AddLine(ctx, identity, AddLineInput{ProductID: product.ID, Quantity: 2}); err != nil {
		t.Fatalf("add line: %v", err)
	}
	line, err := svc.AddLine(ctx, identity, AddLineInput{ProductID: product.ID, Quantity: 3})
	if err != nil {
		t.Fatalf("add line again: %v", err)
	}
	if line.Quantity != 5 {
		t.Fatalf("expected merged quantity 5, got %d", line.Quantity)
	}
	if _, err := svc.AddLine(ctx, identity, AddLineInput{ProductID: product.ID, VariantID: &variant.ID, Quantity: 1}); err != nil {
		t.Fatalf("add variant line: %v", err)
	}

	view, err := svc.View(ctx, identity)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if len(view.Lines) != 2 {
		t.Fatalf("expected 2 distinct lines, got %d", len(view.Lines))
	}
	if view.ItemCount != 6 {
		t.Fatalf("expected 6 items, got %d", view.ItemCount)
	}
	if !view.Totals.Subtotal.Equal(testdb.Money(t, "122.00")) {
		t.Fatalf("expected subtotal 122.00, got %s", view.Totals.Subtotal)
	}
	if !view.Totals.Shipping.Equal(testdb.Money(t, "10.00")) || !view.Totals.Total.Equal(testdb.Money(t, "132.00")) {
		t.Fatalf("unexpected totals %+v", view.Totals)
	}
	if view.Lines[1].VariantName == nil || *view.Lines[1].VariantName != "Dotted" {
		t.Fatalf("expected variant denormalized on second line")
	}
}

func TestAddLineKeepsCapturedPrice(t *testing.T) {
	conn := testdb.Open(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	identity := types.SessionIdentity("sess-price")

	product := testdb.SeedProduct(t, conn, "Pen", testdb.Money(t, "3.00"))
	if _, err := svc.AddLine(ctx, identity, AddLineInput{ProductID: product.ID, Quantity: 1}); err != nil {
		t.Fatalf("add line: %v", err)
	}
	if err := conn.Model(product).Update("price", testdb.Money(t, "4.00")).Error; err != nil {
		t.Fatalf("reprice: %v", err)
	}
	line, err := svc.AddLine(ctx, identity, AddLineInput{ProductID: product.ID, Quantity: 1})
	if err != nil {
		t.Fatalf("add line again: %v", err)
	}
	if !line.UnitPrice.Equal(testdb.Money(t, "3.00")) {
		t.Fatalf("expected captured price 3.00, got %s", line.UnitPrice)
	}
}

func TestAddLineValidation(t *testing.T) {
	conn := testdb.Open(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	identity := types.SessionIdentity("sess-invalid")
	product := testdb.SeedProduct(t, conn, "Cup", testdb.Money(t, "8.00"))
	other := testdb.SeedProduct(t, conn, "Plate", testdb.Money(t, "9.00"))
	foreign := testdb.SeedVariant(t, conn, other, "Big", testdb.Money(t, "9.50"), 1)

	if _, err := svc.AddLine(ctx, identity, AddLineInput{ProductID: product.ID, Quantity: 0}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for zero quantity, got %v", err)
	}
	if _, err := svc.AddLine(ctx, identity, AddLineInput{ProductID: uuid.New(), Quantity: 1}); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for unknown product, got %v", err)
	}
	if _, err := svc.AddLine(ctx, identity, AddLineInput{ProductID: product.ID, VariantID: &foreign.ID, Quantity: 1}); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for foreign variant, got %v", err)
	}
}

func TestUpdateRemoveAndClear(t *testing.T) {
	conn := testdb.Open(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	owner := types.SessionIdentity("sess-owner")
	stranger := types.SessionIdentity("sess-stranger")

	product := testdb.SeedProduct(t, conn, "Chair", testdb.Money(t, "40.00"))
	second := testdb.SeedProduct(t, conn, "Table", testdb.Money(t, "90.00"))
	line, err := svc.AddLine(ctx, owner, AddLineInput{ProductID: product.ID, Quantity: 1})
	if err != nil {
		t.Fatalf("add line: %v", err)
	}
	if _, err := svc.AddLine(ctx, owner, AddLineInput{ProductID: second.ID, Quantity: 1}); err != nil {
		t.Fatalf("add second line: %v", err)
	}
	if _, err := svc.GetOrCreate(ctx, stranger); err != nil {
		t.Fatalf("stranger cart: %v", err)
	}

	updated, err := svc.UpdateLine(ctx, owner, line.ID, 4)
	if err != nil {
		t.Fatalf("update line: %v", err)
	}
	if updated.Quantity != 4 {
		t.Fatalf("expected quantity 4, got %d", updated.Quantity)
	}
	if _, err := svc.UpdateLine(ctx, owner, line.ID, 0); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.UpdateLine(ctx, stranger, line.ID, 2); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for another cart's line, got %v", err)
	}
	if err := svc.RemoveLine(ctx, stranger, line.ID); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found removing another cart's line, got %v", err)
	}

	if err := svc.RemoveLine(ctx, owner, line.ID); err != nil {
		t.Fatalf("remove line: %v", err)
	}
	if err := svc.RemoveLine(ctx, owner, line.ID); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found removing twice, got %v", err)
	}

	if err := svc.Clear(ctx, owner); err != nil {
		t.Fatalf("clear: %v", err)
	}
	view, err := svc.View(ctx, owner)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if len(view.Lines) != 0 || view.CartID == nil {
		t.Fatalf("expected empty but persisted cart, got %+v", view)
	}
	if !view.Totals.Shipping.IsZero() || !view.Totals.Total.IsZero() {
		t.Fatalf("expected zero totals for empty cart, got %+v", view.Totals)
	}
}

func TestViewWithoutCart(t *testing.T) {
	conn := testdb.Open(t)
	svc := newTestService(t, conn)

	view, err := svc.View(context.Background(), types.SessionIdentity("never-seen"))
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if view.CartID != nil || len(view.Lines) != 0 {
		t.Fatalf("expected empty view, got %+v", view)
	}
	if err := svc.Clear(context.Background(), types.SessionIdentity("never-seen")); err != nil {
		t.Fatalf("clear without cart: %v", err)
	}
}

type racingRepo struct {
	CartRepository
	winner  *models.Cart
	lookups int
}

func (r *racingRepo) FindByIdentity(context.Context, types.Identity) (*models.Cart, error) {
	r.lookups++
	if r.lookups == 1 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.winner, nil
}

func (r *racingRepo) Create(context.Context, *models.Cart) error {
	return errors.New("UNIQUE constraint failed: carts.session_id")
}

type unusedResolver struct{}

func (unusedResolver) ResolvePrice(context.Context, uuid.UUID, *uuid.UUID) (*catalog.PriceQuote, error) {
	return nil, errors.New("not used")
}

func TestGetOrCreateRecoversFromConcurrentInsert(t *testing.T) {
	winner := &models.Cart{ID: uuid.New()}
	repo := &racingRepo{winner: winner}
	svc, err := NewService(repo, unusedResolver{}, pricing.FlatShipping{}, nil, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	got, err := svc.GetOrCreate(context.Background(), types.SessionIdentity("sess-race"))
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if got.ID != winner.ID {
		t.Fatalf("expected winner cart %s, got %s", winner.ID, got.ID)
	}
	if repo.lookups != 2 {
		t.Fatalf("expected re-read after conflict, got %d lookups", repo.lookups)
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(nil, unusedResolver{}, pricing.FlatShipping{}, nil, nil); err == nil {
		t.Fatalf("expected error for missing repository")
	}
	if _, err := NewService(&racingRepo{}, nil, pricing.FlatShipping{}, nil, nil); err == nil {
		t.Fatalf("expected error for missing resolver")
	}
	if _, err := NewService(&racingRepo{}, unusedResolver{}, nil, nil, nil); err == nil {
		t.Fatalf("expected error for missing shipping policy")
	}
}
