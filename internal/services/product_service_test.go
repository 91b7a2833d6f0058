package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"gorm.io/gorm"

	"github.com/bazarko/go-supplier-bot/internal/domain"
	"github.com/bazarko/go-supplier-bot/internal/repo"
)

type productRepoShim struct{}

func (productRepoShim) GetSupplierByChatID(ctx context.Context, db *gorm.DB, chatID int64) (*domain.Supplier, error) {
	return repo.GetSupplierByChatID(ctx, db, chatID)
}

func (productRepoShim) CountProducts(ctx context.Context, db *gorm.DB, supplierID string) (int64, error) {
	return repo.CountProducts(ctx, db, supplierID)
}

func (productRepoShim) ListProductsPage(ctx context.Context, db *gorm.DB, supplierID string, offset, limit int) ([]domain.Product, error) {
	return repo.ListProductsPage(ctx, db, supplierID, offset, limit)
}

func (productRepoShim) ListProducts(ctx context.Context, db *gorm.DB, supplierID string) ([]domain.Product, error) {
	return repo.ListProducts(ctx, db, supplierID)
}

func TestProductService_ListPage(t *testing.T) {
	db := newServiceDB(t)
	sup, loc := seedSupplier(t, db, 42)
	for i := 0; i < 5; i++ {
		seedProduct(t, db, sup.ID, loc.ID, fmt.Sprintf("Item %d", i))
	}

	svc := NewProductService(db, productRepoShim{})

	items, total, err := svc.ListPage(context.Background(), 42, 1, 2)
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(items) != 2 {
		t.Errorf("page = %d items, want 2", len(items))
	}

	// Last page is short; out-of-range pages are empty, not errors.
	items, _, err = svc.ListPage(context.Background(), 42, 3, 2)
	if err != nil {
		t.Fatalf("ListPage(page 3): %v", err)
	}
	if len(items) != 1 {
		t.Errorf("last page = %d items, want 1", len(items))
	}

	// Invalid page/pageSize fall back to defaults.
	items, total, err = svc.ListPage(context.Background(), 42, 0, -1)
	if err != nil {
		t.Fatalf("ListPage(defaults): %v", err)
	}
	if total != 5 || len(items) != 5 {
		t.Errorf("defaults: %d items, total %d", len(items), total)
	}
}

func TestProductService_ListPage_UnknownSupplier(t *testing.T) {
	db := newServiceDB(t)

	svc := NewProductService(db, productRepoShim{})
	_, _, err := svc.ListPage(context.Background(), 999, 1, 10)
	if !errors.Is(err, ErrSupplierNotFound) {
		t.Fatalf("err = %v, want ErrSupplierNotFound", err)
	}
}

func TestProductService_Search(t *testing.T) {
	db := newServiceDB(t)
	sup, loc := seedSupplier(t, db, 42)
	seedProduct(t, db, sup.ID, loc.ID, "Ceramic Mug")
	seedProduct(t, db, sup.ID, loc.ID, "Glass Teapot")
	seedProduct(t, db, sup.ID, loc.ID, "Ceramic Teapot")

	svc := NewProductService(db, productRepoShim{})

	results, err := svc.Search(context.Background(), 42, "ceramic teapot", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Product.Name != "Ceramic Teapot" {
		t.Errorf("best match = %q", results[0].Product.Name)
	}

	if _, err := svc.Search(context.Background(), 42, "   ", 5); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("blank query err = %v, want ErrEmptyQuery", err)
	}
}

func TestProductService_Search_ScopedToSupplier(t *testing.T) {
	db := newServiceDB(t)
	sup1, loc1 := seedSupplier(t, db, 1)
	seedProduct(t, db, sup1.ID, loc1.ID, "Ceramic Mug")

	sup2, err := repo.CreateSupplier(context.Background(), db, 2, "anna_tg", "Anna")
	if err != nil {
		t.Fatalf("seed supplier 2: %v", err)
	}
	loc2, err := repo.CreateLocation(context.Background(), db, sup2.ID, "Yuzhny", "3", nil)
	if err != nil {
		t.Fatalf("seed location 2: %v", err)
	}
	seedProduct(t, db, sup2.ID, loc2.ID, "Ceramic Vase")

	svc := NewProductService(db, productRepoShim{})
	results, err := svc.Search(context.Background(), 1, "ceramic", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Product.Name != "Ceramic Mug" {
		t.Errorf("results = %+v, want only supplier 1's product", results)
	}
}
