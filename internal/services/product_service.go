// Package services – ProductService
//
// This file implements the ProductService, which serves product listings
// (paginated) and relevance search for the ops API. Search builds an
// in-memory index over the supplier's products per query; catalogs are
// small (hundreds of rows at most) so construction cost is negligible and
// the index never goes stale.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/bazarko/go-supplier-bot/internal/domain"
	"github.com/bazarko/go-supplier-bot/internal/repo"
	"github.com/bazarko/go-supplier-bot/internal/search"
)

// ProductRepo defines the repository contract required by ProductService.
type ProductRepo interface {
	// GetSupplierByChatID resolves the supplier owning the products.
	GetSupplierByChatID(ctx context.Context, db *gorm.DB, chatID int64) (*domain.Supplier, error)

	// CountProducts returns the total number of products for pagination.
	CountProducts(ctx context.Context, db *gorm.DB, supplierID string) (int64, error)

	// ListProductsPage returns a page of the supplier's products.
	ListProductsPage(ctx context.Context, db *gorm.DB, supplierID string, offset, limit int) ([]domain.Product, error)

	// ListProducts returns all of the supplier's products (search corpus).
	ListProducts(ctx context.Context, db *gorm.DB, supplierID string) ([]domain.Product, error)
}

// ProductService provides listing and search over a supplier's catalog.
type ProductService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the product repository used by this service.
	Repo ProductRepo

	// SearchTopK caps search results when the caller passes k <= 0.
	SearchTopK int
}

// NewProductService constructs a ProductService with default search depth.
func NewProductService(db *gorm.DB, r ProductRepo) *ProductService {
	return &ProductService{DB: db, Repo: r, SearchTopK: 10}
}

// ListPage returns a page of products for the supplier registered under
// chatID, with the total count. Defaults are applied for invalid
// page/pageSize.
func (s *ProductService) ListPage(ctx context.Context, chatID int64, page, pageSize int) ([]domain.Product, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	sup, err := s.supplier(ctx, chatID)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.Repo.CountProducts(ctx, s.DB, sup.ID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Product{}, 0, nil
	}

	items, err := s.Repo.ListProductsPage(ctx, s.DB, sup.ID, offset, pageSize)
	return items, total, err
}

// Search ranks the supplier's products against the query and returns up to
// k results. Returns ErrEmptyQuery for blank queries.
func (s *ProductService) Search(ctx context.Context, chatID int64, query string, k int) ([]search.Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		k = s.SearchTopK
	}

	sup, err := s.supplier(ctx, chatID)
	if err != nil {
		return nil, err
	}
	products, err := s.Repo.ListProducts(ctx, s.DB, sup.ID)
	if err != nil {
		return nil, err
	}

	idx := search.NewProductIndex(products)
	return idx.TopK(query, k), nil
}

func (s *ProductService) supplier(ctx context.Context, chatID int64) (*domain.Supplier, error) {
	sup, err := s.Repo.GetSupplierByChatID(ctx, s.DB, chatID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrSupplierNotFound
		}
		return nil, err
	}
	return sup, nil
}
