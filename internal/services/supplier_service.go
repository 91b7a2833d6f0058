// Package services – SupplierService
//
// This file implements the SupplierService, which assembles the read-side
// supplier profile served by the ops API: the supplier record, its sales
// locations, and the product count. Reads go through the shared read cache
// when one is configured, so dashboard polling does not hammer the Data
// Store; writes elsewhere invalidate by the supplier prefix.
package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/bazarko/go-supplier-bot/internal/cache"
	"github.com/bazarko/go-supplier-bot/internal/domain"
	"github.com/bazarko/go-supplier-bot/internal/repo"
)

// SupplierRepo defines the repository contract required by SupplierService.
type SupplierRepo interface {
	// GetSupplierByChatID fetches the supplier registered for a chat id.
	GetSupplierByChatID(ctx context.Context, db *gorm.DB, chatID int64) (*domain.Supplier, error)

	// ListLocations returns the supplier's sales locations.
	ListLocations(ctx context.Context, db *gorm.DB, supplierID string) ([]domain.Location, error)

	// CountProducts returns the supplier's total product count.
	CountProducts(ctx context.Context, db *gorm.DB, supplierID string) (int64, error)
}

// ProfileCache is the slice of the read cache the service consumes. A nil
// cache disables caching and every read goes to the repository.
type ProfileCache interface {
	GetOrFetch(ctx context.Context, key string, fetch cache.FetchFunc) (any, error)
}

// Profile is the assembled read model returned to API clients.
type Profile struct {
	Supplier     *domain.Supplier  `json:"supplier"`
	Locations    []domain.Location `json:"locations"`
	ProductCount int64             `json:"product_count"`
}

// SupplierService provides read-side supplier operations.
type SupplierService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the supplier repository used by this service.
	Repo SupplierRepo
	// Cache, when non-nil, fronts profile reads. The key lives under the
	// "supplier:<chat_id>:" prefix so conversation-side writes invalidate
	// it together with their own entries.
	Cache ProfileCache
}

// NewSupplierService constructs a SupplierService.
func NewSupplierService(db *gorm.DB, r SupplierRepo, c ProfileCache) *SupplierService {
	return &SupplierService{DB: db, Repo: r, Cache: c}
}

// GetProfile returns the profile for the supplier registered under chatID.
// Returns ErrSupplierNotFound when no registration exists.
func (s *SupplierService) GetProfile(ctx context.Context, chatID int64) (*Profile, error) {
	if s.Cache == nil {
		return s.fetchProfile(ctx, chatID)
	}
	v, err := s.Cache.GetOrFetch(ctx, opsProfileKey(chatID), func(ctx context.Context) (any, error) {
		return s.fetchProfile(ctx, chatID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Profile), nil
}

func (s *SupplierService) fetchProfile(ctx context.Context, chatID int64) (*Profile, error) {
	sup, err := s.Repo.GetSupplierByChatID(ctx, s.DB, chatID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrSupplierNotFound
		}
		return nil, err
	}
	locs, err := s.Repo.ListLocations(ctx, s.DB, sup.ID)
	if err != nil {
		return nil, err
	}
	count, err := s.Repo.CountProducts(ctx, s.DB, sup.ID)
	if err != nil {
		return nil, err
	}
	return &Profile{Supplier: sup, Locations: locs, ProductCount: count}, nil
}

// opsProfileKey is distinct from the conversation engine's profile key but
// shares its invalidation prefix.
func opsProfileKey(chatID int64) string {
	return fmt.Sprintf("supplier:%d:ops-profile", chatID)
}
