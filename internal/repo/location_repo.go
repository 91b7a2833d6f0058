// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Location model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazarko/go-supplier-bot/internal/domain"
)

// CreateLocation inserts a new Location row owned by supplierID. Phone order
// is preserved as given.
func CreateLocation(ctx context.Context, db *gorm.DB, supplierID, marketName, pavilionNumber string, phones []string) (*domain.Location, error) {
	l := &domain.Location{
		ID:             uuid.NewString(),
		SupplierID:     supplierID,
		MarketName:     marketName,
		PavilionNumber: pavilionNumber,
		Phones:         phones,
		CreatedAt:      time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(l).Error; err != nil {
		return nil, err
	}
	return l, nil
}

// ListLocations returns all locations belonging to supplierID, ordered by
// creation time ascending (registration order). It returns an empty slice if
// the supplier has none. On DB error, it returns the error.
func ListLocations(ctx context.Context, db *gorm.DB, supplierID string) ([]domain.Location, error) {
	var out []domain.Location
	err := db.WithContext(ctx).
		Where("supplier_id = ?", supplierID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// GetLocation fetches a single location by its ID scoped to the owning
// supplier. If the record does not exist (or belongs to another supplier),
// it returns ErrNotFound.
func GetLocation(ctx context.Context, db *gorm.DB, id, supplierID string) (*domain.Location, error) {
	var l domain.Location
	err := db.WithContext(ctx).
		Where("id = ? AND supplier_id = ?", id, supplierID).
		First(&l).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// CountLocations returns the number of locations owned by supplierID.
func CountLocations(ctx context.Context, db *gorm.DB, supplierID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Location{}).
		Where("supplier_id = ?", supplierID).
		Count(&total).Error
	return total, err
}

// DeleteLocation soft-deletes a location owned by supplierID. Returns
// ErrNotFound when no row matches.
func DeleteLocation(ctx context.Context, db *gorm.DB, id, supplierID string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND supplier_id = ?", id, supplierID).
		Delete(&domain.Location{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
