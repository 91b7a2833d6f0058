// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// by the ops API (entity totals) and for freshness checks. Each function is
// context-aware and safe to call from services or handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/bazarko/go-supplier-bot/internal/domain"
)

// EntityCounts holds the totals reported by CountEntities.
type EntityCounts struct {
	Suppliers int64 `json:"suppliers"`
	Locations int64 `json:"locations"`
	Products  int64 `json:"products"`
}

// CountEntities returns row totals for the three business tables. Soft-deleted
// locations and products are excluded by GORM's default scope.
func CountEntities(ctx context.Context, db *gorm.DB) (EntityCounts, error) {
	var out EntityCounts
	if err := db.WithContext(ctx).Model(&domain.Supplier{}).Count(&out.Suppliers).Error; err != nil {
		return out, err
	}
	if err := db.WithContext(ctx).Model(&domain.Location{}).Count(&out.Locations).Error; err != nil {
		return out, err
	}
	if err := db.WithContext(ctx).Model(&domain.Product{}).Count(&out.Products).Error; err != nil {
		return out, err
	}
	return out, nil
}

// ProductsStats returns aggregate metadata for a supplier's products: the
// total number of rows and the maximum UpdatedAt timestamp among those rows.
//
// When the supplier has no products, the returned count is 0 and
// maxUpdatedAt is nil.
//
// Return values:
//   - count:        total products for supplierID
//   - maxUpdatedAt: pointer to the greatest UpdatedAt, or nil if no rows
//   - err:          database error, if any
func ProductsStats(ctx context.Context, db *gorm.DB, supplierID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Product{}).Where("supplier_id = ?", supplierID)

	// Count
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
