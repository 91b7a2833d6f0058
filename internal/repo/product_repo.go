// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Product model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazarko/go-supplier-bot/internal/domain"
)

// CreateProduct inserts a new product row. The caller supplies recognized
// attributes and ownership references; the ID and UTC timestamp are assigned
// here.
func CreateProduct(ctx context.Context, db *gorm.DB, p *domain.Product) (*domain.Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// ListProducts returns products for supplierID ordered newest first.
func ListProducts(ctx context.Context, db *gorm.DB, supplierID string) ([]domain.Product, error) {
	var out []domain.Product
	err := db.WithContext(ctx).
		Where("supplier_id = ?", supplierID).
		Order("created_at DESC, id ASC").
		Find(&out).Error
	return out, err
}

// ListProductsPage returns a paginated slice of products for supplierID,
// ordered newest first. Use CountProducts for pagination metadata.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListProductsPage(ctx context.Context, db *gorm.DB, supplierID string, offset, limit int) ([]domain.Product, error) {
	var out []domain.Product
	err := db.WithContext(ctx).
		Where("supplier_id = ?", supplierID).
		Order("created_at DESC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountProducts uses a raw COUNT so a missing table surfaces as an error.
func CountProducts(ctx context.Context, db *gorm.DB, supplierID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM products WHERE supplier_id = ? AND deleted_at IS NULL", supplierID).
		Scan(&total).Error
	return total, err
}

// GetProduct fetches a product by ID.
func GetProduct(ctx context.Context, db *gorm.DB, id string) (*domain.Product, error) {
	var p domain.Product
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProductEnhancement fills in the enhancement output for a product.
// Empty values are written as-is (the caller decides what a failed
// enhancement leaves behind). Returns ErrNotFound when no row matches.
func UpdateProductEnhancement(ctx context.Context, db *gorm.DB, id, enhancedImageURL, enhancedDescription string) error {
	res := db.WithContext(ctx).
		Model(&domain.Product{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"enhanced_image_url":   enhancedImageURL,
			"enhanced_description": enhancedDescription,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteProduct soft-deletes a product owned by supplierID. Returns
// ErrNotFound when no row matches.
func DeleteProduct(ctx context.Context, db *gorm.DB, id, supplierID string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND supplier_id = ?", id, supplierID).
		Delete(&domain.Product{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
