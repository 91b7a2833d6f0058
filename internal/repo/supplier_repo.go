// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Supplier model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a supplier is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Functions:
//
//   - CreateSupplier(ctx, db, chatID, displayName, contactName) -> *domain.Supplier, error
//     Inserts a new Supplier row with UUID primary key and UTC timestamp.
//
//   - GetSupplierByChatID(ctx, db, chatID) -> *domain.Supplier, error
//     Fetches the supplier registered for a Telegram account, or ErrNotFound.
//
//   - GetSupplier(ctx, db, id) -> *domain.Supplier, error
//     Fetches a supplier by primary key, or ErrNotFound.
//
//   - UpdateSupplierContactName(ctx, db, id, contactName) -> error
//     Renames the supplier contact. Returns ErrNotFound when no row matches.
//
// This repository is designed to be wrapped by the store facade
// (see store.Store) which adds request-token idempotency and transactional
// multi-row commits on top.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazarko/go-supplier-bot/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the store layer, services, and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateSupplier inserts a new Supplier row for the given Telegram account.
// The supplier ID is a randomly generated UUID (string), and CreatedAt is set to UTC.
//
// On success, it returns the persisted Supplier. On failure, it returns a DB
// error; a duplicate chat id surfaces as a unique-constraint violation.
func CreateSupplier(ctx context.Context, db *gorm.DB, chatID int64, displayName, contactName string) (*domain.Supplier, error) {
	s := &domain.Supplier{
		ID:          uuid.NewString(),
		ChatID:      chatID,
		DisplayName: displayName,
		ContactName: contactName,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// GetSupplierByChatID fetches the supplier registered for the given Telegram
// account. If no supplier exists, it returns ErrNotFound. On other DB errors,
// the raw error is returned.
func GetSupplierByChatID(ctx context.Context, db *gorm.DB, chatID int64) (*domain.Supplier, error) {
	var s domain.Supplier
	err := db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSupplier fetches a supplier by its primary key. If the record does not
// exist, it returns ErrNotFound. On other DB errors, the raw error is returned.
func GetSupplier(ctx context.Context, db *gorm.DB, id string) (*domain.Supplier, error) {
	var s domain.Supplier
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSupplierContactName updates the contact name of the supplier
// identified by id. If no rows are affected (supplier missing), it returns
// ErrNotFound. On DB error, the raw error is returned.
func UpdateSupplierContactName(ctx context.Context, db *gorm.DB, id, contactName string) error {
	res := db.WithContext(ctx).
		Model(&domain.Supplier{}).
		Where("id = ?", id).
		Update("contact_name", contactName)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
