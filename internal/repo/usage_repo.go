// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the UsageRecord
// model used to enforce per-user daily quotas.
//
// The increment is a conditional UPDATE guarded by the configured limit, so
// concurrent callers cannot push a counter past the quota: SQLite serializes
// writers and the WHERE clause makes check-plus-increment one statement.
package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bazarko/go-supplier-bot/internal/domain"
)

// EnsureUsageRow inserts the zero-count row for (userID, feature, day) if it
// does not already exist. Safe to call repeatedly thanks to ON CONFLICT DO
// NOTHING against the unique index.
func EnsureUsageRow(ctx context.Context, db *gorm.DB, userID int64, feature, day string) error {
	rec := &domain.UsageRecord{
		ID:      uuid.NewString(),
		UserID:  userID,
		Feature: feature,
		Day:     day,
		Count:   0,
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(rec).Error
}

// IncrementUsageBelow bumps the counter for (userID, feature, day) only while
// it is still below limit. It reports whether the increment happened, i.e.
// whether the action is permitted.
//
// The row must exist (see EnsureUsageRow); a missing row reads as denied.
func IncrementUsageBelow(ctx context.Context, db *gorm.DB, userID int64, feature, day string, limit int) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.UsageRecord{}).
		Where("user_id = ? AND feature = ? AND day = ? AND count < ?", userID, feature, day, limit).
		UpdateColumn("count", gorm.Expr("count + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// GetUsageCount returns the current count for (userID, feature, day).
// A missing row reads as zero.
func GetUsageCount(ctx context.Context, db *gorm.DB, userID int64, feature, day string) (int, error) {
	var rec domain.UsageRecord
	err := db.WithContext(ctx).
		Where("user_id = ? AND feature = ? AND day = ?", userID, feature, day).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rec.Count, nil
}
