// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the RequestToken
// model used to implement safe-retry semantics for Data Store writes.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazarko/go-supplier-bot/internal/domain"
)

// ErrDuplicate indicates that a request token has already been recorded.
var ErrDuplicate = errors.New("duplicate")

// GetRequestToken returns a non-expired token record or ErrNotFound.
func GetRequestToken(ctx context.Context, db *gorm.DB, token string, now time.Time) (*domain.RequestToken, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrNotFound
	}
	var rec domain.RequestToken
	err := db.WithContext(ctx).
		Where("token = ? AND expires_at > ?", token, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &rec, err
}

// CreateRequestToken inserts a token record and returns ErrDuplicate on
// unique violation.
func CreateRequestToken(ctx context.Context, db *gorm.DB, token, scope, refID string, allowed bool, result string, ttl time.Duration) (*domain.RequestToken, error) {
	now := time.Now().UTC()
	rec := &domain.RequestToken{
		ID:        uuid.NewString(),
		Token:     token,
		Scope:     scope,
		RefID:     refID,
		Allowed:   allowed,
		Result:    result,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
		low := strings.ToLower(err.Error())
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(low, "unique constraint failed") ||
			strings.Contains(low, "constraint failed: unique") {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}
