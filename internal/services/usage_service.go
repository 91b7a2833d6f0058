// Package services – UsageService
//
// This file implements the UsageService, which reports a user's AI-feature
// consumption for the current quota day. The day boundary follows the
// configured timezone, matching the limiter that enforces the quotas.
package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/bazarko/go-supplier-bot/internal/limits"
)

// UsageRepo defines the repository contract required by UsageService.
type UsageRepo interface {
	// GetUsageCount returns the recorded count for (user, feature, day);
	// zero when no row exists.
	GetUsageCount(ctx context.Context, db *gorm.DB, userID int64, feature, day string) (int, error)
}

// FeatureUsage reports one feature's consumption against its daily limit.
type FeatureUsage struct {
	Used      int `json:"used"`
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
}

// UsageReport is the per-user daily usage view served by the ops API.
type UsageReport struct {
	Day         string       `json:"day"`
	Recognition FeatureUsage `json:"recognition"`
	Enhancement FeatureUsage `json:"enhancement"`
}

// UsageService reads daily usage counters.
type UsageService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the usage repository used by this service.
	Repo UsageRepo

	// Location defines the quota day boundary; UTC when nil.
	Location *time.Location
	// RecognitionLimit and EnhancementLimit are the configured daily caps.
	RecognitionLimit int
	EnhancementLimit int

	// now is a seam for tests; defaults to time.Now.
	now func() time.Time
}

// NewUsageService constructs a UsageService.
func NewUsageService(db *gorm.DB, r UsageRepo, loc *time.Location, recognitionLimit, enhancementLimit int) *UsageService {
	if loc == nil {
		loc = time.UTC
	}
	return &UsageService{
		DB:               db,
		Repo:             r,
		Location:         loc,
		RecognitionLimit: recognitionLimit,
		EnhancementLimit: enhancementLimit,
		now:              time.Now,
	}
}

// Today reports the user's consumption for the current quota day. Unknown
// users report zero usage rather than an error.
func (s *UsageService) Today(ctx context.Context, userID int64) (*UsageReport, error) {
	day := s.now().In(s.Location).Format("2006-01-02")

	rec, err := s.Repo.GetUsageCount(ctx, s.DB, userID, limits.FeatureRecognition, day)
	if err != nil {
		return nil, err
	}
	enh, err := s.Repo.GetUsageCount(ctx, s.DB, userID, limits.FeatureEnhancement, day)
	if err != nil {
		return nil, err
	}

	return &UsageReport{
		Day:         day,
		Recognition: featureUsage(rec, s.RecognitionLimit),
		Enhancement: featureUsage(enh, s.EnhancementLimit),
	}, nil
}

func featureUsage(used, limit int) FeatureUsage {
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return FeatureUsage{Used: used, Limit: limit, Remaining: remaining}
}
