package services

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/bazarko/go-supplier-bot/internal/limits"
	"github.com/bazarko/go-supplier-bot/internal/repo"
)

type usageRepoShim struct{}

func (usageRepoShim) GetUsageCount(ctx context.Context, db *gorm.DB, userID int64, feature, day string) (int, error) {
	return repo.GetUsageCount(ctx, db, userID, feature, day)
}

func bumpUsage(t *testing.T, db *gorm.DB, userID int64, feature, day string, times int) {
	t.Helper()
	ctx := context.Background()
	if err := repo.EnsureUsageRow(ctx, db, userID, feature, day); err != nil {
		t.Fatalf("ensure usage row: %v", err)
	}
	for i := 0; i < times; i++ {
		if _, err := repo.IncrementUsageBelow(ctx, db, userID, feature, day, 1000); err != nil {
			t.Fatalf("increment usage: %v", err)
		}
	}
}

func TestUsageService_Today(t *testing.T) {
	db := newServiceDB(t)
	fixed := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	day := "2026-03-14"

	bumpUsage(t, db, 42, limits.FeatureRecognition, day, 3)
	bumpUsage(t, db, 42, limits.FeatureEnhancement, day, 10)

	svc := NewUsageService(db, usageRepoShim{}, time.UTC, 10, 5)
	svc.now = func() time.Time { return fixed }

	rep, err := svc.Today(context.Background(), 42)
	if err != nil {
		t.Fatalf("Today: %v", err)
	}
	if rep.Day != day {
		t.Errorf("day = %q, want %q", rep.Day, day)
	}
	if rep.Recognition.Used != 3 || rep.Recognition.Remaining != 7 {
		t.Errorf("recognition = %+v", rep.Recognition)
	}
	// Over-limit usage clamps remaining at zero.
	if rep.Enhancement.Used != 10 || rep.Enhancement.Remaining != 0 {
		t.Errorf("enhancement = %+v", rep.Enhancement)
	}
}

func TestUsageService_Today_UnknownUserIsZero(t *testing.T) {
	db := newServiceDB(t)

	svc := NewUsageService(db, usageRepoShim{}, time.UTC, 10, 10)
	rep, err := svc.Today(context.Background(), 7)
	if err != nil {
		t.Fatalf("Today: %v", err)
	}
	if rep.Recognition.Used != 0 || rep.Recognition.Remaining != 10 {
		t.Errorf("recognition = %+v, want untouched quota", rep.Recognition)
	}
}

// The day key respects the configured timezone: late UTC evening is already
// the next day in Moscow.
func TestUsageService_Today_TimezoneBoundary(t *testing.T) {
	db := newServiceDB(t)
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	svc := NewUsageService(db, usageRepoShim{}, loc, 10, 10)
	svc.now = func() time.Time { return time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC) }

	rep, err := svc.Today(context.Background(), 42)
	if err != nil {
		t.Fatalf("Today: %v", err)
	}
	if rep.Day != "2026-03-15" {
		t.Errorf("day = %q, want 2026-03-15", rep.Day)
	}
}
