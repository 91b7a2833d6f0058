// Package limits enforces per-user daily quotas for the AI-backed features.
// Counters are keyed by (user, feature, calendar day) where the day is
// rendered in a configured timezone, so a new day addresses a fresh row and
// yesterday's counts become inert without any cleanup.
package limits

import (
	"context"
	"time"
)

// Feature names tracked by the limiter.
const (
	FeatureRecognition = "recognition"
	FeatureEnhancement = "enhancement"
)

// UsageStore is the slice of the Data Store the limiter needs. The
// increment must be atomic with respect to concurrent calls for the same
// key and must replay the recorded verdict when retried with the same
// request token.
type UsageStore interface {
	IncrementUsage(ctx context.Context, token string, userID int64, feature, day string, limit int) (bool, error)
	UsageCount(ctx context.Context, userID int64, feature, day string) (int, error)
}

// Limiter answers "may this user run this feature once more today?".
// Shared across all conversations; safe for concurrent use as long as the
// underlying store is.
type Limiter struct {
	store UsageStore
	loc   *time.Location

	// now is a seam for tests; defaults to time.Now.
	now func() time.Time
}

// New returns a limiter whose day boundary follows loc.
func New(store UsageStore, loc *time.Location) *Limiter {
	if loc == nil {
		loc = time.UTC
	}
	return &Limiter{store: store, loc: loc, now: time.Now}
}

// DayKey renders t as the quota day key in the limiter's timezone.
func (l *Limiter) DayKey(t time.Time) string {
	return t.In(l.loc).Format("2006-01-02")
}

// CheckAndIncrement atomically increments today's counter for (userID,
// feature) if it is still below limit and reports whether the action is
// permitted. token makes the operation idempotent under retry: the same
// token never counts twice and always returns the first verdict.
func (l *Limiter) CheckAndIncrement(ctx context.Context, token string, userID int64, feature string, limit int) (bool, error) {
	return l.store.IncrementUsage(ctx, token, userID, feature, l.DayKey(l.now()), limit)
}

// Remaining reports how many uses of feature are left today. Never
// negative.
func (l *Limiter) Remaining(ctx context.Context, userID int64, feature string, limit int) (int, error) {
	n, err := l.store.UsageCount(ctx, userID, feature, l.DayKey(l.now()))
	if err != nil {
		return 0, err
	}
	if n >= limit {
		return 0, nil
	}
	return limit - n, nil
}
