package limits

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// fakeUsageStore counts increments in memory with the same conditional
// semantics as the real store, and records token replays.
type fakeUsageStore struct {
	counts map[string]int
	tokens map[string]bool
}

func newFakeUsageStore() *fakeUsageStore {
	return &fakeUsageStore{counts: map[string]int{}, tokens: map[string]bool{}}
}

func (f *fakeUsageStore) key(userID int64, feature, day string) string {
	return fmt.Sprintf("%d|%s|%s", userID, feature, day)
}

func (f *fakeUsageStore) IncrementUsage(ctx context.Context, token string, userID int64, feature, day string, limit int) (bool, error) {
	if verdict, ok := f.tokens[token]; ok {
		return verdict, nil
	}
	k := f.key(userID, feature, day)
	allowed := f.counts[k] < limit
	if allowed {
		f.counts[k]++
	}
	f.tokens[token] = allowed
	return allowed, nil
}

func (f *fakeUsageStore) UsageCount(ctx context.Context, userID int64, feature, day string) (int, error) {
	return f.counts[f.key(userID, feature, day)], nil
}

func TestCheckAndIncrement_LimitThenDeny(t *testing.T) {
	fs := newFakeUsageStore()
	l := New(fs, time.UTC)
	ctx := context.Background()

	const limit = 3
	for i := 0; i < limit; i++ {
		ok, err := l.CheckAndIncrement(ctx, fmt.Sprintf("tok-%d", i), 1, FeatureRecognition, limit)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Fatalf("call %d denied below limit", i+1)
		}
	}
	ok, err := l.CheckAndIncrement(ctx, "tok-over", 1, FeatureRecognition, limit)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("limit+1 call must be denied")
	}
}

func TestCheckAndIncrement_NewDayResets(t *testing.T) {
	fs := newFakeUsageStore()
	l := New(fs, time.UTC)
	ctx := context.Background()

	day1 := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return day1 }

	if ok, _ := l.CheckAndIncrement(ctx, "t1", 1, FeatureRecognition, 1); !ok {
		t.Fatal("first call denied")
	}
	if ok, _ := l.CheckAndIncrement(ctx, "t2", 1, FeatureRecognition, 1); ok {
		t.Fatal("second call same day must be denied")
	}

	l.now = func() time.Time { return day1.Add(24 * time.Hour) }
	if ok, _ := l.CheckAndIncrement(ctx, "t3", 1, FeatureRecognition, 1); !ok {
		t.Error("new day must start from zero")
	}
}

func TestCheckAndIncrement_TokenRetryKeepsVerdict(t *testing.T) {
	fs := newFakeUsageStore()
	l := New(fs, time.UTC)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.CheckAndIncrement(ctx, "same-token", 1, FeatureEnhancement, 5)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Fatalf("call %d denied", i+1)
		}
	}
	n, err := l.Remaining(ctx, 1, FeatureEnhancement, 5)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("remaining = %d after token retry, want 4", n)
	}
}

func TestDayKey_UsesTimezone(t *testing.T) {
	// 23:30 UTC on Aug 22 is already Aug 23 in Moscow (UTC+3).
	msk, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	l := New(newFakeUsageStore(), msk)
	at := time.Date(2026, 8, 22, 23, 30, 0, 0, time.UTC)
	if got := l.DayKey(at); got != "2026-08-23" {
		t.Errorf("DayKey = %q, want %q", got, "2026-08-23")
	}
}

func TestRemaining_NeverNegative(t *testing.T) {
	fs := newFakeUsageStore()
	fs.counts["1|recognition|"+time.Now().UTC().Format("2006-01-02")] = 99
	l := New(fs, time.UTC)

	n, err := l.Remaining(context.Background(), 1, FeatureRecognition, 10)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("remaining = %d, want 0", n)
	}
}
