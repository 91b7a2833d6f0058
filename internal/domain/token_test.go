package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTokenDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func TestRequestToken_Migration_UniqueToken_AndInsert(t *testing.T) {
	db := newTokenDB(t)

	if err := db.AutoMigrate(&RequestToken{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()
	if !m.HasTable(&RequestToken{}) {
		t.Fatalf("expected table %q to exist", RequestToken{}.TableName())
	}
	if !m.HasIndex(&RequestToken{}, "ux_request_token") {
		t.Fatalf("expected unique index ux_request_token to exist")
	}

	now := time.Now().UTC()
	rec := &RequestToken{
		ID:        "id-1",
		Token:     "tok-1",
		Scope:     TokenScopeProduct,
		RefID:     "p1",
		Allowed:   true,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("insert valid: %v", err)
	}

	var got RequestToken
	if err := db.First(&got, "token = ?", "tok-1").Error; err != nil {
		t.Fatalf("readback: %v", err)
	}
	if got.Scope != TokenScopeProduct || got.RefID != "p1" || !got.Allowed {
		t.Fatalf("unexpected row: %+v", got)
	}
	if got.ExpiresAt.Before(now) {
		t.Fatalf("ExpiresAt should be after CreatedAt: %v vs %v", got.ExpiresAt, now)
	}

	// The token column itself must be unique regardless of scope.
	dup := &RequestToken{
		ID:        "id-2",
		Token:     "tok-1",
		Scope:     TokenScopeUsage,
		RefID:     "u1",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	if err := db.Create(dup).Error; err == nil {
		t.Fatalf("expected UNIQUE constraint violation on token")
	}
}
