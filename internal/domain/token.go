// Package domain defines the core persistence models for the application.
// These types are used by GORM for database schema mapping and are shared
// across the repository, store, and service layers.
package domain

import "time"

// RequestToken records the outcome of a previously processed write, keyed by
// a caller-supplied token. It makes Data Store appends and usage increments
// idempotent: retrying a failed call with the same token replays the stored
// outcome instead of re-executing the side effect.
type RequestToken struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	Token     string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_request_token"`
	Scope     string    `gorm:"type:TEXT NOT NULL"`
	RefID     string    `gorm:"type:TEXT NOT NULL"`
	Allowed   bool      `gorm:"type:BOOLEAN NOT NULL;default:false"`
	Result    string    `gorm:"type:TEXT"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (RequestToken) TableName() string { return "request_tokens" }

// Token scopes recorded by the store layer.
const (
	TokenScopeSupplier = "supplier"
	TokenScopeLocation = "location"
	TokenScopeProduct  = "product"
	TokenScopeUsage    = "usage"
	TokenScopeEvent    = "event"
)
