// Package domain defines the persistence models for suppliers, locations,
// products, and usage records. These types are mapped with GORM and form
// the core data layer of the supplier bot.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Supplier represents a registered wholesale vendor. A supplier is created
// on first completed registration and is never deleted; profile edits
// mutate the row in place.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - ChatID: external Telegram account identifier; unique per supplier.
//   - DisplayName: Telegram username at registration time (may be empty).
//   - ContactName: human contact name entered during registration.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Supplier struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	ChatID      int64     `json:"chat_id"      gorm:"not null;uniqueIndex:ux_supplier_chat"`
	DisplayName string    `json:"display_name" gorm:"type:varchar(255)"`
	ContactName string    `json:"contact_name" gorm:"type:varchar(255);not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for Supplier.
func (Supplier) TableName() string { return "suppliers" }

// Location represents a physical sales point (market + pavilion) owned by
// exactly one supplier. Contact phones keep their entry order.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - SupplierID: foreign key to the owning supplier (indexed).
//   - MarketName / PavilionNumber: where the pavilion is.
//   - Phones: ordered contact phone numbers (JSON-serialized column).
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker (profile edits can drop a location).
type Location struct {
	ID             string         `json:"id"              gorm:"type:char(36);primaryKey"`
	SupplierID     string         `json:"supplier_id"     gorm:"type:char(36);not null;index:idx_supplier_locations"`
	MarketName     string         `json:"market_name"     gorm:"type:varchar(255);not null"`
	PavilionNumber string         `json:"pavilion_number" gorm:"type:varchar(64);not null"`
	Phones         []string       `json:"phones"          gorm:"serializer:json;type:text"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-"               gorm:"index"`

	// Supplier is the owning vendor. Locations are cascade-deleted if the
	// supplier row is ever removed manually.
	Supplier Supplier `json:"-" gorm:"foreignKey:SupplierID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Location.
func (Location) TableName() string { return "locations" }

// Product represents an item recognized from uploaded photos and bound to
// one of the supplier's locations. Enhancement fields are filled in
// asynchronously after the product is saved and stay empty on failure.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - SupplierID / LocationID: ownership references (indexed).
//   - Name .. Packaging: attributes returned by the recognition service.
//   - Quantity: units available at the location.
//   - ImageURLs: ordered object-store references (JSON-serialized column).
//   - EnhancedImageURL / EnhancedDescription: optional enhancement output.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker.
type Product struct {
	ID                  string         `json:"id"               gorm:"type:char(36);primaryKey"`
	SupplierID          string         `json:"supplier_id"      gorm:"type:char(36);not null;index:idx_supplier_products"`
	LocationID          string         `json:"location_id"      gorm:"type:char(36);not null;index"`
	Name                string         `json:"name"             gorm:"type:varchar(255);not null"`
	Description         string         `json:"description"      gorm:"type:text"`
	Material            string         `json:"material"         gorm:"type:varchar(255)"`
	Dimensions          string         `json:"dimensions"       gorm:"type:varchar(255)"`
	ProductionOrigin    string         `json:"production_origin" gorm:"type:varchar(255)"`
	Packaging           string         `json:"packaging"        gorm:"type:varchar(255)"`
	Quantity            int            `json:"quantity"         gorm:"not null;default:1"`
	ImageURLs           []string       `json:"image_urls"       gorm:"serializer:json;type:text"`
	EnhancedImageURL    string         `json:"enhanced_image_url,omitempty" gorm:"type:text"`
	EnhancedDescription string         `json:"enhanced_description,omitempty" gorm:"type:text"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `json:"-" gorm:"index"`

	// Supplier owns the product; Location is where it is sold. Both are
	// cascade-deleted with their parents.
	Supplier Supplier `json:"-" gorm:"foreignKey:SupplierID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Location Location `json:"-" gorm:"foreignKey:LocationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Product.
func (Product) TableName() string { return "products" }

// UsageRecord counts limited actions per user, feature, and calendar day.
// The day column is a date string rendered in the configured quota timezone,
// so a new day simply addresses a fresh row and old rows become inert.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - UserID: external account identifier of the acting user.
//   - Feature: limited feature name ("recognition", "enhancement").
//   - Day: date key "YYYY-MM-DD" in the quota timezone.
//   - Count: successful check-and-increment calls so far that day.
type UsageRecord struct {
	ID        string    `json:"id"      gorm:"type:char(36);primaryKey"`
	UserID    int64     `json:"user_id" gorm:"not null;uniqueIndex:ux_usage_user_feature_day,priority:1"`
	Feature   string    `json:"feature" gorm:"type:varchar(32);not null;uniqueIndex:ux_usage_user_feature_day,priority:2"`
	Day       string    `json:"day"     gorm:"type:char(10);not null;uniqueIndex:ux_usage_user_feature_day,priority:3"`
	Count     int       `json:"count"   gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for UsageRecord.
func (UsageRecord) TableName() string { return "usage_records" }
