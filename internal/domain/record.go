// Package domain contains the core domain models for the dealwatch pipeline.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when an entity is not found in the database.
var ErrNotFound = errors.New("entity not found")

// ErrInvalidRecord is returned when creating a catalog record with invalid fields.
var ErrInvalidRecord = errors.New("invalid catalog record")

// RecordStatus represents the publication state of a catalog record.
type RecordStatus string

const (
	// StatusPendingPublish marks a record that has pricing data and awaits
	// announcement to the channel.
	StatusPendingPublish RecordStatus = "pending_publish"
	// StatusPublished marks a record whose current pricing has been announced.
	StatusPublished RecordStatus = "published"
)

// MinorUnitsPerUnit converts storefront minor-unit prices (cents, kopecks)
// to currency units.
const MinorUnitsPerUnit = 100

// CatalogRecord is one discovered storefront entry with its last known pricing.
// AppID is assigned by the external catalog and is immutable once inserted.
type CatalogRecord struct {
	AppID           int64        `db:"app_id"           json:"app_id"`
	DiscountPercent int          `db:"discount_percent" json:"discount_percent"`
	InitialPrice    float64      `db:"initial_price"    json:"initial_price"`
	Status          RecordStatus `db:"status"           json:"status"`
	UpdatedAt       time.Time    `db:"updated_at"       json:"updated_at"`
}

// NewCatalogRecord creates a pending record from a storefront pricing payload.
// priceMinor is the price in minor units as the catalog API reports it.
func NewCatalogRecord(appID int64, priceMinor int64, discountPercent int) (*CatalogRecord, error) {
	if appID <= 0 {
		return nil, fmt.Errorf("%w: app_id must be positive, got %d", ErrInvalidRecord, appID)
	}
	if priceMinor <= 0 {
		return nil, fmt.Errorf("%w: price must be positive, got %d", ErrInvalidRecord, priceMinor)
	}
	if discountPercent < 0 {
		return nil, fmt.Errorf("%w: discount_percent must be >= 0, got %d", ErrInvalidRecord, discountPercent)
	}

	return &CatalogRecord{
		AppID:           appID,
		DiscountPercent: discountPercent,
		InitialPrice:    float64(priceMinor) / MinorUnitsPerUnit,
		Status:          StatusPendingPublish,
		UpdatedAt:       time.Now(),
	}, nil
}

// FinalPrice returns the discounted price in currency units.
func (r *CatalogRecord) FinalPrice() float64 {
	return r.InitialPrice * (1 - float64(r.DiscountPercent)/100)
}

// PricingEquals reports whether the stored pricing matches a freshly fetched
// one. priceMinor is in minor units.
func (r *CatalogRecord) PricingEquals(priceMinor int64, discountPercent int) bool {
	return r.InitialPrice == float64(priceMinor)/MinorUnitsPerUnit &&
		r.DiscountPercent == discountPercent
}

// Announcement is the multi-attachment message handed to the channel client.
// The cover image carries the caption; screenshots follow as plain photos.
type Announcement struct {
	AppID       int64
	CoverURL    string
	Caption     string
	Screenshots []string
}

// StoreStats holds record-store counts for the ops API.
type StoreStats struct {
	Pending   int64 `json:"pending"`
	Published int64 `json:"published"`
	Total     int64 `json:"total"`
}
