package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Redirect maps a registered subdomain to its destination URL.
// Records are written by the record management application; this service only
// reads them and increments Hits.
type Redirect struct {
	ID        uint      `gorm:"primaryKey"`
	Subdomain string    `gorm:"uniqueIndex;size:63;not null"`
	URL       string    `gorm:"not null"`
	Hits      int64     `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName keeps the collection name used by the record management application.
func (Redirect) TableName() string {
	return "redirects"
}

// BeforeCreate lowercases the subdomain so lookups never depend on the casing of a DNS answer.
func (r *Redirect) BeforeCreate(tx *gorm.DB) error {
	r.Subdomain = strings.ToLower(strings.TrimSpace(r.Subdomain))
	return nil
}

// HitEvent is a resolved redirect waiting for its hit counter to be incremented.
// It is passed through a channel to the hit workers so the response never waits on the store.
type HitEvent struct {
	Subdomain string
	Timestamp time.Time
}
