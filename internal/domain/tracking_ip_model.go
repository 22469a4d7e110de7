package domain

import "time"

// TrackingIP mirrors TrackingDomain keyed by address. AssociatedDomain is a
// back-reference for lookups only, not ownership.
type TrackingIP struct {
	ID               uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	IPAddress        string    `gorm:"column:ip_address;uniqueIndex;size:45;not null" json:"ip_address"`
	AssociatedDomain string    `gorm:"size:253;default:''" json:"associated_domain"`
	Category         string    `gorm:"size:32;default:'tracker'" json:"category"`
	HitCount         int64     `gorm:"not null;default:1" json:"hit_count"`
	FirstSeen        time.Time `gorm:"autoCreateTime" json:"first_seen"`
	LastSeen         time.Time `json:"last_seen"`
	Blocked          bool      `gorm:"not null;default:false;index" json:"blocked"`
}
