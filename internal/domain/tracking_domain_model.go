package domain

import "time"

// TrackingDomain is one domain that has been observed serving trackers.
// hit_count counts every match event since creation; rows are never
// deleted automatically.
type TrackingDomain struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	Domain    string    `gorm:"uniqueIndex;size:253;not null" json:"domain"`
	Category  string    `gorm:"size:32;default:'tracker'" json:"category"`
	HitCount  int64     `gorm:"not null;default:1" json:"hit_count"`
	FirstSeen time.Time `gorm:"autoCreateTime" json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Blocked   bool      `gorm:"not null;default:false;index" json:"blocked"`
}
