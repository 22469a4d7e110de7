package domain

import "time"

// WhitelistEntry overrides every blocking decision for its domain.
type WhitelistEntry struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	Domain    string    `gorm:"uniqueIndex;size:253;not null" json:"domain"`
	Reason    string    `gorm:"size:255;default:''" json:"reason"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
