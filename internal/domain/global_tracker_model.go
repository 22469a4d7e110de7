package domain

import "time"

// GlobalTracker is the aggregator's canonical record for one tracker domain.
// Organization and Method are attribution fields filled by the first report
// that carries them and never overwritten afterwards.
type GlobalTracker struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Domain       string    `gorm:"uniqueIndex;size:253;not null" json:"domain"`
	FirstSeen    time.Time `gorm:"autoCreateTime" json:"first_seen"`
	LastSeen     time.Time `gorm:"index" json:"last_seen"`
	TotalBlocks  int64     `gorm:"not null;default:1" json:"total_blocks"`
	UniqueUsers  int64     `gorm:"not null;default:1" json:"unique_users"`
	Category     string    `gorm:"size:32;default:'tracker'" json:"category"`
	Organization string    `gorm:"size:64;default:''" json:"organization"`
	Method       string    `gorm:"size:32;default:''" json:"method"`
	Confidence   float64   `gorm:"not null;default:0.5" json:"confidence"`
	AutoBlock    bool      `gorm:"not null;default:true" json:"auto_block"`
}

// TrackerReport is one append-only row per report received, novel or not.
type TrackerReport struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID     string    `gorm:"column:user_id;size:64;index;not null" json:"user_id"`
	Domain     string    `gorm:"size:253;index;not null" json:"domain"`
	Timestamp  time.Time `gorm:"autoCreateTime" json:"timestamp"`
	Method     string    `gorm:"size:32" json:"method"`
	Confidence float64   `json:"confidence"`
	Context    string    `gorm:"size:1024;default:''" json:"context"`
}

// ActiveUser is an anonymous per-instance record; UserID derives from
// machine identity, not from anything personally identifying.
type ActiveUser struct {
	UserID       string    `gorm:"column:user_id;primaryKey;size:64" json:"user_id"`
	LastSeen     time.Time `gorm:"index" json:"last_seen"`
	TotalReports int64     `gorm:"not null;default:0" json:"total_reports"`
	PrivacyScore int64     `gorm:"not null;default:0" json:"privacy_score"`
}
