package domain

import "time"

// RequestAudit is one append-only log row per mediated request.
// Rows are written once and read only for reporting.
type RequestAudit struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	Timestamp   time.Time `gorm:"autoCreateTime;index" json:"timestamp"`
	Method      string    `gorm:"size:16" json:"method"`
	URL         string    `gorm:"size:2048" json:"url"`
	Domain      string    `gorm:"size:253;index" json:"domain"`
	IPAddress   string    `gorm:"column:ip_address;size:45" json:"ip_address"`
	Blocked     bool      `gorm:"not null;default:false;index" json:"blocked"`
	BlockReason string    `gorm:"size:255;default:''" json:"block_reason"`
}

// CookieAudit is one append-only log row per evaluated cookie. Value holds
// at most the first 100 characters of the cookie value.
type CookieAudit struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	Timestamp  time.Time `gorm:"autoCreateTime;index" json:"timestamp"`
	Domain     string    `gorm:"size:253;index" json:"domain"`
	CookieName string    `gorm:"size:255" json:"cookie_name"`
	Value      string    `gorm:"size:100" json:"value"`
	IPAddress  string    `gorm:"column:ip_address;size:45" json:"ip_address"`
	URL        string    `gorm:"size:2048" json:"url"`
	Blocked    bool      `gorm:"not null;default:false;index" json:"blocked"`
}
