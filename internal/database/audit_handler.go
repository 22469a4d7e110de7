package database

import (
	"context"
	"errors"

	"flock/internal/domain"
)

const auditValueLimit = 100

// LogRequest appends one request audit row.
func LogRequest(ctx context.Context, method, url, domainName, ip string, blocked bool, reason string) error {
	if DB == nil {
		return errors.New("database not initialised")
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	row := domain.RequestAudit{
		Method:      method,
		URL:         url,
		Domain:      domainName,
		IPAddress:   ip,
		Blocked:     blocked,
		BlockReason: reason,
	}
	return db.Create(&row).Error
}

// LogCookie appends one cookie audit row. The value is truncated to 100
// characters here, never earlier, so matching always sees the full value.
func LogCookie(ctx context.Context, domainName, cookieName, value, ip, url string, blocked bool) error {
	if DB == nil {
		return errors.New("database not initialised")
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	if len(value) > auditValueLimit {
		value = value[:auditValueLimit]
	}

	row := domain.CookieAudit{
		Domain:     domainName,
		CookieName: cookieName,
		Value:      value,
		IPAddress:  ip,
		URL:        url,
		Blocked:    blocked,
	}
	return db.Create(&row).Error
}

// RecentCookieAudits returns the newest cookie rows, for operator tooling.
func RecentCookieAudits(ctx context.Context, limit int) ([]domain.CookieAudit, error) {
	if DB == nil {
		return nil, errors.New("database not initialised")
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	var rows []domain.CookieAudit
	err := db.Order("timestamp DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func RecentRequestAudits(ctx context.Context, limit int) ([]domain.RequestAudit, error) {
	if DB == nil {
		return nil, errors.New("database not initialised")
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	var rows []domain.RequestAudit
	err := db.Order("timestamp DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// StoreStatistics are the local decision-store counters shown by flockctl.
type StoreStatistics struct {
	BlockedDomains int64 `json:"blocked_domains"`
	BlockedIPs     int64 `json:"blocked_ips"`
	BlockedCookies int64 `json:"blocked_cookies"`
	TotalRequests  int64 `json:"total_requests"`
	TotalCookies   int64 `json:"total_cookies"`
}

func Statistics(ctx context.Context) (StoreStatistics, error) {
	var stats StoreStatistics
	if DB == nil {
		return stats, errors.New("database not initialised")
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	if err := db.Model(&domain.TrackingDomain{}).Where("blocked = ?", true).Count(&stats.BlockedDomains).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&domain.TrackingIP{}).Where("blocked = ?", true).Count(&stats.BlockedIPs).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&domain.CookieAudit{}).Where("blocked = ?", true).Count(&stats.BlockedCookies).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&domain.RequestAudit{}).Count(&stats.TotalRequests).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&domain.CookieAudit{}).Count(&stats.TotalCookies).Error; err != nil {
		return stats, err
	}
	return stats, nil
}
