package database

import (
	"context"
	"errors"
	"time"

	"flock/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertTrackingDomain records one match event for the domain. The insert
// and the hit-count increment are a single atomic statement so concurrent
// flow workers never lose an update. It returns the post-increment hit
// count and whether this exact call promoted the domain to blocked.
func UpsertTrackingDomain(ctx context.Context, domainName, category string, threshold int) (int64, bool, error) {
	if DB == nil {
		return 0, false, errors.New("database not initialised")
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	record := domain.TrackingDomain{
		Domain:   domainName,
		Category: category,
		HitCount: 1,
		LastSeen: time.Now().UTC(),
	}

	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "domain"}},
		DoUpdates: clause.Assignments(map[string]any{
			"hit_count": gorm.Expr("hit_count + 1"),
			"last_seen": time.Now().UTC(),
		}),
	}).Create(&record).Error
	if err != nil {
		return 0, false, err
	}

	var current domain.TrackingDomain
	if err := db.Where("domain = ?", domainName).First(&current).Error; err != nil {
		return 0, false, err
	}

	// The guarded update makes promotion exactly-once: a concurrent worker
	// straddling the threshold matches zero rows.
	newlyBlocked := false
	if current.HitCount >= int64(threshold) && !current.Blocked {
		res := db.Model(&domain.TrackingDomain{}).
			Where("domain = ? AND blocked = ?", domainName, false).
			Update("blocked", true)
		if res.Error != nil {
			return current.HitCount, false, res.Error
		}
		newlyBlocked = res.RowsAffected == 1
	}

	return current.HitCount, newlyBlocked, nil
}

// UpsertTrackingIP is the address-keyed counterpart of UpsertTrackingDomain.
// associatedDomain and category are stored only on first sight.
func UpsertTrackingIP(ctx context.Context, ip, associatedDomain, category string, threshold int) (int64, bool, error) {
	if DB == nil {
		return 0, false, errors.New("database not initialised")
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	record := domain.TrackingIP{
		IPAddress:        ip,
		AssociatedDomain: associatedDomain,
		Category:         category,
		HitCount:         1,
		LastSeen:         time.Now().UTC(),
	}

	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "ip_address"}},
		DoUpdates: clause.Assignments(map[string]any{
			"hit_count": gorm.Expr("hit_count + 1"),
			"last_seen": time.Now().UTC(),
		}),
	}).Create(&record).Error
	if err != nil {
		return 0, false, err
	}

	var current domain.TrackingIP
	if err := db.Where("ip_address = ?", ip).First(&current).Error; err != nil {
		return 0, false, err
	}

	newlyBlocked := false
	if current.HitCount >= int64(threshold) && !current.Blocked {
		res := db.Model(&domain.TrackingIP{}).
			Where("ip_address = ? AND blocked = ?", ip, false).
			Update("blocked", true)
		if res.Error != nil {
			return current.HitCount, false, res.Error
		}
		newlyBlocked = res.RowsAffected == 1
	}

	return current.HitCount, newlyBlocked, nil
}

// IsDomainBlocked reports whether the store already marks the domain blocked.
func IsDomainBlocked(ctx context.Context, domainName string) (bool, error) {
	if DB == nil {
		return false, errors.New("database not initialised")
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	var record domain.TrackingDomain
	err := db.Select("blocked").Where("domain = ?", domainName).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return record.Blocked, nil
}

func IsIPBlocked(ctx context.Context, ip string) (bool, error) {
	if DB == nil {
		return false, errors.New("database not initialised")
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	var record domain.TrackingIP
	err := db.Select("blocked").Where("ip_address = ?", ip).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return record.Blocked, nil
}

// ForceBlockDomain inserts (or updates) a domain with blocked already set,
// bypassing the hit-count threshold. Used by operator tooling.
func ForceBlockDomain(ctx context.Context, domainName, category string) error {
	if DB == nil {
		return errors.New("database not initialised")
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	record := domain.TrackingDomain{
		Domain:   domainName,
		Category: category,
		HitCount: 1,
		LastSeen: time.Now().UTC(),
		Blocked:  true,
	}

	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "domain"}},
		DoUpdates: clause.Assignments(map[string]any{
			"blocked":   true,
			"last_seen": time.Now().UTC(),
		}),
	}).Create(&record).Error
}

// ForceBlockIP is the address-keyed counterpart of ForceBlockDomain.
func ForceBlockIP(ctx context.Context, ip, associatedDomain string) error {
	if DB == nil {
		return errors.New("database not initialised")
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	record := domain.TrackingIP{
		IPAddress:        ip,
		AssociatedDomain: associatedDomain,
		HitCount:         1,
		LastSeen:         time.Now().UTC(),
		Blocked:          true,
	}

	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "ip_address"}},
		DoUpdates: clause.Assignments(map[string]any{
			"blocked":   true,
			"last_seen": time.Now().UTC(),
		}),
	}).Create(&record).Error
}

// BlockedDomains returns every blocked domain name.
func BlockedDomains(ctx context.Context) ([]string, error) {
	if DB == nil {
		return nil, errors.New("database not initialised")
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	var domains []string
	err := db.Model(&domain.TrackingDomain{}).
		Where("blocked = ?", true).
		Order("hit_count DESC").
		Pluck("domain", &domains).Error
	if err != nil {
		return nil, err
	}
	return domains, nil
}

// BlockedIPs returns every blocked address.
func BlockedIPs(ctx context.Context) ([]string, error) {
	if DB == nil {
		return nil, errors.New("database not initialised")
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	var ips []string
	err := db.Model(&domain.TrackingIP{}).
		Where("blocked = ?", true).
		Order("hit_count DESC").
		Pluck("ip_address", &ips).Error
	if err != nil {
		return nil, err
	}
	return ips, nil
}

// TopTrackingDomains lists blocked domains ordered by hit count, for
// operator tooling.
func TopTrackingDomains(ctx context.Context, limit int) ([]domain.TrackingDomain, error) {
	if DB == nil {
		return nil, errors.New("database not initialised")
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	var rows []domain.TrackingDomain
	err := db.Where("blocked = ?", true).
		Order("hit_count DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func TopTrackingIPs(ctx context.Context, limit int) ([]domain.TrackingIP, error) {
	if DB == nil {
		return nil, errors.New("database not initialised")
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	var rows []domain.TrackingIP
	err := db.Where("blocked = ?", true).
		Order("hit_count DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
