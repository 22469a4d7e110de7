package database

import (
	"context"
	"errors"

	"flock/internal/domain"

	"gorm.io/gorm/clause"
)

// IsWhitelisted reports whether the domain carries an unconditional allow.
func IsWhitelisted(ctx context.Context, domainName string) (bool, error) {
	if DB == nil {
		return false, errors.New("database not initialised")
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	var count int64
	err := db.Model(&domain.WhitelistEntry{}).
		Where("domain = ?", domainName).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// AddToWhitelist inserts the domain; re-inserting an existing entry is a
// no-op (entries are immutable except for removal).
func AddToWhitelist(ctx context.Context, domainName, reason string) error {
	if DB == nil {
		return errors.New("database not initialised")
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	entry := domain.WhitelistEntry{Domain: domainName, Reason: reason}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "domain"}},
		DoNothing: true,
	}).Create(&entry).Error
}

// RemoveFromWhitelist deletes the entry if present.
func RemoveFromWhitelist(ctx context.Context, domainName string) error {
	if DB == nil {
		return errors.New("database not initialised")
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	return db.Where("domain = ?", domainName).
		Delete(&domain.WhitelistEntry{}).Error
}

// WhitelistEntries returns all entries ordered by domain.
func WhitelistEntries(ctx context.Context) ([]domain.WhitelistEntry, error) {
	if DB == nil {
		return nil, errors.New("database not initialised")
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	var entries []domain.WhitelistEntry
	if err := db.Order("domain ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// SeedWhitelist loads config-provided domains that are not yet present.
func SeedWhitelist(ctx context.Context, domains []string) error {
	if DB == nil {
		return errors.New("database not initialised")
	}
	if len(domains) == 0 {
		return nil
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	entries := make([]domain.WhitelistEntry, 0, len(domains))
	for _, d := range domains {
		if d == "" {
			continue
		}
		entries = append(entries, domain.WhitelistEntry{Domain: d, Reason: "config"})
	}
	if len(entries) == 0 {
		return nil
	}

	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "domain"}},
		DoNothing: true,
	}).Create(&entries).Error
}
