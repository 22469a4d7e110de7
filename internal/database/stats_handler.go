package database

import (
	"context"
	"errors"
	"time"

	"flock/internal/domain"
)

const (
	activeUserWindow    = 5 * time.Minute
	recentTrackerWindow = time.Hour
	recentTrackerLimit  = 50
	liveTrackerWindow   = 60 * time.Second
	liveTrackerLimit    = 20
	topOrganizations    = 10
)

// OrganizationBlocks is one row of the top-organizations projection.
type OrganizationBlocks struct {
	Name   string `json:"name"`
	Blocks int64  `json:"blocks"`
}

// RecentTracker is one row of the recently-seen projection.
type RecentTracker struct {
	Domain       string    `json:"domain"`
	Blocks       int64     `json:"blocks"`
	Organization string    `json:"organization"`
	Method       string    `json:"method,omitempty"`
	LastSeen     time.Time `json:"time"`
}

// RegistryStats is the aggregate telemetry object served by /api/stats.
// Reads run outside the registry critical section, so a row committed a
// moment ago may be missing; this is telemetry, not a ledger.
type RegistryStats struct {
	TotalTrackers    int64                `json:"total_trackers"`
	TotalBlocks      int64                `json:"total_blocks"`
	ActiveUsers      int64                `json:"active_users"`
	TopOrganizations []OrganizationBlocks `json:"top_organizations"`
	RecentTrackers   []RecentTracker      `json:"recent_trackers"`
}

func GetRegistryStats(ctx context.Context) (RegistryStats, error) {
	var stats RegistryStats
	if DB == nil {
		return stats, errors.New("database not initialised")
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	if err := db.Model(&domain.GlobalTracker{}).
		Distinct("domain").
		Count(&stats.TotalTrackers).Error; err != nil {
		return stats, err
	}

	var totalBlocks *int64
	if err := db.Model(&domain.GlobalTracker{}).
		Select("SUM(total_blocks)").
		Scan(&totalBlocks).Error; err != nil {
		return stats, err
	}
	if totalBlocks != nil {
		stats.TotalBlocks = *totalBlocks
	}

	activeSince := time.Now().UTC().Add(-activeUserWindow)
	if err := db.Model(&domain.ActiveUser{}).
		Where("last_seen > ?", activeSince).
		Count(&stats.ActiveUsers).Error; err != nil {
		return stats, err
	}

	if err := db.Model(&domain.GlobalTracker{}).
		Select("organization AS name, SUM(total_blocks) AS blocks").
		Where("organization <> ''").
		Group("organization").
		Order("blocks DESC").
		Limit(topOrganizations).
		Scan(&stats.TopOrganizations).Error; err != nil {
		return stats, err
	}

	recentSince := time.Now().UTC().Add(-recentTrackerWindow)
	if err := db.Model(&domain.GlobalTracker{}).
		Select("domain, total_blocks AS blocks, organization, method, last_seen").
		Where("last_seen > ?", recentSince).
		Order("last_seen DESC").
		Limit(recentTrackerLimit).
		Scan(&stats.RecentTrackers).Error; err != nil {
		return stats, err
	}

	return stats, nil
}

// LiveTrackers returns trackers seen within the last minute.
func LiveTrackers(ctx context.Context) ([]RecentTracker, error) {
	if DB == nil {
		return nil, errors.New("database not initialised")
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	since := time.Now().UTC().Add(-liveTrackerWindow)
	var rows []RecentTracker
	err := db.Model(&domain.GlobalTracker{}).
		Select("domain, total_blocks AS blocks, organization, method, last_seen").
		Where("last_seen > ?", since).
		Order("last_seen DESC").
		Limit(liveTrackerLimit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
