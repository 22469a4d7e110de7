package database

import (
	"context"
	"errors"
	"time"

	"flock/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LookupGlobalTracker returns the registry row for the domain, or nil when
// the domain has never been reported.
func LookupGlobalTracker(ctx context.Context, domainName string) (*domain.GlobalTracker, error) {
	if DB == nil {
		return nil, errors.New("database not initialised")
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	var tracker domain.GlobalTracker
	err := db.Where("domain = ?", domainName).First(&tracker).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tracker, nil
}

// InsertGlobalTracker creates the first registry row for a domain.
func InsertGlobalTracker(ctx context.Context, tracker *domain.GlobalTracker) error {
	if DB == nil {
		return errors.New("database not initialised")
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	if tracker.LastSeen.IsZero() {
		tracker.LastSeen = time.Now().UTC()
	}
	return db.Create(tracker).Error
}

// TouchGlobalTracker increments total_blocks and refreshes last_seen for an
// existing row. Organization and method are filled only when still empty;
// the first report that carried them wins.
func TouchGlobalTracker(ctx context.Context, domainName, organization, method string) error {
	if DB == nil {
		return errors.New("database not initialised")
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	return db.Model(&domain.GlobalTracker{}).
		Where("domain = ?", domainName).
		Updates(map[string]any{
			"total_blocks": gorm.Expr("total_blocks + 1"),
			"last_seen":    time.Now().UTC(),
			"organization": gorm.Expr("COALESCE(NULLIF(organization, ''), ?)", organization),
			"method":       gorm.Expr("COALESCE(NULLIF(method, ''), ?)", method),
		}).Error
}

// AppendTrackerReport stores one report row regardless of novelty.
func AppendTrackerReport(ctx context.Context, report *domain.TrackerReport) error {
	if DB == nil {
		return errors.New("database not initialised")
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	return db.Create(report).Error
}

// HasUserReportedDomain reports whether this user already has a report row
// for the domain. Consulted by the unique-domain scoring policy.
func HasUserReportedDomain(ctx context.Context, userID, domainName string) (bool, error) {
	if DB == nil {
		return false, errors.New("database not initialised")
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	var count int64
	err := db.Model(&domain.TrackerReport{}).
		Where("user_id = ? AND domain = ?", userID, domainName).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpsertActiveUser bumps the per-instance record on a report.
func UpsertActiveUser(ctx context.Context, userID string, scoreDelta int64) error {
	if DB == nil {
		return errors.New("database not initialised")
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	record := domain.ActiveUser{
		UserID:       userID,
		LastSeen:     time.Now().UTC(),
		TotalReports: 1,
		PrivacyScore: scoreDelta,
	}

	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"last_seen":     time.Now().UTC(),
			"total_reports": gorm.Expr("total_reports + 1"),
			"privacy_score": gorm.Expr("privacy_score + ?", scoreDelta),
		}),
	}).Create(&record).Error
}

// TouchActiveUser refreshes last_seen without counting a report; used by
// the subscribe path.
func TouchActiveUser(ctx context.Context, userID string) error {
	if DB == nil {
		return errors.New("database not initialised")
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	record := domain.ActiveUser{
		UserID:   userID,
		LastSeen: time.Now().UTC(),
	}

	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"last_seen": time.Now().UTC(),
		}),
	}).Create(&record).Error
}

// GlobalBlocklist returns every auto-block tracker, most blocked first.
func GlobalBlocklist(ctx context.Context) ([]domain.GlobalTracker, error) {
	if DB == nil {
		return nil, errors.New("database not initialised")
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	var trackers []domain.GlobalTracker
	err := db.Where("auto_block = ?", true).
		Order("total_blocks DESC").
		Find(&trackers).Error
	if err != nil {
		return nil, err
	}
	return trackers, nil
}
