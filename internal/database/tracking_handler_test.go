package database

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"flock/internal/domain"

	"gorm.io/driver/sqlite"
)

func setupLocalTestDB(t *testing.T) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	if _, err := SetupDB(
		WithDialector(sqlite.Open(dsn)),
		WithMigrations(LocalMigrations()...),
	); err != nil {
		t.Fatalf("open test database: %v", err)
	}

	t.Cleanup(func() {
		DB = nil
	})
}

func TestUpsertTrackingDomainCountsAndPromotes(t *testing.T) {
	setupLocalTestDB(t)
	ctx := context.Background()

	const threshold = 3
	for hit := 1; hit <= 4; hit++ {
		count, promoted, err := UpsertTrackingDomain(ctx, "tracker.example.com", "pattern-match", threshold)
		if err != nil {
			t.Fatalf("hit %d: %v", hit, err)
		}
		if count != int64(hit) {
			t.Errorf("hit %d: count = %d, want %d", hit, count, hit)
		}

		wantPromoted := hit == threshold
		if promoted != wantPromoted {
			t.Errorf("hit %d: promoted = %v, want %v", hit, promoted, wantPromoted)
		}
	}

	blocked, err := IsDomainBlocked(ctx, "tracker.example.com")
	if err != nil {
		t.Fatalf("check blocked: %v", err)
	}
	if !blocked {
		t.Error("domain should be blocked after threshold")
	}
}

func TestUpsertTrackingDomainPromotesExactlyOnce(t *testing.T) {
	setupLocalTestDB(t)
	ctx := context.Background()

	seed := domain.TrackingDomain{Domain: "hot.tracker.com", HitCount: 5}
	if err := DB.Create(&seed).Error; err != nil {
		t.Fatalf("seed row: %v", err)
	}

	promotions := 0
	for hit := 0; hit < 3; hit++ {
		_, promoted, err := UpsertTrackingDomain(ctx, "hot.tracker.com", "pattern-match", 3)
		if err != nil {
			t.Fatalf("hit %d: %v", hit, err)
		}
		if promoted {
			promotions++
		}
	}
	if promotions != 1 {
		t.Errorf("promotions = %d, want exactly 1 for a counter already past the threshold", promotions)
	}
}

func TestUpsertTrackingDomainNoRepromotionAfterForceBlock(t *testing.T) {
	setupLocalTestDB(t)
	ctx := context.Background()

	if err := ForceBlockDomain(ctx, "bad.tracker.com", "manual"); err != nil {
		t.Fatalf("force block: %v", err)
	}

	_, promoted, err := UpsertTrackingDomain(ctx, "bad.tracker.com", "pattern-match", 1)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if promoted {
		t.Error("already-blocked domain must not report a fresh promotion")
	}
}

func TestUpsertTrackingIPKeepsFirstAssociation(t *testing.T) {
	setupLocalTestDB(t)
	ctx := context.Background()

	if _, _, err := UpsertTrackingIP(ctx, "203.0.113.5", "first.example.com", "pattern-match", 10); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if _, _, err := UpsertTrackingIP(ctx, "203.0.113.5", "second.example.com", "cookie-tracker", 10); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	var row domain.TrackingIP
	if err := DB.First(&row, "ip_address = ?", "203.0.113.5").Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	if row.AssociatedDomain != "first.example.com" {
		t.Errorf("associated_domain = %q, want first sighting kept", row.AssociatedDomain)
	}
	if row.HitCount != 2 {
		t.Errorf("hit_count = %d, want 2", row.HitCount)
	}
}

func TestIsDomainBlockedUnknownDomain(t *testing.T) {
	setupLocalTestDB(t)

	blocked, err := IsDomainBlocked(context.Background(), "never-seen.example.com")
	if err != nil {
		t.Fatalf("check blocked: %v", err)
	}
	if blocked {
		t.Error("unknown domain must not be blocked")
	}
}

func TestForceBlockDomainSkipsThreshold(t *testing.T) {
	setupLocalTestDB(t)
	ctx := context.Background()

	if err := ForceBlockDomain(ctx, "bad.example.com", "manual"); err != nil {
		t.Fatalf("force block: %v", err)
	}

	blocked, err := IsDomainBlocked(ctx, "bad.example.com")
	if err != nil {
		t.Fatalf("check blocked: %v", err)
	}
	if !blocked {
		t.Error("force-blocked domain must be blocked immediately")
	}
}

func TestWhitelistRoundTrip(t *testing.T) {
	setupLocalTestDB(t)
	ctx := context.Background()

	if err := AddToWhitelist(ctx, "trusted.example.com", "test"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := AddToWhitelist(ctx, "trusted.example.com", "duplicate"); err != nil {
		t.Fatalf("duplicate add: %v", err)
	}

	listed, err := IsWhitelisted(ctx, "trusted.example.com")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !listed {
		t.Fatal("domain should be whitelisted")
	}

	entries, err := WhitelistEntries(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1 (duplicates collapse)", len(entries))
	}

	if err := RemoveFromWhitelist(ctx, "trusted.example.com"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	listed, err = IsWhitelisted(ctx, "trusted.example.com")
	if err != nil {
		t.Fatalf("recheck: %v", err)
	}
	if listed {
		t.Error("domain should be gone after removal")
	}
}

func TestLogCookieTruncatesValue(t *testing.T) {
	setupLocalTestDB(t)
	ctx := context.Background()

	long := strings.Repeat("x", 500)
	if err := LogCookie(ctx, "example.com", "_ga", long, "", "https://example.com", true); err != nil {
		t.Fatalf("log cookie: %v", err)
	}

	var row domain.CookieAudit
	if err := DB.First(&row).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	if len(row.Value) != 100 {
		t.Errorf("stored value length = %d, want 100", len(row.Value))
	}
}

func TestStatisticsCounters(t *testing.T) {
	setupLocalTestDB(t)
	ctx := context.Background()

	if err := ForceBlockDomain(ctx, "a.example.com", "manual"); err != nil {
		t.Fatalf("block domain: %v", err)
	}
	if err := ForceBlockIP(ctx, "203.0.113.9", "a.example.com"); err != nil {
		t.Fatalf("block ip: %v", err)
	}
	if err := LogRequest(ctx, "GET", "https://ok.example.com", "ok.example.com", "", false, ""); err != nil {
		t.Fatalf("log request: %v", err)
	}
	if err := LogCookie(ctx, "a.example.com", "_ga", "v", "", "", true); err != nil {
		t.Fatalf("log blocked cookie: %v", err)
	}
	if err := LogCookie(ctx, "ok.example.com", "session", "v", "", "", false); err != nil {
		t.Fatalf("log allowed cookie: %v", err)
	}

	stats, err := Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.BlockedDomains != 1 || stats.BlockedIPs != 1 {
		t.Errorf("blocked domains/ips = %d/%d, want 1/1", stats.BlockedDomains, stats.BlockedIPs)
	}
	if stats.BlockedCookies != 1 || stats.TotalCookies != 2 {
		t.Errorf("cookies = %d blocked of %d, want 1 of 2", stats.BlockedCookies, stats.TotalCookies)
	}
	if stats.TotalRequests != 1 {
		t.Errorf("requests = %d, want 1", stats.TotalRequests)
	}
}
