package aggregator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"flock/internal/config"
	"flock/internal/database"
	"flock/internal/domain"

	"gorm.io/driver/sqlite"
)

func setupRegistryTestDB(t *testing.T) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	if _, err := database.SetupDB(
		database.WithDialector(sqlite.Open(dsn)),
		database.WithMigrations(database.RegistryMigrations()...),
	); err != nil {
		t.Fatalf("open test database: %v", err)
	}

	t.Cleanup(func() {
		database.DB = nil
	})
}

func setRegistryTestConfig(t *testing.T, mutate func(*config.Config)) {
	t.Helper()

	cfg := config.DefaultConfigForTests()
	if mutate != nil {
		mutate(&cfg)
	}
	config.SetConfigForTests(cfg)

	t.Cleanup(func() {
		config.SetConfigForTests(config.DefaultConfigForTests())
	})
}

func TestReportDedupesByDomain(t *testing.T) {
	setupRegistryTestDB(t)
	setRegistryTestConfig(t, nil)

	registry := NewRegistry(NewHub())
	ctx := context.Background()

	const reports = 5
	for i := 0; i < reports; i++ {
		result, err := registry.Report(ctx, ReportInput{
			UserID:     fmt.Sprintf("user-%d", i),
			Domain:     "ads.doubleclick.net",
			Method:     "cookie",
			Confidence: 0.9,
		})
		if err != nil {
			t.Fatalf("report %d: %v", i, err)
		}

		wantNew := i == 0
		if result.IsNew != wantNew {
			t.Errorf("report %d: IsNew = %v, want %v", i, result.IsNew, wantNew)
		}
	}

	var trackers []domain.GlobalTracker
	if err := database.DB.Find(&trackers).Error; err != nil {
		t.Fatalf("load trackers: %v", err)
	}
	if len(trackers) != 1 {
		t.Fatalf("tracker rows = %d, want 1", len(trackers))
	}
	if trackers[0].TotalBlocks != reports {
		t.Errorf("total_blocks = %d, want %d", trackers[0].TotalBlocks, reports)
	}
	if trackers[0].Organization != "Google" {
		t.Errorf("organization = %q, want Google", trackers[0].Organization)
	}

	var reportRows int64
	if err := database.DB.Model(&domain.TrackerReport{}).Count(&reportRows).Error; err != nil {
		t.Fatalf("count reports: %v", err)
	}
	if reportRows != reports {
		t.Errorf("report rows = %d, want %d", reportRows, reports)
	}
}

func TestReportRejectsEmptyDomain(t *testing.T) {
	setupRegistryTestDB(t)
	setRegistryTestConfig(t, nil)

	registry := NewRegistry(NewHub())

	if _, err := registry.Report(context.Background(), ReportInput{UserID: "u1"}); err != ErrDomainRequired {
		t.Fatalf("err = %v, want ErrDomainRequired", err)
	}
}

func TestReportScoresEveryReportByDefault(t *testing.T) {
	setupRegistryTestDB(t)
	setRegistryTestConfig(t, func(cfg *config.Config) {
		cfg.Server.ScorePerReport = 10
		cfg.Server.UniqueDomainScoring = false
	})

	registry := NewRegistry(NewHub())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := registry.Report(ctx, ReportInput{UserID: "u1", Domain: "tracker.example.com"}); err != nil {
			t.Fatalf("report %d: %v", i, err)
		}
	}

	var user domain.ActiveUser
	if err := database.DB.First(&user, "user_id = ?", "u1").Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	if user.TotalReports != 3 {
		t.Errorf("total_reports = %d, want 3", user.TotalReports)
	}
	if user.PrivacyScore != 30 {
		t.Errorf("privacy_score = %d, want 30", user.PrivacyScore)
	}
}

func TestReportUniqueDomainScoring(t *testing.T) {
	setupRegistryTestDB(t)
	setRegistryTestConfig(t, func(cfg *config.Config) {
		cfg.Server.ScorePerReport = 10
		cfg.Server.UniqueDomainScoring = true
	})

	registry := NewRegistry(NewHub())
	ctx := context.Background()

	domains := []string{"a.example.com", "a.example.com", "b.example.com"}
	for i, d := range domains {
		if _, err := registry.Report(ctx, ReportInput{UserID: "u1", Domain: d}); err != nil {
			t.Fatalf("report %d: %v", i, err)
		}
	}

	var user domain.ActiveUser
	if err := database.DB.First(&user, "user_id = ?", "u1").Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	if user.TotalReports != 3 {
		t.Errorf("total_reports = %d, want 3", user.TotalReports)
	}
	if user.PrivacyScore != 20 {
		t.Errorf("privacy_score = %d, want 20 (two unique domains)", user.PrivacyScore)
	}
}

func TestReportBroadcastsToSubscribers(t *testing.T) {
	setupRegistryTestDB(t)
	setRegistryTestConfig(t, nil)

	hub := NewHub()
	registry := NewRegistry(hub)
	ctx := context.Background()

	sub, err := registry.Subscribe(ctx, "listener")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	if _, err := registry.Report(ctx, ReportInput{UserID: "reporter", Domain: "tracker.example.com", Method: "domain"}); err != nil {
		t.Fatalf("report: %v", err)
	}

	select {
	case event := <-sub.Events():
		if event.Domain != "tracker.example.com" || !event.IsNew {
			t.Errorf("event = %+v, want new tracker.example.com", event)
		}
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestPublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("slow")
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*2; i++ {
			hub.Publish(TrackerEvent{Domain: fmt.Sprintf("d%d.com", i)})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a subscriber that never drains")
	}
}

func TestSubscriberCloseDetaches(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("u1")

	if got := hub.Subscribers(); got != 1 {
		t.Fatalf("subscribers = %d, want 1", got)
	}

	sub.Close()
	sub.Close()

	if got := hub.Subscribers(); got != 0 {
		t.Errorf("subscribers = %d, want 0 after close", got)
	}
}

func TestIdentifyOrganization(t *testing.T) {
	tests := []struct {
		domain string
		want   string
	}{
		{"ads.doubleclick.net", "Google"},
		{"www.google-analytics.com", "Google"},
		{"connect.facebook.net", "Facebook"},
		{"s.amazon-adsystem.com", "Amazon"},
		{"tags.bluekai.com", "Oracle"},
		{"unknown-tracker.io", UnknownOrganization},
	}

	for _, tt := range tests {
		if got := IdentifyOrganization(tt.domain); got != tt.want {
			t.Errorf("IdentifyOrganization(%q) = %q, want %q", tt.domain, got, tt.want)
		}
	}
}
