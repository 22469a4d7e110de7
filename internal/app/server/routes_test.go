package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"flock/internal/aggregator"
	"flock/internal/api/dto"
	"flock/internal/config"
	"flock/internal/database"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"gorm.io/driver/sqlite"
)

func setupServerTest(t *testing.T) *httptest.Server {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	if _, err := database.SetupDB(
		database.WithDialector(sqlite.Open(dsn)),
		database.WithMigrations(database.RegistryMigrations()...),
	); err != nil {
		t.Fatalf("open test database: %v", err)
	}

	config.SetConfigForTests(config.DefaultConfigForTests())

	reg := aggregator.NewRegistry(aggregator.NewHub())
	srv := httptest.NewServer(Router(reg))

	t.Cleanup(func() {
		srv.Close()
		database.DB = nil
	})

	return srv
}

func postReport(t *testing.T, srv *httptest.Server, req dto.ReportRequest) (*http.Response, dto.ReportResponse) {
	t.Helper()

	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal report: %v", err)
	}
	resp, err := http.Post(srv.URL+"/api/report", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post report: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var parsed dto.ReportResponse
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			t.Fatalf("decode report response: %v", err)
		}
	}
	return resp, parsed
}

func TestReportEndpointRejectsMissingDomain(t *testing.T) {
	srv := setupServerTest(t)

	resp, _ := postReport(t, srv, dto.ReportRequest{UserID: "u1"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestReportEndpointRegistersTracker(t *testing.T) {
	srv := setupServerTest(t)

	resp, first := postReport(t, srv, dto.ReportRequest{
		UserID:     "u1",
		Domain:     "ads.doubleclick.net",
		Method:     "cookie",
		Confidence: 0.9,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !first.Success || !first.IsNew {
		t.Errorf("first report = %+v, want successful and new", first)
	}

	_, second := postReport(t, srv, dto.ReportRequest{
		UserID: "u2",
		Domain: "ads.doubleclick.net",
		Method: "cookie",
	})
	if second.IsNew {
		t.Error("second report of the same domain must not be new")
	}
}

func TestBlocklistEndpointOrdersByBlocks(t *testing.T) {
	srv := setupServerTest(t)

	for i := 0; i < 3; i++ {
		postReport(t, srv, dto.ReportRequest{UserID: "u1", Domain: "busy.tracker.com"})
	}
	postReport(t, srv, dto.ReportRequest{UserID: "u1", Domain: "quiet.tracker.com"})

	resp, err := http.Get(srv.URL + "/api/blocklist")
	if err != nil {
		t.Fatalf("get blocklist: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var payload dto.BlocklistResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode blocklist: %v", err)
	}

	if payload.Count != 2 || len(payload.Blocklist) != 2 {
		t.Fatalf("count = %d entries = %d, want 2 each", payload.Count, len(payload.Blocklist))
	}
	if payload.Blocklist[0].Domain != "busy.tracker.com" {
		t.Errorf("first entry = %q, want the most reported domain", payload.Blocklist[0].Domain)
	}
	if payload.Blocklist[0].Blocks != 3 {
		t.Errorf("blocks = %d, want 3", payload.Blocklist[0].Blocks)
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv := setupServerTest(t)

	postReport(t, srv, dto.ReportRequest{UserID: "u1", Domain: "ads.doubleclick.net", Method: "cookie"})
	postReport(t, srv, dto.ReportRequest{UserID: "u2", Domain: "connect.facebook.net"})

	resp, err := http.Get(srv.URL + "/api/stats")
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var stats dto.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalTrackers != 2 {
		t.Errorf("total_trackers = %d, want 2", stats.TotalTrackers)
	}
	if stats.TotalBlocks != 2 {
		t.Errorf("total_blocks = %d, want 2", stats.TotalBlocks)
	}
	if stats.ActiveUsers != 2 {
		t.Errorf("active_users = %d, want 2", stats.ActiveUsers)
	}

	found := false
	for _, tracker := range stats.RecentTrackers {
		if tracker.Domain == "ads.doubleclick.net" {
			found = true
			if tracker.Method != "cookie" {
				t.Errorf("recent tracker method = %q, want %q", tracker.Method, "cookie")
			}
		}
	}
	if !found {
		t.Error("just-reported domain missing from recent trackers")
	}
}

func TestLiveTrackersEndpoint(t *testing.T) {
	srv := setupServerTest(t)

	postReport(t, srv, dto.ReportRequest{UserID: "u1", Domain: "tracker.example.com"})

	resp, err := http.Get(srv.URL + "/api/trackers/live")
	if err != nil {
		t.Fatalf("get live trackers: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var payload struct {
		Count    int                 `json:"count"`
		Trackers []dto.RecentTracker `json:"trackers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode live trackers: %v", err)
	}
	if payload.Count != 1 {
		t.Errorf("count = %d, want 1", payload.Count)
	}
}

func TestSubscribeReceivesBroadcast(t *testing.T) {
	srv := setupServerTest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, srv.URL+"/api/subscribe", nil)
	if err != nil {
		t.Fatalf("dial subscribe socket: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "test done")

	if err := wsjson.Write(ctx, conn, dto.ChannelMessage{
		Event:  dto.EventSubscribe,
		UserID: "listener",
	}); err != nil {
		t.Fatalf("send subscribe: %v", err)
	}

	var ack dto.ChannelMessage
	if err := wsjson.Read(ctx, conn, &ack); err != nil {
		t.Fatalf("read ack: %v", err)
	}
	if ack.Event != dto.EventSubscribed {
		t.Fatalf("ack event = %q, want %q", ack.Event, dto.EventSubscribed)
	}
	if ack.UserID != "listener" {
		t.Errorf("ack user_id = %q, want the subscriber's id echoed back", ack.UserID)
	}

	postReport(t, srv, dto.ReportRequest{UserID: "reporter", Domain: "tracker.example.com"})

	var event dto.ChannelMessage
	if err := wsjson.Read(ctx, conn, &event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if event.Event != dto.EventNewTracker || event.Domain != "tracker.example.com" || !event.IsNew {
		t.Errorf("event = %+v, want new tracker.example.com", event)
	}
}
