package netsync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"flock/internal/api/dto"
	"flock/internal/config"
)

func TestClientReportPostsDiscovery(t *testing.T) {
	received := make(chan dto.ReportRequest, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/report" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req dto.ReportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		received <- req
		json.NewEncoder(w).Encode(dto.ReportResponse{Success: true, IsNew: true})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, true)
	c.Report("tracker.example.com", "cookie", 0.9, map[string]string{"cookie_name": "_ga"})

	select {
	case req := <-received:
		if req.Domain != "tracker.example.com" || req.Method != "cookie" {
			t.Errorf("report = %+v, want tracker.example.com via cookie", req)
		}
		if req.UserID == "" {
			t.Error("report must carry the anonymous user id")
		}
	case <-time.After(time.Second):
		t.Fatal("no report received")
	}
}

func TestClientReportNoopWhenDisabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("disabled client must not call the aggregator")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, false)
	c.Report("tracker.example.com", "cookie", 0.9, nil)
}

func TestClientFetchBlocklistMergesCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/blocklist" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(dto.BlocklistResponse{
			Count: 2,
			Blocklist: []dto.BlocklistEntry{
				{Domain: "a.tracker.com", Organization: "Unknown", Blocks: 4},
				{Domain: "b.tracker.com", Organization: "Google", Blocks: 2},
			},
			Generated: time.Now().UTC(),
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, true)
	if err := c.fetchBlocklist(context.Background()); err != nil {
		t.Fatalf("fetch blocklist: %v", err)
	}

	if got := c.SharedDomains(); got != 2 {
		t.Fatalf("cached domains = %d, want 2", got)
	}
	if !c.IsBlocked("a.tracker.com") {
		t.Error("listed domain should be blocked")
	}
	if !c.IsBlocked("sub.b.tracker.com") {
		t.Error("subdomain of listed domain should be blocked")
	}
	if c.IsBlocked("tracker.com") {
		t.Error("parent of listed domain must not be blocked")
	}
}

func TestClientDisablesAfterReconnectBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no websocket here", http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := config.DefaultConfigForTests()
	cfg.Network.MaxRetries = 1
	cfg.Network.RetryDelaySeconds = 1
	config.SetConfigForTests(cfg)
	t.Cleanup(func() {
		config.SetConfigForTests(config.DefaultConfigForTests())
	})

	c := NewClient(srv.URL, true)
	c.cache.add("tracker.example.com")
	c.Connect(context.Background())

	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
		t.Fatal("reconnect loop did not give up within its budget")
	}

	if c.Enabled() {
		t.Fatal("client should drop to standalone mode after exhausting retries")
	}
	if c.Connected() {
		t.Error("client must not report a connection after giving up")
	}
	if c.IsBlocked("tracker.example.com") {
		t.Error("standalone client must stop consulting the shared cache")
	}

	c.Close()
}

func TestClientCloseWithoutConnect(t *testing.T) {
	c := NewClient("http://localhost:0", true)
	c.Close()
}

func TestClientIsBlockedDisabled(t *testing.T) {
	c := NewClient("http://localhost:0", false)
	c.cache.add("tracker.example.com")

	if c.IsBlocked("tracker.example.com") {
		t.Error("disabled client must never block")
	}
}
