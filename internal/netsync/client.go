package netsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"flock/internal/api/dto"
	"flock/internal/config"
	"flock/internal/support"

	"github.com/charmbracelet/log"
	"github.com/coder/retry"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/sync/singleflight"
)

// Client keeps one instance in sync with the aggregator: a cached shared
// blocklist consulted before the local engine, outbound discovery reports,
// and a subscription socket feeding incremental updates. Every network
// failure degrades to local-only operation; browsing never waits on us.
type Client struct {
	serverURL string
	userID    string

	enabled   atomic.Bool
	connected atomic.Bool

	cache      *sharedSet
	httpClient *http.Client
	refresh    singleflight.Group

	cancel context.CancelFunc
	done   chan struct{}
}

func NewClient(serverURL string, enabled bool) *Client {
	timeout := time.Duration(config.GetConfig().Network.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	c := &Client{
		serverURL:  serverURL,
		userID:     support.AnonymousID(),
		cache:      newSharedSet(),
		httpClient: &http.Client{Timeout: timeout},
		done:       make(chan struct{}),
	}
	c.enabled.Store(enabled)
	return c
}

func (c *Client) UserID() string {
	return c.userID
}

// Enabled reports whether network mode is still active; it flips off after
// the reconnect budget is exhausted.
func (c *Client) Enabled() bool {
	return c.enabled.Load()
}

func (c *Client) Connected() bool {
	return c.connected.Load()
}

// SharedDomains returns the size of the cached shared blocklist.
func (c *Client) SharedDomains() int {
	return c.cache.len()
}

// Connect launches the subscription loop. It returns immediately; the
// initial snapshot arrives in the background.
func (c *Client) Connect(ctx context.Context) {
	if !c.enabled.Load() {
		close(c.done)
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	go func() {
		defer close(c.done)
		c.run(runCtx)
	}()
}

// Close stops the subscription loop and waits for it to exit. A client
// that never connected has no loop to stop.
func (c *Client) Close() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
}

// IsBlocked reports whether the domain or any parent suffix is on the
// cached shared blocklist. This runs before the local decision engine.
func (c *Client) IsBlocked(domain string) bool {
	if !c.enabled.Load() || domain == "" {
		return false
	}
	return c.cache.contains(domain)
}

// Report submits one discovery to the aggregator. Failures are logged and
// swallowed; the flow that triggered the report is never held up beyond
// the client timeout.
func (c *Client) Report(domain, method string, confidence float64, context map[string]string) {
	if !c.enabled.Load() || domain == "" {
		return
	}

	body, err := json.Marshal(dto.ReportRequest{
		UserID:     c.userID,
		Domain:     domain,
		Method:     method,
		Confidence: confidence,
		Context:    context,
	})
	if err != nil {
		log.Error("encode tracker report", "error", err)
		return
	}

	resp, err := c.httpClient.Post(c.serverURL+"/api/report", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Warn("tracker report failed", "domain", domain, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn("tracker report rejected", "domain", domain, "status", resp.StatusCode)
		return
	}

	var result dto.ReportResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Warn("decode report response", "error", err)
		return
	}

	if result.IsNew {
		log.Info("NEW tracker discovery", "domain", domain)
	}
}

// Stats fetches the aggregator's telemetry object.
func (c *Client) Stats(ctx context.Context) (dto.StatsResponse, error) {
	var stats dto.StatsResponse

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+"/api/stats", nil)
	if err != nil {
		return stats, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return stats, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return stats, fmt.Errorf("netsync: stats returned status %d", resp.StatusCode)
	}
	err = json.NewDecoder(resp.Body).Decode(&stats)
	return stats, err
}

// run is the reconnect loop. The backoff is fixed and the attempt budget
// bounded; when it runs out the client drops to standalone mode for the
// rest of the process lifetime.
func (c *Client) run(ctx context.Context) {
	cfg := config.GetConfig().Network
	delay := time.Duration(cfg.RetryDelaySeconds) * time.Second
	if delay <= 0 {
		delay = 5 * time.Second
	}
	maxRetries := int(cfg.MaxRetries)
	if maxRetries <= 0 {
		maxRetries = 5
	}

	attempts := 0
	for r := retry.New(delay, delay); ; {
		established, err := c.session(ctx)
		c.connected.Store(false)
		if ctx.Err() != nil {
			return
		}
		if established {
			attempts = 0
		}
		if err != nil {
			attempts++
			log.Warn("aggregator connection lost", "attempt", attempts, "max", maxRetries, "error", err)
		}
		if attempts >= maxRetries {
			c.enabled.Store(false)
			log.Error("failed to reach aggregator, running in standalone mode")
			return
		}
		if !r.Wait(ctx) {
			return
		}
	}
}

// session dials the subscribe socket, performs the handshake, pulls the
// snapshot, then consumes push events until the connection drops. The
// returned bool reports whether the handshake completed.
func (c *Client) session(ctx context.Context) (bool, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.Dial(dialCtx, c.serverURL+"/api/subscribe", nil)
	cancel()
	if err != nil {
		return false, err
	}
	defer conn.Close(websocket.StatusNormalClosure, "closing")

	if err := wsjson.Write(ctx, conn, dto.ChannelMessage{
		Event:  dto.EventSubscribe,
		UserID: c.userID,
	}); err != nil {
		return false, err
	}

	var ack dto.ChannelMessage
	if err := wsjson.Read(ctx, conn, &ack); err != nil {
		return false, err
	}
	if ack.Event != dto.EventSubscribed {
		return false, fmt.Errorf("netsync: unexpected handshake event %q", ack.Event)
	}

	c.connected.Store(true)
	log.Info("connected to aggregator", "server", c.serverURL, "user_id", c.userID[:8])

	if err := c.fetchBlocklist(ctx); err != nil {
		log.Warn("shared blocklist fetch failed", "error", err)
	}

	for {
		var msg dto.ChannelMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return true, err
		}
		if msg.Event != dto.EventNewTracker || msg.Domain == "" {
			continue
		}
		c.cache.add(msg.Domain)
		log.Info("new tracker from network", "domain", msg.Domain, "organization", msg.Organization)
	}
}

// fetchBlocklist pulls the full snapshot and merges it into the cache.
// Concurrent callers share one in-flight fetch.
func (c *Client) fetchBlocklist(ctx context.Context) error {
	_, err, _ := c.refresh.Do("blocklist", func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+"/api/blocklist", nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("netsync: blocklist returned status %d", resp.StatusCode)
		}

		var payload dto.BlocklistResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, err
		}

		domains := make([]string, 0, len(payload.Blocklist))
		for _, entry := range payload.Blocklist {
			domains = append(domains, entry.Domain)
		}
		added := c.cache.merge(domains)
		log.Info("fetched shared blocklist", "domains", len(domains), "new", added)
		return nil, nil
	})
	return err
}
