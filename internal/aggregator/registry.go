package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"flock/internal/config"
	"flock/internal/database"
	"flock/internal/domain"

	"github.com/charmbracelet/log"
)

// ErrDomainRequired rejects reports that carry no domain.
var ErrDomainRequired = errors.New("aggregator: domain required")

// ReportResult is what the reporting instance gets back.
type ReportResult struct {
	IsNew     bool
	TrackerID uint64
}

// Registry is the canonical shared tracker registry. Every mutation runs
// under one mutex: the lookup, the conditional insert-or-update, and the
// bookkeeping rows must be indivisible so concurrent first reports of the
// same domain cannot produce two rows. Stats reads deliberately stay
// outside this critical section.
type Registry struct {
	mu  sync.Mutex
	hub *Hub
}

func NewRegistry(hub *Hub) *Registry {
	if hub == nil {
		hub = NewHub()
	}
	return &Registry{hub: hub}
}

// Hub exposes the broadcast side for the subscribe handler.
func (r *Registry) Hub() *Hub {
	return r.hub
}

// Report processes one tracker discovery: dedupe by domain, attribute the
// organization, count, and broadcast. The broadcast happens after the
// critical section and never blocks on slow subscribers.
func (r *Registry) Report(ctx context.Context, req ReportInput) (ReportResult, error) {
	if req.Domain == "" {
		return ReportResult{}, ErrDomainRequired
	}
	if req.UserID == "" {
		req.UserID = "anonymous"
	}

	organization := IdentifyOrganization(req.Domain)

	result, err := r.commit(ctx, req, organization)
	if err != nil {
		return ReportResult{}, err
	}

	r.hub.Publish(TrackerEvent{
		Domain:       req.Domain,
		Organization: organization,
		Method:       req.Method,
		IsNew:        result.IsNew,
		Timestamp:    time.Now().UTC(),
	})

	if result.IsNew {
		log.Info("NEW tracker", "domain", req.Domain, "organization", organization)
	} else {
		log.Debug("updated tracker", "domain", req.Domain, "organization", organization)
	}

	return result, nil
}

// ReportInput is the validated payload of one report call.
type ReportInput struct {
	UserID     string
	Domain     string
	Method     string
	Confidence float64
	Context    map[string]string
}

func (r *Registry) commit(ctx context.Context, req ReportInput, organization string) (ReportResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := database.LookupGlobalTracker(ctx, req.Domain)
	if err != nil {
		return ReportResult{}, err
	}

	var result ReportResult
	if existing != nil {
		if err := database.TouchGlobalTracker(ctx, req.Domain, organization, req.Method); err != nil {
			return ReportResult{}, err
		}
		result.TrackerID = existing.ID
	} else {
		tracker := domain.GlobalTracker{
			Domain:       req.Domain,
			LastSeen:     time.Now().UTC(),
			TotalBlocks:  1,
			UniqueUsers:  1,
			Category:     "tracker",
			Organization: organization,
			Method:       req.Method,
			Confidence:   req.Confidence,
			AutoBlock:    true,
		}
		if err := database.InsertGlobalTracker(ctx, &tracker); err != nil {
			return ReportResult{}, err
		}
		result.IsNew = true
		result.TrackerID = tracker.ID
	}

	scoreDelta := r.scoreDelta(ctx, req)

	report := domain.TrackerReport{
		UserID:     req.UserID,
		Domain:     req.Domain,
		Method:     req.Method,
		Confidence: req.Confidence,
		Context:    encodeContext(req.Context),
	}
	if err := database.AppendTrackerReport(ctx, &report); err != nil {
		return ReportResult{}, err
	}

	if err := database.UpsertActiveUser(ctx, req.UserID, scoreDelta); err != nil {
		return ReportResult{}, err
	}

	return result, nil
}

// scoreDelta applies the privacy-score policy. By default every report
// scores; with unique-domain scoring only the first report of a domain by
// this user does. Must run before the TrackerReport row is appended.
func (r *Registry) scoreDelta(ctx context.Context, req ReportInput) int64 {
	cfg := config.GetConfig()
	delta := cfg.Server.ScorePerReport
	if !cfg.Server.UniqueDomainScoring {
		return delta
	}

	seen, err := database.HasUserReportedDomain(ctx, req.UserID, req.Domain)
	if err != nil {
		log.Warn("unique scoring lookup failed, counting report", "error", err)
		return delta
	}
	if seen {
		return 0
	}
	return delta
}

// Subscribe registers an instance for broadcasts and refreshes its
// last-seen record.
func (r *Registry) Subscribe(ctx context.Context, userID string) (*Subscriber, error) {
	if userID == "" {
		userID = "anonymous"
	}
	if err := database.TouchActiveUser(ctx, userID); err != nil {
		return nil, err
	}
	log.Info("user subscribed", "user_id", userID)
	return r.hub.Subscribe(userID), nil
}

func encodeContext(ctx map[string]string) string {
	if len(ctx) == 0 {
		return ""
	}
	data, err := json.Marshal(ctx)
	if err != nil {
		return ""
	}
	return string(data)
}
