package dto

import "time"

type OrganizationBlocks struct {
	Name   string `json:"name"`
	Blocks int64  `json:"blocks"`
}

type RecentTracker struct {
	Domain       string    `json:"domain"`
	Blocks       int64     `json:"blocks"`
	Organization string    `json:"organization"`
	Method       string    `json:"method,omitempty"`
	LastSeen     time.Time `json:"time"`
}

// StatsResponse mirrors the aggregator's /api/stats payload for clients.
type StatsResponse struct {
	TotalTrackers    int64                `json:"total_trackers"`
	TotalBlocks      int64                `json:"total_blocks"`
	ActiveUsers      int64                `json:"active_users"`
	TopOrganizations []OrganizationBlocks `json:"top_organizations"`
	RecentTrackers   []RecentTracker      `json:"recent_trackers"`
}
