package dto

import "time"

type BlocklistEntry struct {
	Domain       string  `json:"domain"`
	Organization string  `json:"organization"`
	Blocks       int64   `json:"blocks"`
	Confidence   float64 `json:"confidence"`
}

type BlocklistResponse struct {
	Count     int              `json:"count"`
	Blocklist []BlocklistEntry `json:"blocklist"`
	Generated time.Time        `json:"generated"`
}
