package dto

// ReportRequest is one tracker discovery submitted by an instance.
type ReportRequest struct {
	UserID     string            `json:"user_id"`
	Domain     string            `json:"domain"`
	Method     string            `json:"method"`
	Confidence float64           `json:"confidence"`
	Context    map[string]string `json:"context,omitempty"`
}

type ReportResponse struct {
	Success   bool   `json:"success"`
	IsNew     bool   `json:"is_new"`
	TrackerID uint64 `json:"tracker_id"`
	Message   string `json:"message"`
}
