package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"flock/internal/aggregator"
	"flock/internal/api/dto"

	"github.com/charmbracelet/log"
)

func reportTracker(w http.ResponseWriter, r *http.Request) {
	var req dto.ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := registry.Report(r.Context(), aggregator.ReportInput{
		UserID:     req.UserID,
		Domain:     req.Domain,
		Method:     req.Method,
		Confidence: req.Confidence,
		Context:    req.Context,
	})
	if err != nil {
		if errors.Is(err, aggregator.ErrDomainRequired) {
			writeError(w, "No domain provided", http.StatusBadRequest)
			return
		}
		log.Error("Failed to process tracker report", "domain", req.Domain, "error", err)
		writeError(w, "Failed to process report", http.StatusInternalServerError)
		return
	}

	message := "Tracker updated"
	if result.IsNew {
		message = "New tracker registered"
	}

	writeJSON(w, http.StatusOK, dto.ReportResponse{
		Success:   true,
		IsNew:     result.IsNew,
		TrackerID: result.TrackerID,
		Message:   message,
	})
}
