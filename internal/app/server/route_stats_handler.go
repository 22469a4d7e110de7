package server

import (
	"net/http"

	"flock/internal/database"

	"github.com/charmbracelet/log"
)

func getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := database.GetRegistryStats(r.Context())
	if err != nil {
		log.Error("Failed to compute registry stats", "error", err)
		writeError(w, "Failed to compute stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func getLiveTrackers(w http.ResponseWriter, r *http.Request) {
	trackers, err := database.LiveTrackers(r.Context())
	if err != nil {
		log.Error("Failed to load live trackers", "error", err)
		writeError(w, "Failed to load live trackers", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(trackers),
		"trackers": trackers,
	})
}
