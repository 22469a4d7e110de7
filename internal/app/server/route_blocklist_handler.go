package server

import (
	"net/http"
	"time"

	"flock/internal/api/dto"
	"flock/internal/database"

	"github.com/charmbracelet/log"
)

func getBlocklist(w http.ResponseWriter, r *http.Request) {
	trackers, err := database.GlobalBlocklist(r.Context())
	if err != nil {
		log.Error("Failed to load global blocklist", "error", err)
		writeError(w, "Failed to load blocklist", http.StatusInternalServerError)
		return
	}

	entries := make([]dto.BlocklistEntry, 0, len(trackers))
	for _, tracker := range trackers {
		entries = append(entries, dto.BlocklistEntry{
			Domain:       tracker.Domain,
			Organization: tracker.Organization,
			Blocks:       tracker.TotalBlocks,
			Confidence:   tracker.Confidence,
		})
	}

	writeJSON(w, http.StatusOK, dto.BlocklistResponse{
		Count:     len(entries),
		Blocklist: entries,
		Generated: time.Now().UTC(),
	})
}
