package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"flock/internal/aggregator"

	"github.com/charmbracelet/log"
)

var registry *aggregator.Registry

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Router wires the aggregator API. Exposed separately from OpenRoutes so
// tests can mount it on an httptest server.
func Router(reg *aggregator.Registry) http.Handler {
	registry = reg

	router := http.NewServeMux()
	router.HandleFunc("POST /api/report", reportTracker)
	router.HandleFunc("GET /api/blocklist", getBlocklist)
	router.HandleFunc("GET /api/stats", getStats)
	router.HandleFunc("GET /api/trackers/live", getLiveTrackers)
	router.HandleFunc("GET /api/subscribe", subscribeUpdates)

	return enableCORS(router)
}

func OpenRoutes(port int, reg *aggregator.Registry) error {
	server := http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: Router(reg),
	}

	log.Infof("Starting aggregator on port :%d", port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}
