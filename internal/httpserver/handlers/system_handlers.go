package handlers

import (
	"net/http"
	"time"
)

const serviceVersion = "1.0.0"

var startedAt = time.Now()

func Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"service":   "emaintenance-api",
			"version":   serviceVersion,
			"uptime":    time.Since(startedAt).Round(time.Second).String(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}
