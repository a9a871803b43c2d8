// Package api exposes the reporting surface over HTTP: read access to
// tracked entities and their snapshot history, plus the endpoints that
// start discovery, refreshes and trigger runs.
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/axju/metrico/internal/database"
	"github.com/axju/metrico/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the model sentinels onto HTTP status codes. Anything
// unmapped is an internal error and keeps its detail out of the body.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, models.ErrAlreadyRunning):
		http.Error(w, "Trigger is already running", http.StatusConflict)
	case errors.Is(err, models.ErrInvalidConfig):
		http.Error(w, "Invalid request", http.StatusBadRequest)
	case errors.Is(err, models.ErrConflict):
		http.Error(w, "Conflict", http.StatusConflict)
	default:
		logger.Error("request failed", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

// pathID splits "/123/stats" into the id and the remaining subpath.
func pathID(path string) (int64, string, error) {
	path = strings.TrimPrefix(path, "/")
	head, rest, _ := strings.Cut(path, "/")
	id, err := strconv.ParseInt(head, 10, 64)
	if err != nil {
		return 0, "", err
	}
	return id, rest, nil
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// StatsHandler serves store-level counts and the health probe.
type StatsHandler struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewStatsHandler(db *sql.DB, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{db: db, logger: logger}
}

// GetStats returns row counts per table.
// GET /api/stats
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	counts, err := database.TableCounts(r.Context(), h.db)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// Health reports whether the store answers a ping.
// GET /health
func (h *StatsHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := database.HealthCheck(ctx, h.db); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
