package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/axju/metrico/internal/history"
	"github.com/axju/metrico/internal/hunt"
	"github.com/axju/metrico/internal/hunter"
	"github.com/axju/metrico/internal/models"
)

type MediasHandler struct {
	repo    models.MediaRepository
	service *hunt.Service
	logger  *slog.Logger
}

func NewMediasHandler(repo models.MediaRepository, service *hunt.Service, logger *slog.Logger) *MediasHandler {
	return &MediasHandler{repo: repo, service: service, logger: logger}
}

type mediaDelta struct {
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	Comments int64     `json:"comments"`
	Likes    int64     `json:"likes"`
	Views    int64     `json:"views"`
}

// ListMedias returns tracked medias.
// GET /api/medias?account_id=1&order_by=stats_likes&limit=20
func (h *MediasHandler) ListMedias(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := models.MediaQuery{
		Status:   models.Status(r.URL.Query().Get("status")),
		OrderBy:  r.URL.Query().Get("order_by"),
		OrderAsc: r.URL.Query().Get("order") == "asc",
		Limit:    queryInt(r, "limit", 0),
		Offset:   queryInt(r, "offset", 0),
	}
	if raw := r.URL.Query().Get("account_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "Invalid account_id", http.StatusBadRequest)
			return
		}
		q.AccountID = id
	}

	medias, err := h.repo.List(r.Context(), q)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"medias": medias,
		"count":  len(medias),
	})
}

// HandleMedia routes /api/medias/{id} and its subpaths.
func (h *MediasHandler) HandleMedia(w http.ResponseWriter, r *http.Request, path string) {
	if path == "/update" && r.Method == http.MethodPost {
		h.bulkUpdate(w, r)
		return
	}

	id, rest, err := pathID(path)
	if err != nil {
		http.Error(w, "Invalid media id", http.StatusBadRequest)
		return
	}

	switch {
	case rest == "" && r.Method == http.MethodGet:
		h.getMedia(w, r, id)
	case rest == "stats" && r.Method == http.MethodGet:
		h.statsHistory(w, r, id)
	case rest == "info" && r.Method == http.MethodGet:
		h.infoHistory(w, r, id)
	case rest == "comments" && r.Method == http.MethodGet:
		h.comments(w, r, id)
	case rest == "update" && r.Method == http.MethodPost:
		h.updateMedia(w, r, id)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// getMedia returns one media, with the same ?dt delta reporting as
// accounts.
func (h *MediasHandler) getMedia(w http.ResponseWriter, r *http.Request, id int64) {
	media, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response := map[string]any{"media": media}

	if raw := r.URL.Query().Get("dt"); raw != "" {
		hours, err := strconv.ParseFloat(raw, 64)
		if err != nil || hours <= 0 {
			http.Error(w, "dt must be a positive number of hours", http.StatusBadRequest)
			return
		}
		delta, err := h.delta(r, id, hours)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		if delta != nil {
			response["delta"] = delta
		}
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *MediasHandler) delta(r *http.Request, id int64, hours float64) (*mediaDelta, error) {
	snapshots, err := h.repo.StatsHistory(r.Context(), id, 1000)
	if err != nil {
		return nil, err
	}
	if len(snapshots) < 2 {
		return nil, nil
	}

	timestamps := make([]time.Time, len(snapshots))
	for i, s := range snapshots {
		timestamps[i] = s.Timestamp
	}
	target := time.Duration(hours * float64(time.Hour))
	base := snapshots[history.Nearest(timestamps, target)]
	latest := snapshots[0]

	return &mediaDelta{
		From:     base.Timestamp,
		To:       latest.Timestamp,
		Comments: latest.Comments - base.Comments,
		Likes:    latest.Likes - base.Likes,
		Views:    latest.Views - base.Views,
	}, nil
}

// statsHistory returns stats snapshots newest-first.
// GET /api/medias/{id}/stats?limit=100
func (h *MediasHandler) statsHistory(w http.ResponseWriter, r *http.Request, id int64) {
	snapshots, err := h.repo.StatsHistory(r.Context(), id, queryInt(r, "limit", 100))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": snapshots, "count": len(snapshots)})
}

// infoHistory returns info snapshots newest-first.
// GET /api/medias/{id}/info?limit=100
func (h *MediasHandler) infoHistory(w http.ResponseWriter, r *http.Request, id int64) {
	snapshots, err := h.repo.InfoHistory(r.Context(), id, queryInt(r, "limit", 100))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"info": snapshots, "count": len(snapshots)})
}

// comments returns comment edges newest-first.
// GET /api/medias/{id}/comments?limit=100
func (h *MediasHandler) comments(w http.ResponseWriter, r *http.Request, id int64) {
	comments, err := h.repo.Comments(r.Context(), id, queryInt(r, "limit", 100))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": comments, "count": len(comments)})
}

// bulkUpdate refreshes every media matching the filter.
// POST /api/medias/update?account_id=1&limit=50&concurrency=4
func (h *MediasHandler) bulkUpdate(w http.ResponseWriter, r *http.Request) {
	q := models.MediaQuery{
		Status:   models.Status(r.URL.Query().Get("status")),
		OrderBy:  r.URL.Query().Get("order_by"),
		OrderAsc: r.URL.Query().Get("order") == "asc",
		Limit:    queryInt(r, "limit", 0),
		Offset:   queryInt(r, "offset", 0),
	}
	if raw := r.URL.Query().Get("account_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "Invalid account_id", http.StatusBadRequest)
			return
		}
		q.AccountID = id
	}
	params := hunter.MediaParams{
		CommentCount: queryInt(r, "comments", hunter.CountUnset),
	}

	outcome, err := h.service.UpdateMediasByQuery(r.Context(), q, queryInt(r, "concurrency", 0), params)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// updateMedia refreshes one media immediately.
// POST /api/medias/{id}/update?comments=3
func (h *MediasHandler) updateMedia(w http.ResponseWriter, r *http.Request, id int64) {
	params := hunter.MediaParams{
		CommentCount: queryInt(r, "comments", hunter.CountUnset),
	}

	if err := h.service.UpdateMedia(r.Context(), id, params); err != nil {
		writeError(w, h.logger, err)
		return
	}

	media, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, media)
}
