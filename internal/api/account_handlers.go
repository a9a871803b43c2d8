package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/axju/metrico/internal/history"
	"github.com/axju/metrico/internal/hunt"
	"github.com/axju/metrico/internal/hunter"
	"github.com/axju/metrico/internal/models"
)

type AccountsHandler struct {
	repo    models.AccountRepository
	service *hunt.Service
	logger  *slog.Logger
}

func NewAccountsHandler(repo models.AccountRepository, service *hunt.Service, logger *slog.Logger) *AccountsHandler {
	return &AccountsHandler{repo: repo, service: service, logger: logger}
}

// accountDelta is the change between the latest stats snapshot and the
// one nearest to the requested age.
type accountDelta struct {
	From          time.Time `json:"from"`
	To            time.Time `json:"to"`
	Medias        int64     `json:"medias"`
	Views         int64     `json:"views"`
	Followers     int64     `json:"followers"`
	Subscriptions int64     `json:"subscriptions"`
}

// ListAccounts returns tracked accounts.
// GET /api/accounts?platform=fake&status=active&order_by=stats_followers&limit=20
func (h *AccountsHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	q := models.AccountQuery{
		Platform: r.URL.Query().Get("platform"),
		Status:   models.Status(r.URL.Query().Get("status")),
		OrderBy:  r.URL.Query().Get("order_by"),
		OrderAsc: r.URL.Query().Get("order") == "asc",
		Limit:    queryInt(r, "limit", 0),
		Offset:   queryInt(r, "offset", 0),
	}

	accounts, err := h.repo.List(r.Context(), q)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

// CreateAccount starts tracking one account.
// POST /api/accounts
// Body: {"platform": "fake", "identifier": "alice"}
func (h *AccountsHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Platform   string `json:"platform"`
		Identifier string `json:"identifier"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if body.Platform == "" || body.Identifier == "" {
		http.Error(w, "platform and identifier are required", http.StatusBadRequest)
		return
	}

	account, err := h.service.Create(r.Context(), body.Platform, body.Identifier)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.logger.Info("tracking account",
		"platform", account.Platform,
		"identifier", account.Identifier)
	writeJSON(w, http.StatusCreated, account)
}

// Discover searches a platform and tracks every candidate.
// POST /api/discover
// Body: {"platform": "fake", "query": "cats", "full": false}
func (h *AccountsHandler) Discover(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		Platform string `json:"platform"`
		Query    string `json:"query"`
		Full     bool   `json:"full"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if body.Query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}

	accounts, err := h.service.Discover(r.Context(), body.Platform, body.Query, body.Full)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

// HandleAccount routes /api/accounts/{id} and its subpaths.
func (h *AccountsHandler) HandleAccount(w http.ResponseWriter, r *http.Request, path string) {
	if path == "/update" && r.Method == http.MethodPost {
		h.bulkUpdate(w, r)
		return
	}

	id, rest, err := pathID(path)
	if err != nil {
		http.Error(w, "Invalid account id", http.StatusBadRequest)
		return
	}

	switch {
	case rest == "" && r.Method == http.MethodGet:
		h.getAccount(w, r, id)
	case rest == "stats" && r.Method == http.MethodGet:
		h.statsHistory(w, r, id)
	case rest == "info" && r.Method == http.MethodGet:
		h.infoHistory(w, r, id)
	case rest == "subscriptions" && r.Method == http.MethodGet:
		h.subscriptions(w, r, id)
	case rest == "update" && r.Method == http.MethodPost:
		h.updateAccount(w, r, id)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// getAccount returns one account. With ?dt=24 it also reports the
// stats change against the snapshot closest to 24 hours before the
// latest one.
func (h *AccountsHandler) getAccount(w http.ResponseWriter, r *http.Request, id int64) {
	account, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response := map[string]any{"account": account}

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

func (h *AccountsHandler) delta(r *http.Request, id int64, hours float64) (*accountDelta, error) {
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

	return &accountDelta{
		From:          base.Timestamp,
		To:            latest.Timestamp,
		Medias:        latest.Medias - base.Medias,
		Views:         latest.Views - base.Views,
		Followers:     latest.Followers - base.Followers,
		Subscriptions: latest.Subscriptions - base.Subscriptions,
	}, nil
}

// statsHistory returns stats snapshots newest-first.
// GET /api/accounts/{id}/stats?limit=100
func (h *AccountsHandler) statsHistory(w http.ResponseWriter, r *http.Request, id int64) {
	snapshots, err := h.repo.StatsHistory(r.Context(), id, queryInt(r, "limit", 100))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": snapshots, "count": len(snapshots)})
}

// infoHistory returns info snapshots newest-first.
// GET /api/accounts/{id}/info?limit=100
func (h *AccountsHandler) infoHistory(w http.ResponseWriter, r *http.Request, id int64) {
	snapshots, err := h.repo.InfoHistory(r.Context(), id, queryInt(r, "limit", 100))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"info": snapshots, "count": len(snapshots)})
}

// subscriptions returns outgoing follow edges.
// GET /api/accounts/{id}/subscriptions?limit=100
func (h *AccountsHandler) subscriptions(w http.ResponseWriter, r *http.Request, id int64) {
	edges, err := h.repo.Subscriptions(r.Context(), id, queryInt(r, "limit", 100))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"subscriptions": edges, "count": len(edges)})
}

// bulkUpdate refreshes every account matching the filter.
// POST /api/accounts/update?platform=fake&status=active&limit=50&concurrency=4
func (h *AccountsHandler) bulkUpdate(w http.ResponseWriter, r *http.Request) {
	q := models.AccountQuery{
		Platform: r.URL.Query().Get("platform"),
		Status:   models.Status(r.URL.Query().Get("status")),
		OrderBy:  r.URL.Query().Get("order_by"),
		OrderAsc: r.URL.Query().Get("order") == "asc",
		Limit:    queryInt(r, "limit", 0),
		Offset:   queryInt(r, "offset", 0),
	}
	params := hunter.AccountParams{
		MediaCount:        queryInt(r, "medias", hunter.CountUnset),
		CommentCount:      queryInt(r, "comments", hunter.CountUnset),
		SubscriptionCount: queryInt(r, "subscriptions", hunter.CountUnset),
	}

	outcome, err := h.service.UpdateAccountsByQuery(r.Context(), q, queryInt(r, "concurrency", 0), params)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// updateAccount refreshes one account immediately.
// POST /api/accounts/{id}/update?medias=5&comments=3&subscriptions=0
func (h *AccountsHandler) updateAccount(w http.ResponseWriter, r *http.Request, id int64) {
	params := hunter.AccountParams{
		MediaCount:        queryInt(r, "medias", hunter.CountUnset),
		CommentCount:      queryInt(r, "comments", hunter.CountUnset),
		SubscriptionCount: queryInt(r, "subscriptions", hunter.CountUnset),
	}

	if err := h.service.UpdateAccount(r.Context(), id, params); err != nil {
		writeError(w, h.logger, err)
		return
	}

	account, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}
