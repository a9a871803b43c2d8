package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/axju/metrico/internal/models"
	"github.com/axju/metrico/internal/trigger"
)

type TriggersHandler struct {
	repo      models.TriggerRepository
	scheduler *trigger.Scheduler
	logger    *slog.Logger
}

func NewTriggersHandler(repo models.TriggerRepository, scheduler *trigger.Scheduler, logger *slog.Logger) *TriggersHandler {
	return &TriggersHandler{repo: repo, scheduler: scheduler, logger: logger}
}

// ListTriggers returns triggers ordered by name.
// GET /api/triggers
func (h *TriggersHandler) ListTriggers(w http.ResponseWriter, r *http.Request) {
	triggers, err := h.repo.List(r.Context(), queryInt(r, "limit", 100))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"triggers": triggers,
		"count":    len(triggers),
	})
}

// CreateTrigger creates an idle trigger; an existing name returns the
// existing trigger.
// POST /api/triggers
// Body: {"name": "daily"}
func (h *TriggersHandler) CreateTrigger(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	created, err := h.repo.Create(r.Context(), body.Name)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// HandleTrigger routes /api/triggers/{name} and its subpaths.
func (h *TriggersHandler) HandleTrigger(w http.ResponseWriter, r *http.Request, path string) {
	path = strings.TrimPrefix(path, "/")
	name, rest, _ := strings.Cut(path, "/")
	if name == "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	switch {
	case rest == "" && r.Method == http.MethodGet:
		h.getTrigger(w, r, name)
	case rest == "run" && r.Method == http.MethodPost:
		h.runTrigger(w, r, name)
	case rest == "bind" && r.Method == http.MethodPost:
		h.bind(w, r, name)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// getTrigger returns the trigger with its recent run records.
// GET /api/triggers/{name}?runs=10
func (h *TriggersHandler) getTrigger(w http.ResponseWriter, r *http.Request, name string) {
	t, err := h.repo.GetByName(r.Context(), name)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	runs, err := h.repo.Runs(r.Context(), t.ID, queryInt(r, "runs", 10))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"trigger": t,
		"runs":    runs,
	})
}

// runTrigger executes the trigger once, synchronously. A run already
// in flight answers 409 without touching it.
// POST /api/triggers/{name}/run?concurrency=4&limit=100
func (h *TriggersHandler) runTrigger(w http.ResponseWriter, r *http.Request, name string) {
	result, err := h.scheduler.Run(r.Context(), name, queryInt(r, "concurrency", 0), queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// bind attaches accounts and medias to the trigger's set.
// POST /api/triggers/{name}/bind
// Body: {"account_ids": [1, 2], "media_ids": [3]}
func (h *TriggersHandler) bind(w http.ResponseWriter, r *http.Request, name string) {
	var body struct {
		AccountIDs []int64 `json:"account_ids"`
		MediaIDs   []int64 `json:"media_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	t, err := h.repo.GetByName(r.Context(), name)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	for _, id := range body.AccountIDs {
		if err := h.repo.BindAccount(r.Context(), t.ID, id); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}
	for _, id := range body.MediaIDs {
		if err := h.repo.BindMedia(r.Context(), t.ID, id); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}

	h.logger.Info("bound entities to trigger",
		"trigger", name,
		"accounts", len(body.AccountIDs),
		"medias", len(body.MediaIDs))
	writeJSON(w, http.StatusOK, map[string]any{
		"trigger":  name,
		"accounts": len(body.AccountIDs),
		"medias":   len(body.MediaIDs),
	})
}
