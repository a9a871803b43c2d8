package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/axju/metrico/internal/hunt"
	"github.com/axju/metrico/internal/metrics"
	"github.com/axju/metrico/internal/models"
	"github.com/axju/metrico/internal/trigger"
)

// SetupRoutes configures all API routes on mux.
func SetupRoutes(
	mux *http.ServeMux,
	db *sql.DB,
	accounts models.AccountRepository,
	medias models.MediaRepository,
	triggers models.TriggerRepository,
	service *hunt.Service,
	scheduler *trigger.Scheduler,
	collector *metrics.Collector,
	logger *slog.Logger,
) {
	accountsHandler := NewAccountsHandler(accounts, service, logger)
	mediasHandler := NewMediasHandler(medias, service, logger)
	triggersHandler := NewTriggersHandler(triggers, scheduler, logger)
	statsHandler := NewStatsHandler(db, logger)

	mux.HandleFunc("/api/accounts", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			accountsHandler.ListAccounts(w, r)
		case http.MethodPost:
			accountsHandler.CreateAccount(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/accounts/", func(w http.ResponseWriter, r *http.Request) {
		accountsHandler.HandleAccount(w, r, strings.TrimPrefix(r.URL.Path, "/api/accounts"))
	})
	mux.HandleFunc("/api/discover", accountsHandler.Discover)

	mux.HandleFunc("/api/medias", mediasHandler.ListMedias)
	mux.HandleFunc("/api/medias/", func(w http.ResponseWriter, r *http.Request) {
		mediasHandler.HandleMedia(w, r, strings.TrimPrefix(r.URL.Path, "/api/medias"))
	})

	mux.HandleFunc("/api/triggers", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			triggersHandler.ListTriggers(w, r)
		case http.MethodPost:
			triggersHandler.CreateTrigger(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/triggers/", func(w http.ResponseWriter, r *http.Request) {
		triggersHandler.HandleTrigger(w, r, strings.TrimPrefix(r.URL.Path, "/api/triggers"))
	})

	mux.HandleFunc("/api/stats", statsHandler.GetStats)
	mux.HandleFunc("/health", statsHandler.Health)
	mux.Handle("/metrics", collector.Handler())
}
