package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/axju/metrico/internal/api"
	"github.com/axju/metrico/internal/config"
	"github.com/axju/metrico/internal/database"
	"github.com/axju/metrico/internal/hunt"
	"github.com/axju/metrico/internal/hunter"
	"github.com/axju/metrico/internal/hunter/fake"
	"github.com/axju/metrico/internal/logging"
	"github.com/axju/metrico/internal/metrics"
	"github.com/axju/metrico/internal/server"
	"github.com/axju/metrico/internal/trigger"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	fallback := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load(*configPath)
	if err != nil {
		fallback.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fallback.Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting metrico",
		"driver", cfg.Database.Driver,
		"concurrency", cfg.Hunt.Concurrency)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db, cfg.Database.Driver, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	accountRepo := database.NewAccountRepository(db)
	mediaRepo := database.NewMediaRepository(db)
	triggerRepo := database.NewTriggerRepository(db)

	// A crash mid-run leaves triggers stuck in RUNNING; release them
	// before the scheduler accepts work.
	recovered, err := triggerRepo.RecoverStuck(ctx, time.Now().UTC())
	if err != nil {
		logger.Error("failed to recover stuck triggers", "error", err)
		os.Exit(1)
	}
	if recovered > 0 {
		logger.Warn("recovered stuck triggers", "count", recovered)
	}

	collector, err := metrics.New()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}

	registry := hunter.Registry{}
	registry.Register(fake.New(fake.DefaultConfig()))

	dispatcher, err := hunt.NewDispatcher(cfg.Hunt.Concurrency, cfg.Hunt.MaxFailures, logger)
	if err != nil {
		logger.Error("failed to init dispatcher", "error", err)
		os.Exit(1)
	}
	service := hunt.NewService(accountRepo, mediaRepo, registry, dispatcher, collector, logger)
	scheduler := trigger.NewScheduler(triggerRepo, service, collector, logger, cfg.Hunt.TriggerLimit)

	mux := http.NewServeMux()
	api.SetupRoutes(mux, db, accountRepo, mediaRepo, triggerRepo, service, scheduler, collector, logger)

	srv := server.New(cfg.Server, logger, collector.InstrumentHandler(mux))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	logger.Info("metrico stopped")
}
