// Command weatherd runs the full pipeline on a fixed interval: collect new
// readings, recompute the daily summaries, and rewrite the site artifacts.
// It exposes health, readiness, and metrics endpoints while running.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/couchcryptid/wetterarena/internal/adapter/geosphere"
	httpadapter "github.com/couchcryptid/wetterarena/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/wetterarena/internal/adapter/kafka"
	"github.com/couchcryptid/wetterarena/internal/config"
	"github.com/couchcryptid/wetterarena/internal/domain"
	"github.com/couchcryptid/wetterarena/internal/observability"
	"github.com/couchcryptid/wetterarena/internal/pipeline"
	"github.com/couchcryptid/wetterarena/internal/site"
	"github.com/couchcryptid/wetterarena/internal/stations"
	"github.com/couchcryptid/wetterarena/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	db, err := store.OpenPostgres(cfg.PostgresURI)
	if err != nil {
		logger.Error("failed to open postgres", "error", err)
		os.Exit(1)
	}
	repo, err := store.New(db)
	if err != nil {
		logger.Error("failed to migrate schema", "error", err)
		os.Exit(1)
	}

	all, err := stations.Load(cfg.StationsCSV)
	if err != nil {
		logger.Error("failed to load stations", "error", err)
		os.Exit(1)
	}
	active := stations.ActiveIDs(all, domain.Today())
	logger.Info("stations loaded", "total", len(all), "active", len(active))

	renderer, err := site.NewRenderer(stations.ByID(all))
	if err != nil {
		logger.Error("failed to parse site templates", "error", err)
		os.Exit(1)
	}

	client := geosphere.NewClient(cfg, metrics, logger)

	// Kafka sink is feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS.
	var publisher pipeline.ReadingPublisher
	var closeSink func() error
	if cfg.KafkaEnabled {
		p := kafkaadapter.NewPublisher(cfg, logger)
		publisher = p
		closeSink = p.Close
		logger.Info("kafka sink enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("kafka sink disabled")
	}

	collector := pipeline.NewCollector(client, repo, publisher, active, cfg.BackfillChunkDays, logger, metrics)
	builder := pipeline.NewBuilder(repo, renderer, cfg.SiteDir, cfg.SummaryDays, logger, metrics)
	cycle := pipeline.NewCycle(collector, builder, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, cycle, repo, cfg.SiteDir, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()
	if _, err := scheduler.Every(cfg.CollectInterval).Do(func() {
		if err := cycle.RunOnce(ctx); err != nil {
			logger.Error("cycle failed", "error", err)
		}
	}); err != nil {
		logger.Error("failed to schedule cycle", "error", err)
		os.Exit(1)
	}
	scheduler.StartAsync()
	logger.Info("scheduler started", "interval", cfg.CollectInterval)

	<-ctx.Done()
	logger.Info("shutting down")

	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if closeSink != nil {
		if err := closeSink(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
