// Command collect fetches raw readings from the GeoSphere Dataset API and
// upserts them into Postgres. Without flags it collects from the day of the
// last stored reading through yesterday; -start/-end run an explicit
// backfill.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/wetterarena/internal/adapter/geosphere"
	kafkaadapter "github.com/couchcryptid/wetterarena/internal/adapter/kafka"
	"github.com/couchcryptid/wetterarena/internal/config"
	"github.com/couchcryptid/wetterarena/internal/domain"
	"github.com/couchcryptid/wetterarena/internal/observability"
	"github.com/couchcryptid/wetterarena/internal/pipeline"
	"github.com/couchcryptid/wetterarena/internal/stations"
	"github.com/couchcryptid/wetterarena/internal/store"
)

func main() {
	startFlag := flag.String("start", "", "backfill start date (YYYY-MM-DD)")
	endFlag := flag.String("end", "", "backfill end date (YYYY-MM-DD), defaults to -start")
	flag.Parse()

	if err := run(*startFlag, *endFlag); err != nil {
		slog.Error("collect failed", "error", err)
		os.Exit(1)
	}
}

func run(startFlag, endFlag string) error {
	rng, err := parseRange(startFlag, endFlag)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	db, err := store.OpenPostgres(cfg.PostgresURI)
	if err != nil {
		return err
	}
	repo, err := store.New(db)
	if err != nil {
		return err
	}

	all, err := stations.Load(cfg.StationsCSV)
	if err != nil {
		return err
	}
	active := stations.ActiveIDs(all, domain.Today())

	client := geosphere.NewClient(cfg, metrics, logger)

	var publisher pipeline.ReadingPublisher
	if cfg.KafkaEnabled {
		p := kafkaadapter.NewPublisher(cfg, logger)
		defer p.Close() //nolint:errcheck
		publisher = p
		logger.Info("kafka sink enabled", "topic", cfg.KafkaTopic)
	}

	collector := pipeline.NewCollector(client, repo, publisher, active, cfg.BackfillChunkDays, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return collector.Run(ctx, rng)
}

func parseRange(startFlag, endFlag string) (pipeline.Range, error) {
	if startFlag == "" {
		if endFlag != "" {
			return pipeline.Range{}, fmt.Errorf("-end requires -start")
		}
		return pipeline.Range{}, nil
	}

	start, err := domain.ParseDate(startFlag)
	if err != nil {
		return pipeline.Range{}, fmt.Errorf("invalid -start: %w", err)
	}
	end := start
	if endFlag != "" {
		if end, err = domain.ParseDate(endFlag); err != nil {
			return pipeline.Range{}, fmt.Errorf("invalid -end: %w", err)
		}
	}
	if end.Before(start.Time) {
		return pipeline.Range{}, fmt.Errorf("-end %s is before -start %s", end, start)
	}
	return pipeline.Range{Start: start, End: end}, nil
}
