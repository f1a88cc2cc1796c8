// Command build recomputes the daily summaries from the stored readings and
// writes the static site artifacts (last7.csv and index.html).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/wetterarena/internal/config"
	"github.com/couchcryptid/wetterarena/internal/observability"
	"github.com/couchcryptid/wetterarena/internal/pipeline"
	"github.com/couchcryptid/wetterarena/internal/site"
	"github.com/couchcryptid/wetterarena/internal/stations"
	"github.com/couchcryptid/wetterarena/internal/store"
)

func main() {
	days := flag.Int("days", 0, "number of trailing days to publish (default from SUMMARY_DAYS)")
	out := flag.String("out", "", "output directory (default from SITE_DIR)")
	flag.Parse()

	if err := run(*days, *out); err != nil {
		slog.Error("build failed", "error", err)
		os.Exit(1)
	}
}

func run(days int, out string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if days > 0 {
		cfg.SummaryDays = days
	}
	if out != "" {
		cfg.SiteDir = out
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
	renderer, err := site.NewRenderer(stations.ByID(all))
	if err != nil {
		return err
	}

	builder := pipeline.NewBuilder(repo, renderer, cfg.SiteDir, cfg.SummaryDays, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return builder.Run(ctx)
}
