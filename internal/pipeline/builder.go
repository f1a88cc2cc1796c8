package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/wetterarena/internal/domain"
	"github.com/couchcryptid/wetterarena/internal/observability"
)

// SummaryStore is the persistence surface the builder needs.
type SummaryStore interface {
	RecomputeDailySummaries(ctx context.Context) error
	ListSummaries(ctx context.Context, since domain.Date) ([]domain.DailySummary, error)
}

// SiteWriter renders the output artifacts into a directory.
type SiteWriter interface {
	WriteDir(dir string, summaries []domain.DailySummary) error
}

// Builder recomputes daily summaries and renders the static site.
type Builder struct {
	store    SummaryStore
	renderer SiteWriter
	siteDir  string
	days     int
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewBuilder wires a Builder that exports the last `days` days.
func NewBuilder(
	store SummaryStore,
	renderer SiteWriter,
	siteDir string,
	days int,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Builder {
	return &Builder{
		store:    store,
		renderer: renderer,
		siteDir:  siteDir,
		days:     days,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run recomputes the summaries, then writes the CSV and HTML wholesale.
// Output is a pure function of the stored readings: re-running on unchanged
// data produces byte-identical artifacts.
func (b *Builder) Run(ctx context.Context) error {
	start := time.Now()
	log := b.logger.With("run_id", uuid.NewString(), "stage", "build")

	if err := b.store.RecomputeDailySummaries(ctx); err != nil {
		b.metrics.RunErrors.WithLabelValues("aggregate").Inc()
		return err
	}

	cutoff := domain.Today().AddDays(-b.days)
	summaries, err := b.store.ListSummaries(ctx, cutoff)
	if err != nil {
		b.metrics.RunErrors.WithLabelValues("build").Inc()
		return err
	}

	if err := b.renderer.WriteDir(b.siteDir, summaries); err != nil {
		b.metrics.RunErrors.WithLabelValues("build").Inc()
		return fmt.Errorf("write site: %w", err)
	}

	b.metrics.BuildDuration.Observe(time.Since(start).Seconds())
	log.Info("build complete",
		"rows", len(summaries),
		"since", cutoff.String(),
		"dir", b.siteDir,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return nil
}
