// Package pipeline orchestrates the collect, aggregate, and render stages.
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

// ReadingFetcher fetches raw readings for a station set over a date range.
type ReadingFetcher interface {
	FetchRange(ctx context.Context, start, end domain.Date, stationIDs []int) ([]domain.Reading, error)
}

// ReadingStore is the persistence surface the collector needs.
type ReadingStore interface {
	UpsertReadings(ctx context.Context, readings []domain.Reading) (int64, error)
	LatestTimestamp(ctx context.Context) (time.Time, bool, error)
}

// ReadingPublisher forwards newly stored readings to an external sink.
type ReadingPublisher interface {
	PublishReadings(ctx context.Context, readings []domain.Reading) error
}

// Range is an inclusive date range. The zero value means "use the default
// range": from the day of the last stored reading through yesterday.
type Range struct {
	Start domain.Date
	End   domain.Date
}

// IsZero reports whether no explicit range was given.
func (r Range) IsZero() bool {
	return r.Start.Time.IsZero() && r.End.Time.IsZero()
}

// Collector fetches readings from the upstream API and upserts them.
type Collector struct {
	fetcher    ReadingFetcher
	store      ReadingStore
	publisher  ReadingPublisher // nil when the Kafka sink is disabled
	stationIDs []int
	chunkDays  int
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewCollector wires a Collector. publisher may be nil.
func NewCollector(
	fetcher ReadingFetcher,
	store ReadingStore,
	publisher ReadingPublisher,
	stationIDs []int,
	chunkDays int,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Collector {
	return &Collector{
		fetcher:    fetcher,
		store:      store,
		publisher:  publisher,
		stationIDs: stationIDs,
		chunkDays:  chunkDays,
		logger:     logger,
		metrics:    metrics,
	}
}

// Run collects the given range. A zero range defaults to "since the last
// stored reading": the day of the latest row is re-fetched in full (the
// upsert discards what is already present) through yesterday. Long backfills
// are processed in chunks so one failed request does not discard hours of
// work. Any failure aborts the run; the next scheduled tick retries.
func (c *Collector) Run(ctx context.Context, rng Range) error {
	start := time.Now()
	runID := uuid.NewString()
	log := c.logger.With("run_id", runID, "stage", "collect")

	if len(c.stationIDs) == 0 {
		log.Warn("no active stations, nothing to collect")
		return nil
	}

	rng, err := c.resolveRange(ctx, rng)
	if err != nil {
		c.metrics.RunErrors.WithLabelValues("collect").Inc()
		return err
	}
	if rng.End.Before(rng.Start.Time) {
		log.Info("store already up to date", "through", rng.End.String())
		return nil
	}

	log.Info("collecting", "start", rng.Start.String(), "end", rng.End.String(), "stations", len(c.stationIDs))

	var totalFetched, totalInserted int64
	for chunkStart := rng.Start; !chunkStart.After(rng.End.Time); {
		chunkEnd := chunkStart.AddDays(c.chunkDays - 1)
		if chunkEnd.After(rng.End.Time) {
			chunkEnd = rng.End
		}

		fetched, inserted, err := c.collectChunk(ctx, chunkStart, chunkEnd)
		if err != nil {
			c.metrics.RunErrors.WithLabelValues("collect").Inc()
			return fmt.Errorf("collect %s..%s: %w", chunkStart, chunkEnd, err)
		}
		totalFetched += fetched
		totalInserted += inserted

		chunkStart = chunkEnd.AddDays(1)
	}

	c.metrics.CollectDuration.Observe(time.Since(start).Seconds())
	log.Info("collect complete",
		"fetched", totalFetched,
		"inserted", totalInserted,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

func (c *Collector) collectChunk(ctx context.Context, start, end domain.Date) (fetched, inserted int64, err error) {
	readings, err := c.fetcher.FetchRange(ctx, start, end, c.stationIDs)
	if err != nil {
		return 0, 0, err
	}
	c.metrics.ReadingsFetched.Add(float64(len(readings)))

	n, err := c.store.UpsertReadings(ctx, readings)
	if err != nil {
		return 0, 0, err
	}
	c.metrics.ReadingsUpserted.Add(float64(n))

	if c.publisher != nil && len(readings) > 0 {
		if err := c.publisher.PublishReadings(ctx, readings); err != nil {
			return 0, 0, fmt.Errorf("publish readings: %w", err)
		}
		c.metrics.ReadingsPublished.Add(float64(len(readings)))
	}

	return int64(len(readings)), n, nil
}

// resolveRange fills in the default range when none was given.
func (c *Collector) resolveRange(ctx context.Context, rng Range) (Range, error) {
	if !rng.IsZero() {
		return rng, nil
	}

	yesterday := domain.Today().AddDays(-1)

	latest, ok, err := c.store.LatestTimestamp(ctx)
	if err != nil {
		return Range{}, err
	}
	if !ok {
		// Empty store: start with yesterday only, like the scheduled daily run.
		return Range{Start: yesterday, End: yesterday}, nil
	}
	return Range{Start: domain.DateOf(latest), End: yesterday}, nil
}
