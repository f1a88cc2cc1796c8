// Package store persists raw readings and daily summaries in a
// Postgres-compatible database via gorm.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/couchcryptid/wetterarena/internal/domain"
)

// upsertBatchSize bounds the number of rows per INSERT so a large backfill
// does not exceed parameter limits.
const upsertBatchSize = 500

// Repo wraps the database handle with the pipeline's queries.
type Repo struct {
	db *gorm.DB
}

// OpenPostgres connects using a connection string
// (postgresql://user:pw@host:port/db). The session time zone is pinned to
// UTC: the recompute query groups readings by date(timestamp), and that
// truncation must use the UTC day boundary, not the server default.
func OpenPostgres(uri string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(withUTCSession(uri)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

// withUTCSession appends TimeZone=UTC to a connection string, handling both
// URL and keyword/value forms. A caller-supplied TimeZone wins.
func withUTCSession(uri string) string {
	if strings.Contains(strings.ToLower(uri), "timezone=") {
		return uri
	}
	if strings.Contains(uri, "://") {
		sep := "?"
		if strings.Contains(uri, "?") {
			sep = "&"
		}
		return uri + sep + "TimeZone=UTC"
	}
	return uri + " TimeZone=UTC"
}

// New migrates the schema and returns a Repo.
func New(db *gorm.DB) (*Repo, error) {
	if err := db.AutoMigrate(&domain.Reading{}, &domain.DailySummary{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Repo{db: db}, nil
}

// UpsertReadings inserts readings, silently skipping rows whose
// (station, timestamp) key already exists. Returns the number of rows
// actually inserted.
func (r *Repo) UpsertReadings(ctx context.Context, readings []domain.Reading) (int64, error) {
	if len(readings) == 0 {
		return 0, nil
	}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "station"}, {Name: "timestamp"}},
			DoNothing: true,
		}).
		CreateInBatches(readings, upsertBatchSize)
	if res.Error != nil {
		return 0, fmt.Errorf("upsert readings: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// LatestTimestamp returns the most recent reading timestamp, or ok=false when
// the readings table is empty.
func (r *Repo) LatestTimestamp(ctx context.Context) (time.Time, bool, error) {
	var rows []domain.Reading
	err := r.db.WithContext(ctx).
		Order("timestamp DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return time.Time{}, false, fmt.Errorf("latest timestamp: %w", err)
	}
	if len(rows) == 0 {
		return time.Time{}, false, nil
	}
	return rows[0].Timestamp.UTC(), true, nil
}

// RecomputeDailySummaries rebuilds the daily summary table from scratch with
// a single grouping query over the readings table. Runs in one transaction so
// readers never observe a partially rebuilt table. Aggregates ignore NULL
// measures; a day with no readings yields no row. Idempotent: running twice
// with no new readings produces an identical table.
func (r *Repo) RecomputeDailySummaries(ctx context.Context) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM daily_summaries").Error; err != nil {
			return err
		}
		return tx.Exec(`
			INSERT INTO daily_summaries (station, date, tmax, tmin, rr, sd)
			SELECT station, date(timestamp), max(temperature), min(temperature),
			       sum(precipitation), sum(sunshine)
			FROM readings
			GROUP BY station, date(timestamp)`).Error
	})
	if err != nil {
		return fmt.Errorf("recompute daily summaries: %w", err)
	}
	return nil
}

// ListSummaries returns all daily summaries on or after the given day,
// ordered by (date, station) so downstream output is deterministic.
func (r *Repo) ListSummaries(ctx context.Context, since domain.Date) ([]domain.DailySummary, error) {
	var out []domain.DailySummary
	err := r.db.WithContext(ctx).
		Where("date >= ?", since.String()).
		Order("date, station").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	return out, nil
}

// CountReadings reports the total number of raw readings. Used by tests and
// the daemon's startup log.
func (r *Repo) CountReadings(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&domain.Reading{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count readings: %w", err)
	}
	return n, nil
}
