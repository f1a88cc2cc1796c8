package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/couchcryptid/wetterarena/internal/domain"
)

func f(v float64) *float64 { return &v }

func openTestRepo(t *testing.T) *Repo {
	t.Helper()
	// Unique in-memory DB per test to avoid cross-test contamination.
	dsn := "file:store_" + strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	repo, err := New(db)
	require.NoError(t, err)
	return repo
}

func reading(station int, ts time.Time, tl, rr, so *float64) domain.Reading {
	return domain.Reading{
		Station:       station,
		Timestamp:     ts,
		Temperature:   tl,
		Precipitation: rr,
		Sunshine:      so,
	}
}

func TestUpsertReadings_Idempotent(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 4, 26, 0, 0, 0, 0, time.UTC)

	batch := []domain.Reading{
		reading(105, base, f(11.3), f(0), f(600)),
		reading(105, base.Add(10*time.Minute), f(11.1), f(0.2), nil),
	}

	inserted, err := repo.UpsertReadings(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, int64(2), inserted)

	// Re-running the identical batch must not create duplicates.
	inserted, err = repo.UpsertReadings(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, int64(0), inserted)

	n, err := repo.CountReadings(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestUpsertReadings_Empty(t *testing.T) {
	repo := openTestRepo(t)

	inserted, err := repo.UpsertReadings(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, inserted)
}

func TestLatestTimestamp(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	_, ok, err := repo.LatestTimestamp(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	base := time.Date(2024, 4, 26, 12, 0, 0, 0, time.UTC)
	_, err = repo.UpsertReadings(ctx, []domain.Reading{
		reading(105, base, f(1), nil, nil),
		reading(5925, base.Add(20*time.Minute), f(2), nil, nil),
		reading(105, base.Add(10*time.Minute), f(3), nil, nil),
	})
	require.NoError(t, err)

	latest, ok, err := repo.LatestTimestamp(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, base.Add(20*time.Minute), latest)
}

func TestRecomputeDailySummaries_Aggregates(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	day := time.Date(2024, 4, 26, 0, 0, 0, 0, time.UTC)

	_, err := repo.UpsertReadings(ctx, []domain.Reading{
		reading(105, day.Add(0*time.Minute), f(10.0), f(0.0), f(0)),
		reading(105, day.Add(10*time.Minute), f(14.5), f(1.2), f(300)),
		reading(105, day.Add(20*time.Minute), f(7.5), f(0.3), f(600)),
	})
	require.NoError(t, err)

	require.NoError(t, repo.RecomputeDailySummaries(ctx))

	summaries, err := repo.ListSummaries(ctx, domain.NewDate(2024, time.April, 1))
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	s := summaries[0]
	assert.Equal(t, 105, s.Station)
	assert.Equal(t, "2024-04-26", s.Date.String())
	assert.Equal(t, 14.5, *s.TMax)
	assert.Equal(t, 7.5, *s.TMin)
	assert.InDelta(t, 1.5, *s.RR, 1e-9)
	assert.Equal(t, 900.0, *s.SD)
}

func TestRecomputeDailySummaries_IgnoresNullMeasures(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	day := time.Date(2024, 4, 26, 0, 0, 0, 0, time.UTC)

	_, err := repo.UpsertReadings(ctx, []domain.Reading{
		reading(105, day.Add(0*time.Minute), f(10.0), nil, nil),
		reading(105, day.Add(10*time.Minute), nil, f(0.4), nil),
	})
	require.NoError(t, err)

	require.NoError(t, repo.RecomputeDailySummaries(ctx))

	summaries, err := repo.ListSummaries(ctx, domain.NewDate(2024, time.April, 1))
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	s := summaries[0]
	assert.Equal(t, 10.0, *s.TMax)
	assert.Equal(t, 10.0, *s.TMin)
	assert.Equal(t, 0.4, *s.RR)
	assert.Nil(t, s.SD) // no sunshine reported at all that day
}

func TestRecomputeDailySummaries_NoRowForEmptyDay(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	// Readings on the 26th only; the 27th must not appear as a zero-filled row.
	day := time.Date(2024, 4, 26, 0, 0, 0, 0, time.UTC)
	_, err := repo.UpsertReadings(ctx, []domain.Reading{
		reading(105, day, f(10), nil, nil),
	})
	require.NoError(t, err)

	require.NoError(t, repo.RecomputeDailySummaries(ctx))

	summaries, err := repo.ListSummaries(ctx, domain.NewDate(2024, time.April, 1))
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "2024-04-26", summaries[0].Date.String())
}

func TestRecomputeDailySummaries_Idempotent(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	day := time.Date(2024, 4, 26, 0, 0, 0, 0, time.UTC)

	_, err := repo.UpsertReadings(ctx, []domain.Reading{
		reading(105, day, f(10), f(0.1), f(60)),
		reading(5925, day, f(4), f(0.0), f(0)),
	})
	require.NoError(t, err)

	require.NoError(t, repo.RecomputeDailySummaries(ctx))
	first, err := repo.ListSummaries(ctx, domain.NewDate(2024, time.April, 1))
	require.NoError(t, err)

	require.NoError(t, repo.RecomputeDailySummaries(ctx))
	second, err := repo.ListSummaries(ctx, domain.NewDate(2024, time.April, 1))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestListSummaries_CutoffAndOrder(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	for dayOffset := 0; dayOffset < 10; dayOffset++ {
		day := time.Date(2024, 4, 16+dayOffset, 6, 0, 0, 0, time.UTC)
		_, err := repo.UpsertReadings(ctx, []domain.Reading{
			reading(5925, day, f(float64(dayOffset)), nil, nil),
			reading(105, day, f(float64(dayOffset)), nil, nil),
		})
		require.NoError(t, err)
	}
	require.NoError(t, repo.RecomputeDailySummaries(ctx))

	cutoff := domain.NewDate(2024, time.April, 19)
	summaries, err := repo.ListSummaries(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, summaries, 14) // 7 days x 2 stations, cutoff day included

	assert.Equal(t, "2024-04-19", summaries[0].Date.String())
	assert.Equal(t, 105, summaries[0].Station)
	assert.Equal(t, 5925, summaries[1].Station)
	assert.Equal(t, "2024-04-25", summaries[len(summaries)-1].Date.String())
}

func TestWithUTCSession(t *testing.T) {
	tests := []struct {
		name string
		uri  string
		want string
	}{
		{
			name: "url form",
			uri:  "postgresql://user:pw@localhost:5432/weather",
			want: "postgresql://user:pw@localhost:5432/weather?TimeZone=UTC",
		},
		{
			name: "url form with existing params",
			uri:  "postgresql://user:pw@localhost:5432/weather?sslmode=disable",
			want: "postgresql://user:pw@localhost:5432/weather?sslmode=disable&TimeZone=UTC",
		},
		{
			name: "keyword form",
			uri:  "host=localhost user=weather dbname=weather",
			want: "host=localhost user=weather dbname=weather TimeZone=UTC",
		},
		{
			name: "caller-supplied time zone wins",
			uri:  "postgresql://localhost/weather?TimeZone=Europe/Vienna",
			want: "postgresql://localhost/weather?TimeZone=Europe/Vienna",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, withUTCSession(tt.uri))
		})
	}
}
