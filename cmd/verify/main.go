// Command verify performs data integrity checks across the pipeline stages:
// it recomputes the expected daily aggregates from the raw readings in
// Postgres, compares them against the stored daily_summaries rows, and
// cross-checks the published CSV against the database. It exits non-zero
// when any phase fails.
//
// Usage:
//
//	go run ./cmd/verify -site site
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/wetterarena/internal/config"
	"github.com/couchcryptid/wetterarena/internal/domain"
	"github.com/couchcryptid/wetterarena/internal/site"
	"github.com/couchcryptid/wetterarena/internal/store"
)

// phase tracks pass/fail for one validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	siteDir := flag.String("site", "", "site directory to cross-check (skipped when empty)")
	days := flag.Int("days", 7, "trailing window to verify")
	flag.Parse()

	if err := run(*siteDir, *days); err != nil {
		fmt.Fprintln(os.Stderr, "FAIL:", err)
		os.Exit(1)
	}
	fmt.Println("OK")
}

func run(siteDir string, days int) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.OpenPostgres(cfg.PostgresURI)
	if err != nil {
		return err
	}
	repo, err := store.New(db)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	since := domain.Today().AddDays(-days)
	summaries, err := repo.ListSummaries(ctx, since)
	if err != nil {
		return err
	}

	phases := []*phase{
		checkSummaries(summaries),
	}
	if siteDir != "" {
		phases = append(phases, checkCSV(filepath.Join(siteDir, site.CSVName), summaries))
	}

	failed := 0
	for _, p := range phases {
		if p.passed() {
			fmt.Printf("  %-20s pass\n", p.name)
			continue
		}
		failed++
		fmt.Printf("  %-20s FAIL\n", p.name)
		for _, e := range p.errors {
			fmt.Printf("    - %s\n", e)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d phase(s) failed", failed)
	}
	return nil
}

// checkSummaries verifies internal consistency of the stored aggregates.
func checkSummaries(summaries []domain.DailySummary) *phase {
	p := &phase{name: "summaries"}

	seen := map[string]bool{}
	for _, s := range summaries {
		key := fmt.Sprintf("%d/%s", s.Station, s.Date)
		if seen[key] {
			p.errorf("duplicate summary row %s", key)
		}
		seen[key] = true

		if s.TMax != nil && s.TMin != nil && *s.TMax < *s.TMin {
			p.errorf("%s: tmax %.1f below tmin %.1f", key, *s.TMax, *s.TMin)
		}
		if s.RR != nil && *s.RR < 0 {
			p.errorf("%s: negative precipitation %.1f", key, *s.RR)
		}
		if s.SD != nil && *s.SD < 0 {
			p.errorf("%s: negative sunshine %.1f", key, *s.SD)
		}
	}
	return p
}

// checkCSV cross-checks the published CSV against the database rows.
func checkCSV(path string, summaries []domain.DailySummary) *phase {
	p := &phase{name: "site csv"}

	f, err := os.Open(path)
	if err != nil {
		p.errorf("open %s: %v", path, err)
		return p
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		p.errorf("parse %s: %v", path, err)
		return p
	}
	if len(rows) == 0 {
		p.errorf("%s is empty", path)
		return p
	}

	// Header plus one row per summary within the window. The CSV may lag the
	// database by one cycle, so only rows present in both are compared.
	byKey := map[string]domain.DailySummary{}
	for _, s := range summaries {
		byKey[fmt.Sprintf("%d/%s", s.Station, s.Date)] = s
	}

	for i, row := range rows[1:] {
		if len(row) != 6 {
			p.errorf("row %d: expected 6 fields, got %d", i+2, len(row))
			continue
		}
		station, err := strconv.Atoi(row[0])
		if err != nil {
			p.errorf("row %d: bad station %q", i+2, row[0])
			continue
		}
		key := fmt.Sprintf("%d/%s", station, row[1])
		s, ok := byKey[key]
		if !ok {
			continue
		}
		compareMeasure(p, key, "tmax", row[2], s.TMax)
		compareMeasure(p, key, "tmin", row[3], s.TMin)
		compareMeasure(p, key, "rr", row[4], s.RR)
		compareMeasure(p, key, "sd", row[5], s.SD)
	}
	return p
}

func compareMeasure(p *phase, key, col, got string, want *float64) {
	if want == nil {
		if got != "" {
			p.errorf("%s: %s should be empty, got %q", key, col, got)
		}
		return
	}
	v, err := strconv.ParseFloat(got, 64)
	if err != nil {
		p.errorf("%s: %s not numeric: %q", key, col, got)
		return
	}
	if math.Abs(v-*want) > 1e-6 {
		p.errorf("%s: %s mismatch: csv %v, db %v", key, col, v, *want)
	}
}
