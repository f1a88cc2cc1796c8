// Package stations loads station metadata from the stations CSV that ships
// alongside the pipeline. The file uses GeoSphere's German column headers:
// id, Stationsname, Bundesland, Enddatum.
package stations

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/wetterarena/internal/domain"
)

// Load reads station metadata from the given CSV file. Rows with an
// unparseable id or Enddatum are skipped, matching upstream exports that
// carry placeholder rows.
func Load(path string) ([]domain.Station, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open stations csv: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads station metadata from CSV content.
func Parse(r io.Reader) ([]domain.Station, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read stations header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"id", "Enddatum"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("stations csv missing column %q", required)
		}
	}

	var out []domain.Station
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read stations row: %w", err)
		}

		id, err := strconv.Atoi(strings.TrimSpace(field(row, col, "id")))
		if err != nil {
			continue
		}

		// Enddatum arrives as a full timestamp, e.g. "2100-12-31T00:00:00+00:00";
		// only the date part matters.
		end := field(row, col, "Enddatum")
		if len(end) > 10 {
			end = end[:10]
		}
		validTo, err := domain.ParseDate(end)
		if err != nil {
			continue
		}

		out = append(out, domain.Station{
			ID:      id,
			Name:    strings.TrimSpace(field(row, col, "Stationsname")),
			State:   strings.TrimSpace(field(row, col, "Bundesland")),
			ValidTo: validTo,
		})
	}

	return out, nil
}

// ActiveIDs returns the ids of stations still valid on the given day,
// in file order.
func ActiveIDs(all []domain.Station, today domain.Date) []int {
	var ids []int
	for _, s := range all {
		if s.Active(today) {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// ByID indexes stations by id for name/state lookups during rendering.
func ByID(all []domain.Station) map[int]domain.Station {
	m := make(map[int]domain.Station, len(all))
	for _, s := range all {
		m[s.ID] = s
	}
	return m
}

func field(row []string, col map[string]int, name string) string {
	i, ok := col[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}
