// Package site renders the static output artifacts: the last-N-days CSV and
// the HTML page that presents it.
package site

import (
	"bytes"
	"embed"
	"encoding/csv"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/wetterarena/internal/domain"
)

//go:embed templates
var templatesFS embed.FS

// CSVName is the file name of the exported summary CSV inside the site
// directory. The HTML page references it by this name.
const CSVName = "last7.csv"

// HTMLName is the file name of the rendered page.
const HTMLName = "index.html"

var csvHeader = []string{"station", "date", "tmax", "tmin", "rr", "sd"}

// Renderer produces the output directory contents from daily summaries.
// Output is deterministic: the same summaries yield byte-identical files.
type Renderer struct {
	tmpl     *template.Template
	stations map[int]domain.Station
}

// NewRenderer parses the embedded page template. The station index supplies
// display names; unknown stations render with an empty name.
func NewRenderer(stationIndex map[int]domain.Station) (*Renderer, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse site templates: %w", err)
	}
	return &Renderer{tmpl: tmpl, stations: stationIndex}, nil
}

// WriteDir writes the CSV and HTML artifacts into dir, creating it if needed.
// Files are replaced wholesale; there is no partial update.
func (r *Renderer) WriteDir(dir string, summaries []domain.DailySummary) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create site dir: %w", err)
	}

	var csvBuf bytes.Buffer
	if err := r.WriteCSV(&csvBuf, summaries); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, CSVName), csvBuf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", CSVName, err)
	}

	var htmlBuf bytes.Buffer
	if err := r.WriteHTML(&htmlBuf, summaries); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, HTMLName), htmlBuf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", HTMLName, err)
	}

	return nil
}

// WriteCSV emits the summary rows in their given order with the fixed header
// station,date,tmax,tmin,rr,sd. Missing measures are empty fields.
func (r *Renderer) WriteCSV(w io.Writer, summaries []domain.DailySummary) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, s := range summaries {
		row := []string{
			strconv.Itoa(s.Station),
			s.Date.String(),
			formatMeasure(s.TMax),
			formatMeasure(s.TMin),
			formatMeasure(s.RR),
			formatMeasure(s.SD),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteHTML renders the page: one table section per day, newest first.
func (r *Renderer) WriteHTML(w io.Writer, summaries []domain.DailySummary) error {
	data := buildPageData(summaries, r.stations)
	if err := r.tmpl.ExecuteTemplate(w, "index.html", data); err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	return nil
}

type pageData struct {
	Days    []dayGroup
	CSVName string
	From    string
	To      string
}

type dayGroup struct {
	Date string
	Rows []rowView
}

type rowView struct {
	Station int
	Name    string
	State   string
	TMax    string
	TMin    string
	RR      string
	SD      string
}

// buildPageData groups summaries by day, newest day first. Within a day the
// incoming station order (ascending) is preserved.
func buildPageData(summaries []domain.DailySummary, stationIndex map[int]domain.Station) pageData {
	data := pageData{CSVName: CSVName}
	if len(summaries) == 0 {
		return data
	}

	data.From = summaries[0].Date.String()
	data.To = summaries[len(summaries)-1].Date.String()

	byDay := make(map[string][]rowView)
	var order []string
	for _, s := range summaries {
		key := s.Date.String()
		if _, seen := byDay[key]; !seen {
			order = append(order, key)
		}

		meta := stationIndex[s.Station]
		byDay[key] = append(byDay[key], rowView{
			Station: s.Station,
			Name:    meta.Name,
			State:   meta.State,
			TMax:    formatMeasure(s.TMax),
			TMin:    formatMeasure(s.TMin),
			RR:      formatMeasure(s.RR),
			SD:      formatMeasure(s.SD),
		})
	}

	for i := len(order) - 1; i >= 0; i-- {
		data.Days = append(data.Days, dayGroup{Date: order[i], Rows: byDay[order[i]]})
	}
	return data
}

// formatMeasure renders a nullable measure with the shortest exact decimal
// representation, keeping output stable across runs.
func formatMeasure(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
