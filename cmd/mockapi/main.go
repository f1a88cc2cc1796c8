// Command mockapi serves a local stand-in for the GeoSphere Dataset API so
// the pipeline can be exercised without network access or API quota. It
// answers station/historical requests with deterministic synthetic 10-minute
// data: the same station and date always produce the same values.
//
// Usage:
//
//	go run ./cmd/mockapi -addr :9090
//	GEOSPHERE_BASE_URL=http://localhost:9090/v1 go run ./cmd/collect -start 2024-04-01 -end 2024-04-07
package main

import (
	"encoding/json"
	"flag"
	"log/slog"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/wetterarena/internal/domain"
)

func main() {
	addr := flag.String("addr", ":9090", "listen address")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/station/historical/", func(w http.ResponseWriter, r *http.Request) {
		handleHistorical(w, r, logger)
	})

	logger.Info("mock geosphere api listening", "addr", *addr)
	if err := http.ListenAndServe(*addr, mux); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

type response struct {
	Timestamps []string  `json:"timestamps"`
	Features   []feature `json:"features"`
}

type feature struct {
	Properties properties `json:"properties"`
}

type properties struct {
	Station    string                     `json:"station"`
	Parameters map[string]parameterSeries `json:"parameters"`
}

type parameterSeries struct {
	Data []*float64 `json:"data"`
}

func handleHistorical(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	q := r.URL.Query()
	start, err := domain.ParseDate(q.Get("start"))
	if err != nil {
		http.Error(w, "bad start: "+err.Error(), http.StatusBadRequest)
		return
	}
	end, err := domain.ParseDate(q.Get("end"))
	if err != nil {
		http.Error(w, "bad end: "+err.Error(), http.StatusBadRequest)
		return
	}
	if end.Before(start.Time) {
		http.Error(w, "end before start", http.StatusBadRequest)
		return
	}

	var stationIDs []int
	for _, s := range strings.Split(q.Get("station_ids"), ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		id, err := strconv.Atoi(s)
		if err != nil {
			http.Error(w, "bad station id: "+s, http.StatusBadRequest)
			return
		}
		stationIDs = append(stationIDs, id)
	}

	resp := synthesize(start, end, stationIDs)
	logger.Info("serving synthetic data",
		"start", start.String(), "end", end.String(),
		"stations", len(stationIDs), "timestamps", len(resp.Timestamps))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp) //nolint:errcheck
}

// synthesize builds a full 10-minute grid for the range with smooth,
// station-dependent values. Sunshine is nil outside 06:00..18:00 to mimic
// the sensor reporting nothing at night.
func synthesize(start, end domain.Date, stationIDs []int) response {
	var timestamps []time.Time
	for d := start; !d.After(end.Time); d = d.AddDays(1) {
		day := d.Time
		for m := 0; m < 24*60; m += 10 {
			timestamps = append(timestamps, day.Add(time.Duration(m)*time.Minute))
		}
	}

	resp := response{Timestamps: make([]string, len(timestamps))}
	for i, ts := range timestamps {
		resp.Timestamps[i] = ts.Format("2006-01-02T15:04-07:00")
	}

	for _, id := range stationIDs {
		tl := make([]*float64, len(timestamps))
		rr := make([]*float64, len(timestamps))
		so := make([]*float64, len(timestamps))
		for i, ts := range timestamps {
			hour := float64(ts.Hour()) + float64(ts.Minute())/60
			// Diurnal temperature curve offset by station id.
			temp := round1(10 + float64(id%10) + 8*math.Sin((hour-9)*math.Pi/12))
			tl[i] = &temp

			// Rain every sixth day for a given station, 0.1 mm per interval.
			if (ts.YearDay()+id)%6 == 0 {
				v := 0.1
				rr[i] = &v
			} else {
				zero := 0.0
				rr[i] = &zero
			}

			if hour >= 6 && hour < 18 {
				sun := round1(600 * math.Sin((hour-6)*math.Pi/12) / 100)
				so[i] = &sun
			}
		}
		resp.Features = append(resp.Features, feature{
			Properties: properties{
				Station: strconv.Itoa(id),
				Parameters: map[string]parameterSeries{
					"TL": {Data: tl},
					"RR": {Data: rr},
					"SO": {Data: so},
				},
			},
		})
	}
	return resp
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
