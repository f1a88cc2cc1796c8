package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// GeoSphere station historical response. The timestamps array is shared by
// every feature; each parameter's data array is aligned with it.
type stationResponse struct {
	Timestamps []string  `json:"timestamps"`
	Features   []feature `json:"features"`
}

type feature struct {
	Properties featureProperties `json:"properties"`
}

type featureProperties struct {
	Station    json.Number              `json:"station"`
	Parameters map[string]parameterData `json:"parameters"`
}

type parameterData struct {
	Data []*float64 `json:"data"`
}

// ParseStationResponse decodes a GeoSphere station historical payload into
// readings. Timestamps are normalized to UTC. Entries where temperature,
// precipitation, and sunshine are all null are dropped. The result is sorted
// by (station, timestamp) so output is stable regardless of feature order.
func ParseStationResponse(payload []byte) ([]Reading, error) {
	var resp stationResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("parse station response: %w", err)
	}

	timestamps := make([]time.Time, len(resp.Timestamps))
	for i, ts := range resp.Timestamps {
		t, err := parseTimestamp(ts)
		if err != nil {
			return nil, err
		}
		timestamps[i] = t
	}

	var readings []Reading
	for _, feat := range resp.Features {
		sid, err := feat.Properties.Station.Int64()
		if err != nil {
			return nil, fmt.Errorf("parse station id %q: %w", feat.Properties.Station, err)
		}

		tl := parameterSeries(feat.Properties.Parameters, "tl", len(timestamps))
		rr := parameterSeries(feat.Properties.Parameters, "rr", len(timestamps))
		so := parameterSeries(feat.Properties.Parameters, "so", len(timestamps))

		for i, ts := range timestamps {
			if tl[i] == nil && rr[i] == nil && so[i] == nil {
				continue
			}
			readings = append(readings, Reading{
				Station:       int(sid),
				Timestamp:     ts,
				Temperature:   tl[i],
				Precipitation: rr[i],
				Sunshine:      so[i],
			})
		}
	}

	sort.Slice(readings, func(i, j int) bool {
		if readings[i].Station != readings[j].Station {
			return readings[i].Station < readings[j].Station
		}
		return readings[i].Timestamp.Before(readings[j].Timestamp)
	})

	return readings, nil
}

// parameterSeries returns the data array for a parameter, padded with nils to
// the timestamp count. Keys are matched case-insensitively because the API
// returns lower-case keys for upper-case requests.
func parameterSeries(params map[string]parameterData, key string, n int) []*float64 {
	series := make([]*float64, n)

	data, ok := params[key]
	if !ok {
		data, ok = params[strings.ToUpper(key)]
	}
	if !ok {
		return series
	}

	copy(series, data.Data)
	return series
}

// parseTimestamp accepts the API's ISO-8601 timestamps, with or without an
// explicit offset ("2024-04-26T00:00+00:00", "2024-04-26T00:00:00+00:00").
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04-07:00", "2006-01-02T15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q: unrecognized format", s)
}
