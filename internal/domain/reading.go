package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Reading is one raw measurement from one station at one timestamp.
// Measures are pointers because the upstream API reports gaps as null.
type Reading struct {
	Station       int       `gorm:"primaryKey" json:"station"`
	Timestamp     time.Time `gorm:"primaryKey" json:"timestamp"`
	Temperature   *float64  `json:"tl,omitempty"` // °C
	Precipitation *float64  `json:"rr,omitempty"` // mm
	Sunshine      *float64  `json:"so,omitempty"` // seconds
}

// DailySummary is the per-station, per-day aggregate of raw readings.
// It is always recomputed from the readings table, never edited directly.
type DailySummary struct {
	Station int      `gorm:"primaryKey" json:"station"`
	Date    Date     `gorm:"primaryKey;type:date" json:"date"`
	TMax    *float64 `gorm:"column:tmax" json:"tmax,omitempty"`
	TMin    *float64 `gorm:"column:tmin" json:"tmin,omitempty"`
	RR      *float64 `gorm:"column:rr" json:"rr,omitempty"`
	SD      *float64 `gorm:"column:sd" json:"sd,omitempty"`
}

// Station holds the metadata loaded from the stations CSV.
type Station struct {
	ID      int
	Name    string
	State   string
	ValidTo Date
}

// Active reports whether the station should still be collected on the given day.
func (s Station) Active(today Date) bool {
	return !s.ValidTo.Before(today.Time)
}

// Date is a calendar day that marshals as YYYY-MM-DD in JSON and CSV and
// scans to/from a SQL date column.
type Date struct {
	time.Time
}

// NewDate builds a Date at midnight UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its UTC calendar day.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, m, d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format("2006-01-02")
}

// AddDays returns the date n days later (n may be negative).
func (d Date) AddDays(n int) Date {
	return Date{d.Time.AddDate(0, 0, n)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer so a Date can be written to a date column.
func (d Date) Value() (driver.Value, error) {
	return d.Time, nil
}

// Scan implements sql.Scanner. Accepts time.Time and YYYY-MM-DD strings,
// which covers both the Postgres and SQLite drivers.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = DateOf(v)
		return nil
	case string:
		parsed, err := ParseDate(v[:min(len(v), 10)])
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		return d.Scan(string(v))
	case nil:
		*d = Date{}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}
