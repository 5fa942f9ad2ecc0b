// Package interval models billed time as half-open intervals [start, stop).
//
// Timestamps are timezone-naive: the wall clock reading is kept and labelled
// UTC, truncated to the second.
package interval

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Layout is the canonical naive timestamp layout used on the wire.
const Layout = "2006-01-02T15:04:05"

var parseLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

type Interval struct {
	Start time.Time
	Stop  time.Time
}

type wireInterval struct {
	Start string `json:"start"`
	Stop  string `json:"stop"`
}

// InvalidIntervalError is returned when stop is before start.
type InvalidIntervalError struct {
	Start time.Time
	Stop  time.Time
}

func (e *InvalidIntervalError) Error() string {
	return fmt.Sprintf("invalid interval: stop %s is before start %s", Format(e.Stop), Format(e.Start))
}

// New builds a normalized interval. start == stop is allowed and yields an
// empty interval which overlaps nothing.
func New(start, stop time.Time) (Interval, error) {
	iv := Interval{Start: Naive(start), Stop: Naive(stop)}
	if iv.Stop.Before(iv.Start) {
		return Interval{}, &InvalidIntervalError{Start: iv.Start, Stop: iv.Stop}
	}
	return iv, nil
}

// Overlaps reports whether a and b share at least one instant.
// Adjacent intervals (a.Stop == b.Start) do not overlap, and an empty
// interval overlaps nothing.
func (a Interval) Overlaps(b Interval) bool {
	if a.Empty() || b.Empty() {
		return false
	}
	return a.Start.Before(b.Stop) && b.Start.Before(a.Stop)
}

func (a Interval) Empty() bool {
	return !a.Start.Before(a.Stop)
}

func (a Interval) Duration() time.Duration {
	return a.Stop.Sub(a.Start)
}

// Hours is the duration in hours rounded to two decimals.
func (a Interval) Hours() float64 {
	return RoundHours(a.Duration().Hours())
}

func (a Interval) String() string {
	return fmt.Sprintf("[%s, %s)", Format(a.Start), Format(a.Stop))
}

func (a Interval) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireInterval{Start: Format(a.Start), Stop: Format(a.Stop)})
}

func (a *Interval) UnmarshalJSON(data []byte) error {
	var w wireInterval
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	start, err := Parse(w.Start)
	if err != nil {
		return err
	}
	stop, err := Parse(w.Stop)
	if err != nil {
		return err
	}
	iv, err := New(start, stop)
	if err != nil {
		return err
	}
	*a = iv
	return nil
}

func RoundHours(h float64) float64 {
	return math.Round(h*100) / 100
}

// Naive drops the location of t, keeping its wall clock, at second granularity.
func Naive(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// Parse reads a naive timestamp. An offset, if present, is ignored after
// reading the wall clock.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Naive(t), nil
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return Naive(t), nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q, expected YYYY-MM-DD HH:MM:SS", s)
}

func Format(t time.Time) string {
	return t.Format(Layout)
}
