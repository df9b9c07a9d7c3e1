// Package trend builds the time-ordered views the analysis layer consumes:
// full trend, daily-first baselines, last-N-days windows, and trailing
// rolling means. Everything here is a pure transformation over a store
// snapshot; the store is never mutated.
package trend

import (
	"math"
	"sort"
	"time"

	"github.com/clinilog/ecmotrend/pkg/schema"
)

// Entry pairs a row with its parsed timestamp.
type Entry struct {
	At  time.Time
	Row schema.Row
}

// Point is one (timestamp, value) sample, the shape handed to charts.
type Point struct {
	At    time.Time `json:"t"`
	Value float64   `json:"v"`
}

// TimeOrdered parses every row's timestamp, drops rows that fail to parse,
// and sorts ascending. The sort is stable: rows sharing a timestamp keep
// their insertion order.
func TimeOrdered(rows []schema.Row) []Entry {
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		at, err := schema.ParseTime(row.RecordedAt)
		if err != nil {
			continue
		}
		entries = append(entries, Entry{At: at, Row: row})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].At.Before(entries[j].At)
	})
	return entries
}

// DailyFirst keeps the earliest entry per calendar date, ordered by date.
// The daily-first value is the day's representative baseline.
func DailyFirst(rows []schema.Row) []Entry {
	ordered := TimeOrdered(rows)
	seen := make(map[string]bool, len(ordered))
	firsts := make([]Entry, 0, len(ordered))
	for _, e := range ordered {
		day := e.At.Format("2006-01-02")
		if seen[day] {
			continue
		}
		seen[day] = true
		firsts = append(firsts, e)
	}
	return firsts
}

// LastNDays filters time-ordered entries to those recorded within n days of
// ref. A zero ref defaults to the latest timestamp present; n <= 0 means no
// filtering.
func LastNDays(rows []schema.Row, n int, ref time.Time) []Entry {
	ordered := TimeOrdered(rows)
	if n <= 0 || len(ordered) == 0 {
		return ordered
	}
	if ref.IsZero() {
		ref = ordered[len(ordered)-1].At
	}
	cutoff := ref.AddDate(0, 0, -n)
	kept := make([]Entry, 0, len(ordered))
	for _, e := range ordered {
		if !e.At.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	return kept
}

// Points extracts the named column from entries, skipping entries whose
// cell is undefined.
func Points(entries []Entry, col string) []Point {
	pts := make([]Point, 0, len(entries))
	for _, e := range entries {
		c := e.Row.Cell(col)
		if !c.Valid {
			continue
		}
		pts = append(pts, Point{At: e.At, Value: c.Value})
	}
	return pts
}

// RollingMean computes a trailing mean: position i averages values
// max(0, i-window+1)..i. Partial windows at the start use however many
// points exist; there is no look-ahead. window < 1 is treated as 1.
func RollingMean(values []float64, window int) []float64 {
	if window < 1 {
		window = 1
	}
	out := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		n := i + 1
		if n > window {
			n = window
		}
		out[i] = sum / float64(n)
	}
	return out
}

// DayIndex returns the 1-based day number spanned by the table: latest
// calendar date minus earliest, plus one, over daily-first entries. Zero
// when no row has a parseable timestamp.
func DayIndex(rows []schema.Row) int {
	firsts := DailyFirst(rows)
	if len(firsts) == 0 {
		return 0
	}
	first := midnight(firsts[0].At)
	last := midnight(firsts[len(firsts)-1].At)
	return int(last.Sub(first).Hours()/24) + 1
}

// PercentChange returns (current-previous)/|previous| * 100. The second
// return is false when previous is zero; the change is undefined then, not
// infinite.
func PercentChange(previous, current float64) (float64, bool) {
	if previous == 0 {
		return 0, false
	}
	return (current - previous) / math.Abs(previous) * 100, true
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
