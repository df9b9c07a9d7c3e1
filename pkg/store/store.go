// Package store holds the session-scoped observation table.
//
// The table lives in memory for the lifetime of the session; CSV
// export/restore (driven by the caller) is the only durability mechanism.
// Every mutation re-normalizes and recomputes derived columns, so the table
// is internally consistent after each operation, and no operation ever
// leaves it partially updated.
package store

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/clinilog/ecmotrend/pkg/derive"
	"github.com/clinilog/ecmotrend/pkg/schema"
)

// Store is the in-memory record table. It owns the monotonic sequence
// number assignment; rows keep insertion order, and any time ordering is
// computed on demand by the trend package, never stored.
type Store struct {
	mu      sync.RWMutex
	version schema.Version
	rows    []schema.Row
}

// New creates an empty store for one session.
func New(v schema.Version) *Store {
	return &Store{version: v}
}

// Version returns the active schema version.
func (s *Store) Version() schema.Version { return s.version }

// AddInput carries the base fields of one new observation. Hb and
// GlucoseMmol are optional; whether Hb may be omitted depends on the active
// schema version.
type AddInput struct {
	RecordedAt  time.Time
	Flow        float64
	RPM         float64
	DeltaP      float64
	Hb          *float64
	GlucoseMmol *float64
}

// Add validates the input, assigns the next sequence number, computes the
// derived columns, and appends the row. Returns the new sequence number.
func (s *Store) Add(in AddInput) (int64, error) {
	if in.Flow <= 0 {
		return 0, &ValidationError{Field: schema.ColFlow, Reason: "must be greater than zero"}
	}
	if s.version.RequireHb && (in.Hb == nil || *in.Hb <= 0) {
		return 0, &ValidationError{Field: schema.ColHb, Reason: "must be greater than zero"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.nextSeq()
	cells := map[string]schema.Cell{
		schema.ColSeq:    schema.Num(float64(seq)),
		schema.ColFlow:   schema.Num(in.Flow),
		schema.ColRPM:    schema.Num(in.RPM),
		schema.ColDeltaP: schema.Num(in.DeltaP),
	}
	if s.version.Has(schema.ColHb) && in.Hb != nil {
		cells[schema.ColHb] = schema.Num(*in.Hb)
	}
	if s.version.Has(schema.ColGlucoseMmol) && in.GlucoseMmol != nil {
		cells[schema.ColGlucoseMmol] = schema.Num(*in.GlucoseMmol)
	}

	row := schema.Row{
		RecordedAt: schema.FormatTime(in.RecordedAt),
		Cells:      cells,
	}
	s.rows = append(s.rows, derive.Recompute(row, s.version))
	return seq, nil
}

// ApplyEdits replaces the table with the caller-supplied full table, the
// contract behind the editable grid. The edit is atomic: every timestamp
// must parse and every row must pass base-field validation, or the store
// is left exactly as it was.
func (s *Store) ApplyEdits(raw []schema.RawRow) error {
	// Work on a copy; the canonicalized timestamps must not leak into the
	// caller's rows if a later row rejects the edit.
	edited := make([]schema.RawRow, len(raw))
	for i, in := range raw {
		ts, err := schema.ParseTime(in[schema.ColRecordedAt])
		if err != nil {
			return &ParseError{Row: i + 1, Value: in[schema.ColRecordedAt]}
		}
		m := make(schema.RawRow, len(in))
		for k, v := range in {
			m[k] = v
		}
		m[schema.ColRecordedAt] = schema.FormatTime(ts)
		edited[i] = m
	}

	t := schema.Normalize(edited, s.version)
	for i, row := range t.Rows {
		if err := s.validateRow(row, i+1); err != nil {
			return err
		}
	}
	t = derive.Table(t)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = t.Rows
	return nil
}

// Restore replaces the table from a decoded CSV. Unlike ApplyEdits it does
// not enforce Flow > 0 per row: legacy exports are accepted as-is, and rows
// whose derived cells cannot be computed simply keep them undefined.
func (s *Store) Restore(raw []schema.RawRow) {
	canonical := make([]schema.RawRow, len(raw))
	for i, in := range raw {
		m := make(schema.RawRow, len(in))
		for k, v := range in {
			m[k] = v
		}
		if ts, err := schema.ParseTime(in[schema.ColRecordedAt]); err == nil {
			m[schema.ColRecordedAt] = schema.FormatTime(ts)
		}
		canonical[i] = m
	}

	t := derive.Table(schema.Normalize(canonical, s.version))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = t.Rows
}

// Delete removes the row with the given sequence number.
func (s *Store) Delete(seq int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, row := range s.rows {
		if n, ok := row.Seq(); ok && n == seq {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			return nil
		}
	}
	return &NotFoundError{Seq: seq}
}

// DeleteLast removes the most recently inserted row. No-op on an empty
// table.
func (s *Store) DeleteLast() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.rows) > 0 {
		s.rows = s.rows[:len(s.rows)-1]
	}
}

// Clear empties the table. Confirmation is the caller's responsibility.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = nil
}

// Len returns the current row count.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// Snapshot returns a deep copy of the table in insertion order. Aggregation
// and rendering work from snapshots and never mutate the store.
func (s *Store) Snapshot() []schema.Row {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]schema.Row, len(s.rows))
	for i, row := range s.rows {
		rows[i] = row.Clone()
	}
	return rows
}

// Fingerprint hashes the table contents. Two stores with identical contents
// produce the same fingerprint; the live feed uses it to suppress no-change
// broadcasts.
func (s *Store) Fingerprint() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := xxhash.New()
	for _, row := range s.rows {
		d.WriteString(row.RecordedAt)
		d.WriteString("\x1f")
		for _, col := range s.version.NumericColumns() {
			d.WriteString(row.Cell(col).String())
			d.WriteString("\x1f")
		}
		d.WriteString("\x1e")
	}
	return d.Sum64()
}

func (s *Store) validateRow(row schema.Row, n int) error {
	flow := row.Cell(schema.ColFlow)
	if !flow.Valid || flow.Value <= 0 {
		return &ValidationError{Field: schema.ColFlow, Row: n, Reason: "must be greater than zero"}
	}
	if s.version.RequireHb {
		hb := row.Cell(schema.ColHb)
		if !hb.Valid || hb.Value <= 0 {
			return &ValidationError{Field: schema.ColHb, Row: n, Reason: "must be greater than zero"}
		}
	}
	return nil
}

// nextSeq computes the next sequence number: one past the maximum valid
// sequence number present, 1 for a table with none.
func (s *Store) nextSeq() int64 {
	var max int64
	for _, row := range s.rows {
		if n, ok := row.Seq(); ok && n > max {
			max = n
		}
	}
	return max + 1
}
