package schema

import (
	"math"
	"strconv"
	"strings"
)

// Cell is one numeric table cell: either a defined value or explicitly
// undefined. Undefined is a normal state (legacy exports, division by zero),
// never conflated with zero or a sentinel.
type Cell struct {
	Valid bool
	Value float64
}

// Num returns a defined cell.
func Num(v float64) Cell { return Cell{Valid: true, Value: v} }

// Undefined is the absent-value cell.
var Undefined = Cell{}

// String formats the cell for display and CSV export. Undefined cells
// render as the empty string.
func (c Cell) String() string {
	if !c.Valid {
		return ""
	}
	return strconv.FormatFloat(c.Value, 'f', -1, 64)
}

// ParseCell coerces raw text to a cell. Anything that does not parse as a
// finite number is undefined; coercion never fails loudly.
func ParseCell(s string) Cell {
	s = strings.TrimSpace(s)
	if s == "" {
		return Undefined
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return Undefined
	}
	return Num(v)
}

// RawRow is one row of untyped tabular input: column name to cell text, as
// decoded from a CSV file or an edit grid.
type RawRow map[string]string

// Row is one normalized observation. The timestamp is carried as text and
// parsed on demand; all other canonical columns are numeric cells.
type Row struct {
	RecordedAt string
	Cells      map[string]Cell
}

// Cell returns the named numeric cell, undefined when absent.
func (r Row) Cell(col string) Cell {
	return r.Cells[col]
}

// Seq returns the row's sequence number when it has a valid one.
func (r Row) Seq() (int64, bool) {
	c := r.Cells[ColSeq]
	if !c.Valid {
		return 0, false
	}
	return int64(c.Value), true
}

// Clone returns a deep copy, so callers can hand rows out without aliasing
// the store's cell maps.
func (r Row) Clone() Row {
	cells := make(map[string]Cell, len(r.Cells))
	for k, v := range r.Cells {
		cells[k] = v
	}
	return Row{RecordedAt: r.RecordedAt, Cells: cells}
}

// Table is an ordered set of normalized rows under one schema version.
type Table struct {
	Version Version
	Rows    []Row
}

// Raw converts the table back to untyped rows in canonical column order,
// the form edit grids and the CSV encoder consume.
func (t Table) Raw() []RawRow {
	raw := make([]RawRow, len(t.Rows))
	for i, row := range t.Rows {
		m := make(RawRow, len(t.Version.Columns))
		for _, col := range t.Version.Columns {
			if col == ColRecordedAt {
				m[col] = row.RecordedAt
				continue
			}
			m[col] = row.Cell(col).String()
		}
		raw[i] = m
	}
	return raw
}
