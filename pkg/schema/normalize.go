package schema

// Normalize upgrades arbitrary tabular input to the canonical column set of
// the given version.
//
// Rules:
//   - Absent canonical columns are created undefined for every row; extra
//     input columns are dropped.
//   - Numeric cells are coerced per cell; a cell that fails coercion becomes
//     undefined, the rest of the table is unaffected.
//   - If every row's sequence number is undefined after coercion, the whole
//     column is backfilled 1..N in input order. This recovers exports from
//     revisions that predate the sequence column.
//
// Row count is always preserved and the operation is idempotent:
// Normalize(t.Raw()) reproduces t.
func Normalize(raw []RawRow, v Version) Table {
	rows := make([]Row, len(raw))
	anySeq := false

	for i, in := range raw {
		cells := make(map[string]Cell, len(v.Columns)-1)
		row := Row{Cells: cells}
		for _, col := range v.Columns {
			if col == ColRecordedAt {
				row.RecordedAt = in[col]
				continue
			}
			cells[col] = ParseCell(in[col])
		}
		if cells[ColSeq].Valid {
			anySeq = true
		}
		rows[i] = row
	}

	if !anySeq {
		for i := range rows {
			rows[i].Cells[ColSeq] = Num(float64(i + 1))
		}
	}

	return Table{Version: v, Rows: rows}
}
