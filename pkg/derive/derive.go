// Package derive recomputes the dependent columns of an observation row.
//
// Every derived column is a pure function of base columns and is never
// edited independently: whenever a base field changes, the whole row is
// recomputed. Recompute is per-row, order-independent across rows, and
// idempotent, so applying it over an entire table is just a map.
package derive

import "github.com/clinilog/ecmotrend/pkg/schema"

// MgdlPerMmol converts blood glucose from mmol/L to mg/dL.
const MgdlPerMmol = 18.0

// Recompute returns a copy of the row with all derived cells recomputed
// from its base cells, in the fixed dependency order:
//
//	GlucoseMgdl = GlucoseMmol * 18
//	R           = DeltaP / Flow        (Flow > 0)
//	RPMperFlow  = RPM / Flow           (Flow > 0)
//	RperHb      = R / Hb               (R defined, Hb > 0)
//
// An undefined input makes the dependent cell undefined; division by zero
// is an undefined result, never an error.
func Recompute(row schema.Row, v schema.Version) schema.Row {
	out := row.Clone()

	if v.Has(schema.ColGlucoseMgdl) {
		out.Cells[schema.ColGlucoseMgdl] = scale(out.Cell(schema.ColGlucoseMmol), MgdlPerMmol)
	}

	flow := out.Cell(schema.ColFlow)
	flowOK := flow.Valid && flow.Value > 0

	r := schema.Undefined
	if dp := out.Cell(schema.ColDeltaP); flowOK && dp.Valid {
		r = schema.Num(dp.Value / flow.Value)
	}
	out.Cells[schema.ColR] = r

	rpmPerFlow := schema.Undefined
	if rpm := out.Cell(schema.ColRPM); flowOK && rpm.Valid {
		rpmPerFlow = schema.Num(rpm.Value / flow.Value)
	}
	out.Cells[schema.ColRPMPerFlow] = rpmPerFlow

	if v.Has(schema.ColRPerHb) {
		rPerHb := schema.Undefined
		if hb := out.Cell(schema.ColHb); r.Valid && hb.Valid && hb.Value > 0 {
			rPerHb = schema.Num(r.Value / hb.Value)
		}
		out.Cells[schema.ColRPerHb] = rPerHb
	}

	return out
}

// Table recomputes every row of a normalized table.
func Table(t schema.Table) schema.Table {
	rows := make([]schema.Row, len(t.Rows))
	for i, row := range t.Rows {
		rows[i] = Recompute(row, t.Version)
	}
	return schema.Table{Version: t.Version, Rows: rows}
}

func scale(c schema.Cell, factor float64) schema.Cell {
	if !c.Valid {
		return schema.Undefined
	}
	return schema.Num(c.Value * factor)
}
