package derive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinilog/ecmotrend/pkg/schema"
)

const tol = 1e-9

func baseRow(flow, rpm, deltaP, hb float64) schema.Row {
	return schema.Row{
		RecordedAt: "2024-01-01T09:00",
		Cells: map[string]schema.Cell{
			schema.ColSeq:    schema.Num(1),
			schema.ColFlow:   schema.Num(flow),
			schema.ColRPM:    schema.Num(rpm),
			schema.ColDeltaP: schema.Num(deltaP),
			schema.ColHb:     schema.Num(hb),
		},
	}
}

func TestRecomputeRatios(t *testing.T) {
	got := Recompute(baseRow(4.5, 3200, 55, 10.8), schema.Current)

	r := got.Cell(schema.ColR)
	require.True(t, r.Valid)
	assert.InDelta(t, 55.0/4.5, r.Value, tol) // 12.222...

	rpmPerFlow := got.Cell(schema.ColRPMPerFlow)
	require.True(t, rpmPerFlow.Valid)
	assert.InDelta(t, 3200.0/4.5, rpmPerFlow.Value, tol) // 711.111...

	rPerHb := got.Cell(schema.ColRPerHb)
	require.True(t, rPerHb.Valid)
	assert.InDelta(t, 55.0/4.5/10.8, rPerHb.Value, tol)
}

func TestRecomputeZeroFlowIsUndefined(t *testing.T) {
	got := Recompute(baseRow(0, 3200, 55, 10.8), schema.Current)

	assert.False(t, got.Cell(schema.ColR).Valid)
	assert.False(t, got.Cell(schema.ColRPMPerFlow).Valid)
	// R undefined propagates into RperHb even though Hb is fine.
	assert.False(t, got.Cell(schema.ColRPerHb).Valid)
}

func TestRecomputeUndefinedPropagation(t *testing.T) {
	row := baseRow(4.5, 3200, 55, 10.8)
	row.Cells[schema.ColHb] = schema.Undefined

	got := Recompute(row, schema.Current)
	assert.True(t, got.Cell(schema.ColR).Valid)
	assert.False(t, got.Cell(schema.ColRPerHb).Valid)

	row.Cells[schema.ColDeltaP] = schema.Undefined
	got = Recompute(row, schema.Current)
	assert.False(t, got.Cell(schema.ColR).Valid)
	assert.True(t, got.Cell(schema.ColRPMPerFlow).Valid)
}

func TestRecomputeGlucoseConversion(t *testing.T) {
	row := baseRow(4.5, 3200, 55, 10.8)
	row.Cells[schema.ColGlucoseMmol] = schema.Num(5.5)

	got := Recompute(row, schema.Current)
	mgdl := got.Cell(schema.ColGlucoseMgdl)
	require.True(t, mgdl.Valid)
	assert.InDelta(t, 99.0, mgdl.Value, tol)

	row.Cells[schema.ColGlucoseMmol] = schema.Undefined
	got = Recompute(row, schema.Current)
	assert.False(t, got.Cell(schema.ColGlucoseMgdl).Valid)
}

func TestRecomputeIdempotent(t *testing.T) {
	row := baseRow(4.5, 3200, 55, 10.8)
	once := Recompute(row, schema.Current)
	twice := Recompute(once, schema.Current)
	assert.Equal(t, once, twice)
}

func TestRecomputeOverwritesStaleDerived(t *testing.T) {
	// A derived cell is never independently edited: whatever value came in,
	// recomputation replaces it from the base fields.
	row := baseRow(4.5, 3200, 55, 10.8)
	row.Cells[schema.ColR] = schema.Num(999)

	got := Recompute(row, schema.Current)
	assert.InDelta(t, 55.0/4.5, got.Cell(schema.ColR).Value, tol)
}

func TestRecomputeDoesNotMutateInput(t *testing.T) {
	row := baseRow(4.5, 3200, 55, 10.8)
	_ = Recompute(row, schema.Current)
	_, present := row.Cells[schema.ColR]
	assert.False(t, present)
}

func TestTableMapsEveryRow(t *testing.T) {
	in := schema.Table{
		Version: schema.Current,
		Rows:    []schema.Row{baseRow(4.5, 3200, 55, 10.8), baseRow(4.0, 3000, 48, 9.9)},
	}

	got := Table(in)
	require.Len(t, got.Rows, 2)
	assert.InDelta(t, 55.0/4.5, got.Rows[0].Cell(schema.ColR).Value, tol)
	assert.InDelta(t, 48.0/4.0, got.Rows[1].Cell(schema.ColR).Value, tol)
}
