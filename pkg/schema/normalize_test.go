package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePreservesRowCount(t *testing.T) {
	raw := []RawRow{
		{ColRecordedAt: "2024-01-01T09:00", ColFlow: "4.5"},
		{ColRecordedAt: "garbage", ColFlow: "not a number"},
		{},
	}

	got := Normalize(raw, Current)
	assert.Len(t, got.Rows, 3)
}

func TestNormalizeCreatesMissingColumns(t *testing.T) {
	raw := []RawRow{
		{ColRecordedAt: "2024-01-01T09:00", ColFlow: "4.5", ColRPM: "3200", ColDeltaP: "55"},
	}

	got := Normalize(raw, Current)
	require.Len(t, got.Rows, 1)
	row := got.Rows[0]

	// Hb was never in the file: present but undefined, not zero.
	hb := row.Cell(ColHb)
	assert.False(t, hb.Valid)
	assert.Equal(t, 0.0, hb.Value)

	flow := row.Cell(ColFlow)
	assert.True(t, flow.Valid)
	assert.Equal(t, 4.5, flow.Value)
}

func TestNormalizeCoercionFailureIsPerCell(t *testing.T) {
	raw := []RawRow{
		{ColFlow: "4.5", ColRPM: "high", ColDeltaP: "55"},
		{ColFlow: "oops", ColRPM: "3000", ColDeltaP: "60"},
	}

	got := Normalize(raw, Current)
	assert.True(t, got.Rows[0].Cell(ColFlow).Valid)
	assert.False(t, got.Rows[0].Cell(ColRPM).Valid)
	assert.True(t, got.Rows[0].Cell(ColDeltaP).Valid)
	assert.False(t, got.Rows[1].Cell(ColFlow).Valid)
	assert.True(t, got.Rows[1].Cell(ColRPM).Valid)
}

func TestNormalizeBackfillsSequenceWhenAllMissing(t *testing.T) {
	raw := []RawRow{
		{ColFlow: "4.5"},
		{ColFlow: "4.2"},
		{ColFlow: "4.0"},
	}

	got := Normalize(raw, Current)
	for i, row := range got.Rows {
		seq, ok := row.Seq()
		require.True(t, ok, "row %d should have a backfilled sequence number", i)
		assert.Equal(t, int64(i+1), seq)
	}
}

func TestNormalizeKeepsPartialSequence(t *testing.T) {
	// One valid sequence number means the column is NOT backfilled; the
	// other rows stay undefined.
	raw := []RawRow{
		{ColSeq: "7", ColFlow: "4.5"},
		{ColSeq: "", ColFlow: "4.2"},
	}

	got := Normalize(raw, Current)
	seq, ok := got.Rows[0].Seq()
	require.True(t, ok)
	assert.Equal(t, int64(7), seq)
	_, ok = got.Rows[1].Seq()
	assert.False(t, ok)
}

func TestNormalizeDropsExtraColumns(t *testing.T) {
	raw := []RawRow{
		{ColFlow: "4.5", "Operator": "night shift"},
	}

	got := Normalize(raw, Current)
	_, present := got.Rows[0].Cells["Operator"]
	assert.False(t, present)
}

func TestNormalizeIdempotent(t *testing.T) {
	raw := []RawRow{
		{ColRecordedAt: "2024-01-01T09:00", ColFlow: "4.5", ColRPM: "3200", ColDeltaP: "55", ColHb: "bad"},
		{ColRecordedAt: "2024-01-02T08:30", ColFlow: "4.25", ColRPM: "3150", ColDeltaP: "52", ColHb: "10.8"},
	}

	once := Normalize(raw, Current)
	twice := Normalize(once.Raw(), Current)
	assert.Equal(t, once, twice)
}

func TestNormalizeRejectsNonFinite(t *testing.T) {
	raw := []RawRow{
		{ColFlow: "NaN", ColRPM: "+Inf", ColDeltaP: "-Inf"},
	}

	got := Normalize(raw, Current)
	assert.False(t, got.Rows[0].Cell(ColFlow).Valid)
	assert.False(t, got.Rows[0].Cell(ColRPM).Valid)
	assert.False(t, got.Rows[0].Cell(ColDeltaP).Valid)
}
