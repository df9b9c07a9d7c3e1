// Package export encodes the observation table to CSV and decodes uploaded
// CSV files back into raw rows for restore.
//
// CSV is the only durability mechanism the tool has: the in-memory table is
// session-scoped, and the operator downloads an export at end of shift and
// restores it at the next session. Decoding therefore tolerates files from
// any schema revision — missing columns are upgraded by the normalizer —
// and only rejects files that carry none of the core columns at all.
package export
