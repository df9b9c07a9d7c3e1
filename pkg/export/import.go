package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/clinilog/ecmotrend/pkg/schema"
)

// SchemaMismatchError means an uploaded file has none of the core columns
// and cannot be an export of this tool in any revision. The store is left
// unchanged; the caller may retry with a different file.
type SchemaMismatchError struct {
	Header []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("CSV has none of the required columns %s (header: %s)",
		strings.Join(schema.CoreColumns, ", "), strings.Join(e.Header, ", "))
}

// Decode reads an uploaded CSV into raw rows keyed by canonical column
// name. Files from older revisions may lack columns — the normalizer
// backfills those — but a file with none of the core columns
// (RecordedAt, Flow, RPM, DeltaP) is rejected with SchemaMismatchError.
// Column header matching is case-insensitive to tolerate hand-edited files.
func Decode(r io.Reader) ([]schema.RawRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // ragged rows: short rows read as missing cells

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &SchemaMismatchError{}
	}
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}

	// Map header positions to canonical names; unknown columns are dropped.
	canonical := make(map[string]string, len(schema.Current.Columns))
	for _, col := range schema.Current.Columns {
		canonical[strings.ToLower(col)] = col
	}
	cols := make([]string, len(header))
	core := false
	for i, h := range header {
		name := canonical[strings.ToLower(strings.TrimSpace(h))]
		cols[i] = name
		for _, c := range schema.CoreColumns {
			if name == c {
				core = true
			}
		}
	}
	if !core {
		return nil, &SchemaMismatchError{Header: header}
	}

	var rows []schema.RawRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV row %d: %w", len(rows)+2, err)
		}
		row := make(schema.RawRow, len(cols))
		for i, cell := range record {
			if i < len(cols) && cols[i] != "" {
				row[cols[i]] = cell
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
