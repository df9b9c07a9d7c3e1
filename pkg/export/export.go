package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/clinilog/ecmotrend/pkg/schema"
)

// Encode writes the table as CSV: a header row of the version's canonical
// columns, then one record per row. Timestamps are written in the canonical
// minute-precision form; undefined cells become empty cells.
func Encode(w io.Writer, v schema.Version, rows []schema.Row) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(v.Columns); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}

	record := make([]string, len(v.Columns))
	for i, row := range rows {
		for j, col := range v.Columns {
			if col == schema.ColRecordedAt {
				record[j] = row.RecordedAt
				continue
			}
			record[j] = row.Cell(col).String()
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write CSV row %d: %w", i+1, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
