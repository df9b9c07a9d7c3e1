package schema

import (
	"fmt"
	"strings"
	"time"
)

// Timestamp layouts. Storage and CSV export use the T form at minute
// precision; edit grids display and accept the space form. Second-precision
// variants are tolerated on input for hand-edited files.
const (
	TimeLayout        = "2006-01-02T15:04"
	DisplayTimeLayout = "2006-01-02 15:04"
)

var inputLayouts = []string{
	TimeLayout,
	DisplayTimeLayout,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTime parses a recorded-at cell in any accepted layout.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range inputLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q (want %s)", s, DisplayTimeLayout)
}

// FormatTime renders the canonical storage/export form.
func FormatTime(t time.Time) string { return t.Format(TimeLayout) }

// FormatDisplayTime renders the edit-grid form.
func FormatDisplayTime(t time.Time) string { return t.Format(DisplayTimeLayout) }
