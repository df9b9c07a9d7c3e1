package store

import "fmt"

// ValidationError reports a base-field constraint violation on data entry
// or table edit. The store is left unchanged when one is returned.
type ValidationError struct {
	Field  string
	Row    int // 1-based row in the submitted table, 0 for single-record entry
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("row %d: %s %s", e.Row, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// ParseError reports an unparseable timestamp cell in a bulk edit. A single
// bad cell rejects the whole edit; nothing is partially applied.
type ParseError struct {
	Row   int // 1-based
	Value string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("row %d: cannot parse timestamp %q", e.Row, e.Value)
}

// NotFoundError reports a delete of a sequence number not in the table.
type NotFoundError struct {
	Seq int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no record with sequence number %d", e.Seq)
}
