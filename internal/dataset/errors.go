package dataset

import (
	"fmt"
	"strings"
)

// ColumnError reports a required column absent from the header
type ColumnError struct {
	Column    string
	Available []string
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("required column %q not found (available: %s)", e.Column, strings.Join(e.Available, ", "))
}

// CellError reports a missing or malformed value in a used column
type CellError struct {
	Line   int // 1-based line in the source, header included
	Column string
	Value  string
	Err    error
}

func (e *CellError) Error() string {
	return fmt.Sprintf("line %d, column %q: invalid value %q: %v", e.Line, e.Column, e.Value, e.Err)
}

func (e *CellError) Unwrap() error {
	return e.Err
}
