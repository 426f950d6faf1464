package notation

import (
	"errors"
	"fmt"
)

// ErrEmptyInput is matched by errors.Is for any *EmptyInputError.
var ErrEmptyInput = errors.New("notation: empty input")

// ErrNoSteps is returned when the text has a header but no data rows.
var ErrNoSteps = errors.New("notation: no data rows")

// EmptyInputError reports that the notation text was blank.
type EmptyInputError struct {
	Source string
}

func (e *EmptyInputError) Error() string {
	if e.Source == "" {
		return ErrEmptyInput.Error()
	}
	return fmt.Sprintf("%s (%s)", ErrEmptyInput.Error(), e.Source)
}

func (e *EmptyInputError) Is(target error) bool {
	return target == ErrEmptyInput
}

// Diagnostic describes a cell that was skipped while parsing. Diagnostics
// never fail a parse.
type Diagnostic struct {
	Row     int    `json:"row"`
	Column  int    `json:"column"`
	Text    string `json:"text"`
	Message string `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("row %d col %d %q: %s", d.Row, d.Column, d.Text, d.Message)
}

type diagnostics []Diagnostic

func (d *diagnostics) add(row, col int, text, msg string) {
	*d = append(*d, Diagnostic{Row: row, Column: col, Text: text, Message: msg})
}
