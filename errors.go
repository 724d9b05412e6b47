package csvtogeo

import (
	"fmt"
	"strings"
)

// Violation is a single problem found in a key file.
type Violation struct {
	Line    int    // Key file line (1-based), 0 when the problem is not tied to a line
	Column  string // Spreadsheet column letter ("A", "B", ...), empty when not tied to a cell
	Key     string // Header key or column-section row label
	Header  string // CSV header of the affected column, if known
	Message string
}

func (v Violation) String() string {
	var loc []string
	if v.Line > 0 {
		loc = append(loc, fmt.Sprintf("line %d", v.Line))
	}
	if v.Column != "" {
		col := "column " + v.Column
		if v.Header != "" {
			col += fmt.Sprintf(" (%q)", v.Header)
		}
		loc = append(loc, col)
	} else if v.Header != "" {
		loc = append(loc, fmt.Sprintf("column %q", v.Header))
	}
	if v.Key != "" {
		loc = append(loc, v.Key)
	}
	if len(loc) == 0 {
		return v.Message
	}
	return strings.Join(loc, ", ") + ": " + v.Message
}

// SchemaError reports every violation found while building a Schema.
type SchemaError struct {
	Violations []Violation
}

func (e *SchemaError) Error() string {
	if len(e.Violations) == 1 {
		return "csvtogeo: invalid key file: " + e.Violations[0].String()
	}
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return fmt.Sprintf("csvtogeo: invalid key file (%d problems): %s", len(e.Violations), strings.Join(parts, "; "))
}

func (e *SchemaError) add(v Violation) {
	e.Violations = append(e.Violations, v)
}

func (e *SchemaError) addf(line int, column, key, format string, args ...any) {
	e.add(Violation{Line: line, Column: column, Key: key, Message: fmt.Sprintf(format, args...)})
}

// err returns e as an error, or nil when nothing was recorded.
func (e *SchemaError) err() error {
	if len(e.Violations) == 0 {
		return nil
	}
	return e
}

// errorText returns an error message without the package prefix.
func errorText(err error) string {
	return strings.TrimPrefix(err.Error(), "csvtogeo: ")
}

// CoordinateFailure classifies why a row has no usable position.
type CoordinateFailure int

const (
	CoordinateMissing CoordinateFailure = iota
	CoordinateUnparsable
	CoordinateNoMatch
)

func (f CoordinateFailure) String() string {
	switch f {
	case CoordinateMissing:
		return "missing"
	case CoordinateUnparsable:
		return "unparsable"
	case CoordinateNoMatch:
		return "no match"
	default:
		return "unknown"
	}
}

// CoordinateError is returned by the Extractor when a row's position cannot
// be resolved.
type CoordinateError struct {
	Failure CoordinateFailure
	Column  string // CSV column (or pattern capture) that failed
	Value   string // Raw cell value
	Pattern string // Capture pattern, pattern mode only
}

func (e *CoordinateError) Error() string {
	switch e.Failure {
	case CoordinateMissing:
		return fmt.Sprintf("csvtogeo: column %q has no coordinate", e.Column)
	case CoordinateNoMatch:
		return fmt.Sprintf("csvtogeo: column %q is %q, which does not match the pattern %s", e.Column, e.Value, e.Pattern)
	default:
		return fmt.Sprintf("csvtogeo: column %q is %q, which is not a valid coordinate", e.Column, e.Value)
	}
}

// TypeCoercionError is returned when a cell cannot be converted to its
// column's datatype.
type TypeCoercionError struct {
	Identifier string
	Column     string
	Datatype   Datatype
	Value      string
}

func (e *TypeCoercionError) Error() string {
	return fmt.Sprintf("csvtogeo: column %q is %q, which is not a valid %s for %s", e.Column, e.Value, e.Datatype, e.Identifier)
}

// ThresholdExceededError is returned once all rows are processed when more
// rows were skipped than the key file allows.
type ThresholdExceededError struct {
	Skipped    int
	Total      int
	Percent    float64
	MaxPercent int
}

func (e *ThresholdExceededError) Error() string {
	return fmt.Sprintf("csvtogeo: skipped %d of %d rows (%.2f%%), which is more than the %d percent threshold",
		e.Skipped, e.Total, e.Percent, e.MaxPercent)
}

// ColumnNotFoundError is returned when the data file lacks a column the key
// file refers to.
type ColumnNotFoundError struct {
	Column    string
	Available []string
	BOM       bool // The first header starts with a byte-order mark
}

func (e *ColumnNotFoundError) Error() string {
	msg := fmt.Sprintf("csvtogeo: expected header column %q not present in data file", e.Column)
	if e.BOM {
		msg += " (the first header starts with a byte-order mark; re-save the file without it or set the key file encoding to utf-8-sig)"
	}
	return msg
}
