package csvtogeo

import (
	"regexp"
	"strconv"
	"strings"
)

// decimalRegex accepts plain decimal numbers with an optional exponent.
// strconv.ParseFloat alone would also take "NaN", "Inf" and hex floats.
var decimalRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// parseDecimal parses a trimmed decimal number.
func parseDecimal(s string) (float64, bool) {
	if !decimalRegex.MatchString(s) {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Location is a resolved row position in decimal degrees.
type Location struct {
	Lat      float64
	Lon      float64
	Captures map[string]string // Extra named pattern captures, pattern mode only
}

// Extractor resolves a row's position from its named fields.
type Extractor struct {
	mode    CoordinateMode
	latCol  string
	lonCol  string
	llCol   string
	pattern *Pattern
}

// NewExtractor returns an Extractor for the coordinate settings in g.
func NewExtractor(g GlobalSettings) *Extractor {
	return &Extractor{
		mode:    g.Mode(),
		latCol:  g.LatColumn,
		lonCol:  g.LonColumn,
		llCol:   g.CombinedColumn,
		pattern: g.CombinedPattern,
	}
}

// Extract resolves the position of a row. Values are not range checked.
// Failures are returned as *CoordinateError.
func (e *Extractor) Extract(fields map[string]string) (Location, error) {
	if e.mode == ModePattern {
		return e.extractPattern(fields)
	}

	lat, err := coordinate(e.latCol, fields[e.latCol])
	if err != nil {
		return Location{}, err
	}
	lon, err := coordinate(e.lonCol, fields[e.lonCol])
	if err != nil {
		return Location{}, err
	}
	return Location{Lat: lat, Lon: lon}, nil
}

func (e *Extractor) extractPattern(fields map[string]string) (Location, error) {
	value := fields[e.llCol]
	m := e.pattern.re.FindStringSubmatch(value)
	if m == nil {
		return Location{}, &CoordinateError{
			Failure: CoordinateNoMatch,
			Column:  e.llCol,
			Value:   value,
			Pattern: e.pattern.String(),
		}
	}

	lat, err := coordinate(LatIdentifier, m[e.pattern.latIdx])
	if err != nil {
		return Location{}, e.withSource(err)
	}
	lon, err := coordinate(LonIdentifier, m[e.pattern.lonIdx])
	if err != nil {
		return Location{}, e.withSource(err)
	}

	loc := Location{Lat: lat, Lon: lon}
	if len(e.pattern.captures) > 0 {
		loc.Captures = make(map[string]string, len(e.pattern.captures))
		for i, name := range e.pattern.re.SubexpNames() {
			if name == "" || i == e.pattern.latIdx || i == e.pattern.lonIdx {
				continue
			}
			loc.Captures[name] = m[i]
		}
	}
	return loc, nil
}

// withSource points a capture failure at the combined column.
func (e *Extractor) withSource(err error) error {
	cerr := err.(*CoordinateError)
	cerr.Column = e.llCol + "/" + cerr.Column
	cerr.Pattern = e.pattern.String()
	return cerr
}

func coordinate(column, raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, &CoordinateError{Failure: CoordinateMissing, Column: column}
	}
	v, ok := parseDecimal(raw)
	if !ok {
		return 0, &CoordinateError{Failure: CoordinateUnparsable, Column: column, Value: raw}
	}
	return v, nil
}
