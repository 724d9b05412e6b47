package csvtogeo

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Row is one data record keyed by CSV header.
type Row struct {
	Line   int // Data file line the record starts on
	Fields map[string]string
}

// Feature is an accepted row: a point and its typed properties.
// Property values are string, int64, float64 or nil for a blank number.
type Feature struct {
	Line       int
	Point      orb.Point // lon, lat in decimal degrees as read
	Properties map[string]any
}

// GeoJSON converts the feature to a geojson.Feature.
func (f *Feature) GeoJSON() *geojson.Feature {
	gf := geojson.NewFeature(f.Point)
	for k, v := range f.Properties {
		gf.Properties[k] = v
	}
	return gf
}

// SkipReason classifies a rejected row.
type SkipReason string

const (
	SkipMissingCoordinate    SkipReason = "missing coordinate"
	SkipUnparsableCoordinate SkipReason = "unparsable coordinate"
	SkipPatternMismatch      SkipReason = "pattern mismatch"
	SkipTypeCoercion         SkipReason = "type coercion failure"
)

// Skip is a rejected row. Err is the *CoordinateError or
// *TypeCoercionError behind it.
type Skip struct {
	Line   int
	Reason SkipReason
	Err    error
}

func (s *Skip) Error() string {
	return fmt.Sprintf("csvtogeo: line %d skipped, %s: %s", s.Line, s.Reason, errorText(s.Err))
}

func (s *Skip) Unwrap() error {
	return s.Err
}

func skipReason(err error) SkipReason {
	var cerr *CoordinateError
	if errors.As(err, &cerr) {
		switch cerr.Failure {
		case CoordinateMissing:
			return SkipMissingCoordinate
		case CoordinateNoMatch:
			return SkipPatternMismatch
		default:
			return SkipUnparsableCoordinate
		}
	}
	return SkipTypeCoercion
}

// Transformer turns rows into features according to a Schema. It keeps no
// state between rows.
type Transformer struct {
	columns   []ColumnSpec
	extractor *Extractor
}

// NewTransformer returns a Transformer for s.
func NewTransformer(s *Schema) *Transformer {
	return &Transformer{
		columns:   s.Columns(),
		extractor: NewExtractor(s.Globals()),
	}
}

// Transform converts one row. A row without a usable position or with a
// value that does not fit its column type is rejected with a *Skip.
func (t *Transformer) Transform(row Row) (*Feature, error) {
	fields := make(map[string]string, len(row.Fields))
	for k, v := range row.Fields {
		fields[k] = strings.TrimSpace(v)
	}

	loc, err := t.extractor.Extract(fields)
	if err != nil {
		return nil, &Skip{Line: row.Line, Reason: skipReason(err), Err: err}
	}
	for name, v := range loc.Captures {
		fields[name] = strings.TrimSpace(v)
	}

	props := make(map[string]any, len(t.columns))
	for _, c := range t.columns {
		switch c.Identifier {
		case LatIdentifier:
			props[c.Identifier] = loc.Lat
			continue
		case LonIdentifier:
			props[c.Identifier] = loc.Lon
			continue
		}

		v, err := coerce(c, fields[c.CSVHeader])
		if err != nil {
			return nil, &Skip{Line: row.Line, Reason: SkipTypeCoercion, Err: err}
		}
		props[c.Identifier] = v
	}

	return &Feature{
		Line:       row.Line,
		Point:      orb.Point{loc.Lon, loc.Lat},
		Properties: props,
	}, nil
}

// coerce converts a raw cell to the column's datatype. Blank numbers are nil.
func coerce(c ColumnSpec, raw string) (any, error) {
	switch c.Datatype {
	case TypeInteger:
		if raw == "" {
			return nil, nil
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, &TypeCoercionError{Identifier: c.Identifier, Column: c.CSVHeader, Datatype: c.Datatype, Value: raw}
		}
		return v, nil
	case TypeReal:
		if raw == "" {
			return nil, nil
		}
		v, ok := parseDecimal(raw)
		if !ok {
			return nil, &TypeCoercionError{Identifier: c.Identifier, Column: c.CSVHeader, Datatype: c.Datatype, Value: raw}
		}
		return v, nil
	default:
		return raw, nil
	}
}
