package csvtogeo

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func directSchema(t testing.TB, maxSkip int, columns ...ColumnSpec) *Schema {
	t.Helper()
	s, err := NewSchema(GlobalSettings{
		EPSGCode:       4326,
		LatColumn:      "lat",
		LonColumn:      "lon",
		MaxSkipPercent: maxSkip,
	}, columns)
	require.NoError(t, err)
	return s
}

func TestTransform_CoordinatesOnly(t *testing.T) {
	tr := NewTransformer(directSchema(t, 0))

	f, err := tr.Transform(Row{Line: 2, Fields: map[string]string{"lat": "37.447061", "lon": "-122.260384"}})
	require.NoError(t, err)
	assert.Equal(t, 2, f.Line)
	assert.Equal(t, orb.Point{-122.260384, 37.447061}, f.Point)
	assert.Empty(t, f.Properties)
}

func TestTransform_Coercion(t *testing.T) {
	s := directSchema(t, 0,
		ColumnSpec{CSVHeader: "lat", Identifier: "dlat", Datatype: TypeReal},
		ColumnSpec{CSVHeader: "Name", Identifier: "name", Datatype: TypeString},
		ColumnSpec{CSVHeader: "Seats", Identifier: "seats", Datatype: TypeInteger},
		ColumnSpec{CSVHeader: "Rating", Identifier: "rating", Datatype: TypeReal},
	)
	tr := NewTransformer(s)

	f, err := tr.Transform(Row{Line: 3, Fields: map[string]string{
		"lat": "37.5", "lon": "-122", "Name": "  Cañada College ", "Seats": "-120", "Rating": "4.25",
	}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"dlat":   37.5,
		"name":   "Cañada College",
		"seats":  int64(-120),
		"rating": 4.25,
	}, f.Properties)

	f, err = tr.Transform(Row{Line: 4, Fields: map[string]string{
		"lat": "37.5", "lon": "-122", "Name": "", "Seats": "", "Rating": " ",
	}})
	require.NoError(t, err)
	assert.Equal(t, "", f.Properties["name"])
	assert.Nil(t, f.Properties["seats"])
	assert.Nil(t, f.Properties["rating"])
}

func TestTransform_CoercionFailure(t *testing.T) {
	s := directSchema(t, 0,
		ColumnSpec{CSVHeader: "Count", Identifier: "count", Datatype: TypeInteger},
		ColumnSpec{CSVHeader: "Area", Identifier: "area", Datatype: TypeReal},
	)
	tr := NewTransformer(s)

	tests := []struct {
		name   string
		fields map[string]string
		id     string
	}{
		{"fractional integer", map[string]string{"Count": "12.5", "Area": "1"}, "count"},
		{"thousands separator", map[string]string{"Count": "1,200", "Area": "1"}, "count"},
		{"integer overflow", map[string]string{"Count": "99999999999999999999", "Area": "1"}, "count"},
		{"text real", map[string]string{"Count": "1", "Area": "big"}, "area"},
		{"infinite real", map[string]string{"Count": "1", "Area": "Inf"}, "area"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fields["lat"] = "1"
			tt.fields["lon"] = "2"
			f, err := tr.Transform(Row{Line: 9, Fields: tt.fields})
			assert.Nil(t, f)

			var skip *Skip
			require.True(t, errors.As(err, &skip))
			assert.Equal(t, SkipTypeCoercion, skip.Reason)
			assert.Equal(t, 9, skip.Line)

			var cerr *TypeCoercionError
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, tt.id, cerr.Identifier)
		})
	}
}

func TestTransform_CoordinateSkips(t *testing.T) {
	tr := NewTransformer(directSchema(t, 0))

	tests := []struct {
		name   string
		fields map[string]string
		reason SkipReason
	}{
		{"missing", map[string]string{"lat": "", "lon": "1"}, SkipMissingCoordinate},
		{"unparsable", map[string]string{"lat": "1", "lon": "west"}, SkipUnparsableCoordinate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tr.Transform(Row{Line: 5, Fields: tt.fields})
			var skip *Skip
			require.True(t, errors.As(err, &skip))
			assert.Equal(t, tt.reason, skip.Reason)
			assert.Contains(t, skip.Error(), "line 5 skipped")
			assert.NotContains(t, skip.Error(), "csvtogeo: csvtogeo:")
		})
	}
}

func TestTransform_PatternCaptures(t *testing.T) {
	s, err := NewSchema(GlobalSettings{
		EPSGCode:        4326,
		CombinedColumn:  "Location 1",
		CombinedPattern: MustCompilePattern(farmHillPattern),
	}, []ColumnSpec{
		{CSVHeader: "Name", Identifier: "name", Datatype: TypeString},
		{CSVHeader: "address", Identifier: "address", Datatype: TypeString},
		{CSVHeader: "dlat", Identifier: "dlat", Datatype: TypeReal},
	})
	require.NoError(t, err)
	tr := NewTransformer(s)

	f, err := tr.Transform(Row{Line: 2, Fields: map[string]string{
		"Name":       "Cañada College",
		"Location 1": "4200 Farm Hill Blvd\nRedwood City, CA 94061\n(37.447061, -122.260384)",
	}})
	require.NoError(t, err)
	assert.Equal(t, orb.Point{-122.260384, 37.447061}, f.Point)
	assert.Equal(t, "4200 Farm Hill Blvd\nRedwood City, CA 94061", f.Properties["address"])
	assert.Equal(t, 37.447061, f.Properties["dlat"])

	_, err = tr.Transform(Row{Line: 3, Fields: map[string]string{"Name": "x", "Location 1": "unknown"}})
	var skip *Skip
	require.True(t, errors.As(err, &skip))
	assert.Equal(t, SkipPatternMismatch, skip.Reason)
}

func TestTransform_Idempotent(t *testing.T) {
	s := directSchema(t, 0,
		ColumnSpec{CSVHeader: "Name", Identifier: "name", Datatype: TypeString},
		ColumnSpec{CSVHeader: "Seats", Identifier: "seats", Datatype: TypeInteger},
	)
	tr := NewTransformer(s)
	row := Row{Line: 7, Fields: map[string]string{"lat": "1.25", "lon": "2.5", "Name": "Hall", "Seats": "40"}}

	first, err := tr.Transform(row)
	require.NoError(t, err)
	second, err := tr.Transform(row)
	require.NoError(t, err)

	a, err := json.Marshal(first.GeoJSON())
	require.NoError(t, err)
	b, err := json.Marshal(second.GeoJSON())
	require.NoError(t, err)
	assert.Equal(t, a, b)

	// The row itself is not modified.
	assert.Equal(t, "Hall", row.Fields["Name"])
	assert.Len(t, row.Fields, 4)
}
