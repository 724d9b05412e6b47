package csvtogeo

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/paulmach/orb"
)

func TestNewReaderFromData_Invalid(t *testing.T) {
	// Invalid data (not a FlatGeobuf file)
	_, err := NewReaderFromData([]byte("not a flatgeobuf"))
	if err == nil {
		t.Error("expected error for invalid data")
	}
}

func TestNewReaderFromData_Empty(t *testing.T) {
	_, err := NewReaderFromData([]byte{})
	if err == nil {
		t.Error("expected error for empty data")
	}
}

func writeFGBFile(t *testing.T, features []*Feature, s *Schema, opts *Options) string {
	t.Helper()
	tmpFile := filepath.Join(t.TempDir(), "test.fgb")

	file, err := os.Create(tmpFile)
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	err = WriteFlatGeobuf(file, features, s, opts)
	_ = file.Close()
	if err != nil {
		t.Fatalf("WriteFlatGeobuf failed: %v", err)
	}
	return tmpFile
}

func TestRoundTrip_InOrder(t *testing.T) {
	want := sampleFeatures()
	path := writeFGBFile(t, want, sampleSchema(t), &Options{Name: "venues"})

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer func() { _ = reader.Close() }()

	header := reader.Header()
	if header == nil {
		t.Fatal("expected non-nil header")
	}
	if header.GeometryType != "Point" {
		t.Errorf("expected geometry type 'Point', got %q", header.GeometryType)
	}
	if header.FeaturesCount != 3 {
		t.Errorf("expected 3 features, got %d", header.FeaturesCount)
	}
	if header.HasIndex {
		t.Error("expected no index")
	}
	wantEnv := [4]float64{-122.260384, 37.447061, -122.2281, 37.4852}
	if header.Envelope != wantEnv {
		t.Errorf("expected envelope %v, got %v", wantEnv, header.Envelope)
	}

	got, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d features, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].Point != want[i].Point {
			t.Errorf("feature %d: expected point %v, got %v", i, want[i].Point, got[i].Point)
		}
		for k, v := range want[i].Properties {
			if got[i].Properties[k] != v {
				t.Errorf("feature %d: property %s expected %#v, got %#v", i, k, v, got[i].Properties[k])
			}
		}
	}
}

func TestRoundTrip_Indexed(t *testing.T) {
	var want []*Feature
	for i := 0; i < 50; i++ {
		want = append(want, &Feature{
			Point:      orb.Point{float64(i%7) - 3, float64(i) / 2},
			Properties: map[string]any{"name": string(rune('a' + i%26)), "seats": int64(i), "rating": float64(i) / 4},
		})
	}
	path := writeFGBFile(t, want, sampleSchema(t), &Options{IncludeIndex: true})

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	if !reader.Header().HasIndex {
		t.Fatal("expected HasIndex to be true")
	}

	got, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d features, got %d", len(want), len(got))
	}

	// Indexed files are stored in Hilbert order.
	sort.Slice(got, func(i, j int) bool {
		return got[i].Properties["seats"].(int64) < got[j].Properties["seats"].(int64)
	})
	for i := range want {
		if got[i].Point != want[i].Point {
			t.Errorf("seats %d: expected point %v, got %v", i, want[i].Point, got[i].Point)
		}
		if got[i].Properties["rating"] != want[i].Properties["rating"] {
			t.Errorf("seats %d: expected rating %v, got %v", i, want[i].Properties["rating"], got[i].Properties["rating"])
		}
	}
}

func TestReadGeoJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFlatGeobuf(&buf, sampleFeatures(), sampleSchema(t), nil); err != nil {
		t.Fatalf("WriteFlatGeobuf failed: %v", err)
	}

	reader, err := NewReaderFromData(buf.Bytes())
	if err != nil {
		t.Fatalf("NewReaderFromData failed: %v", err)
	}

	fc, err := reader.ReadGeoJSON()
	if err != nil {
		t.Fatalf("ReadGeoJSON failed: %v", err)
	}
	if len(fc.Features) != 3 {
		t.Fatalf("expected 3 features, got %d", len(fc.Features))
	}
	if fc.Features[0].Properties["name"] != "Cañada College" {
		t.Errorf("unexpected name %v", fc.Features[0].Properties["name"])
	}
}

func TestReader_Close(t *testing.T) {
	path := writeFGBFile(t, sampleFeatures()[:1], sampleSchema(t), &Options{IncludeIndex: true})

	// Open and close
	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}

	err = reader.Close()
	if err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestHeader_ColumnInfo(t *testing.T) {
	path := writeFGBFile(t, sampleFeatures(), sampleSchema(t), nil)

	// Read header
	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer func() { _ = reader.Close() }()

	header := reader.Header()
	if header == nil {
		t.Fatal("expected non-nil header")
	}

	want := []ColumnInfo{
		{Name: "name", Type: "String", Title: "Venue"},
		{Name: "seats", Type: "Long", Title: "seats", Description: "Seat count", Nullable: true},
		{Name: "rating", Type: "Double", Title: "rating", Nullable: true},
	}
	if len(header.Columns) != len(want) {
		t.Fatalf("expected %d columns, got %d", len(want), len(header.Columns))
	}
	for i, col := range want {
		if header.Columns[i] != col {
			t.Errorf("column %d: expected %+v, got %+v", i, col, header.Columns[i])
		}
	}
}

func TestHeader_CRS(t *testing.T) {
	tests := []struct {
		name   string
		target int
		code   int
		crs    string
	}{
		{"wgs84", 0, 4326, "WGS 84"},
		{"web mercator", EPSGWebMercator, 3857, "WGS 84 / Pseudo-Mercator"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFGBFile(t, sampleFeatures(), sampleSchema(t), &Options{TargetEPSG: tt.target})
			reader, err := NewReader(path)
			if err != nil {
				t.Fatalf("NewReader failed: %v", err)
			}

			crs := reader.Header().CRS
			if crs == nil {
				t.Fatal("expected a CRS")
			}
			if crs.Code != tt.code || crs.Name != tt.crs {
				t.Errorf("unexpected CRS %+v", crs)
			}
			if crs.WKT != LookupCRS(tt.code).WKT {
				t.Errorf("expected WKT for EPSG:%d, got %q", tt.code, crs.WKT)
			}
		})
	}
}

func TestNewReader_NonExistent(t *testing.T) {
	_, err := NewReader("/nonexistent/path/to/file.fgb")
	if err == nil {
		t.Error("expected error for non-existent file")
	}
}

func TestRoundTrip_IndexedSingle(t *testing.T) {
	want := sampleFeatures()[:1]
	var buf bytes.Buffer
	if err := WriteFlatGeobuf(&buf, want, sampleSchema(t), &Options{IncludeIndex: true}); err != nil {
		t.Fatalf("WriteFlatGeobuf failed: %v", err)
	}

	reader, err := NewReaderFromData(buf.Bytes())
	if err != nil {
		t.Fatalf("NewReaderFromData failed: %v", err)
	}
	if !reader.Header().HasIndex {
		t.Fatal("expected HasIndex to be true")
	}

	got, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 feature, got %d", len(got))
	}
	if got[0].Point != want[0].Point {
		t.Errorf("expected point %v, got %v", want[0].Point, got[0].Point)
	}
	if got[0].Properties["name"] != "Cañada College" {
		t.Errorf("unexpected name %v", got[0].Properties["name"])
	}
}

func TestReadAll_UnknownCount(t *testing.T) {
	s := sampleSchema(t)
	want := sampleFeatures()

	// A header without a features count, as streaming writers produce.
	builder := flatbuffers.NewBuilder(1024)
	header := writer.NewHeader(builder)
	header.SetGeometryType(flattypes.GeometryTypePoint)
	header.SetColumns(buildColumns(s.Columns(), builder))
	gen := &featureGenerator{features: want, specs: s.Columns()}

	var buf bytes.Buffer
	if _, err := writer.NewWriter(header, false, gen, nil).Write(&buf); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	reader, err := NewReaderFromData(buf.Bytes())
	if err != nil {
		t.Fatalf("NewReaderFromData failed: %v", err)
	}
	if n := reader.Header().FeaturesCount; n != 0 {
		t.Fatalf("expected no features count in the header, got %d", n)
	}

	got, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d features, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].Point != want[i].Point {
			t.Errorf("feature %d: expected point %v, got %v", i, want[i].Point, got[i].Point)
		}
	}
}

func TestPackedTreeSize(t *testing.T) {
	tests := []struct {
		name     string
		count    uint64
		nodeSize uint16
		nodes    uint64
	}{
		{"single item", 1, 16, 2},
		{"one leaf level", 16, 16, 17},
		{"two levels", 17, 16, 17 + 2 + 1},
		{"three", 3, 16, 4},
		{"small node size", 5, 1, 5 + 3 + 2 + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := packedTreeSize(tt.count, tt.nodeSize); got != tt.nodes*nodeItemLen {
				t.Errorf("expected %d bytes, got %d", tt.nodes*nodeItemLen, got)
			}
		})
	}
}
