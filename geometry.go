package csvtogeo

import (
	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/paulmach/orb"
)

// pointToFGB converts a point to a FlatGeobuf writer.Geometry.
func pointToFGB(p orb.Point, builder *flatbuffers.Builder) *writer.Geometry {
	g := writer.NewGeometry(builder)
	g.SetType(flattypes.GeometryTypePoint)
	g.SetXY([]float64{p[0], p[1]})
	return g
}

// pointFromFGB reads a point geometry. Other geometry types, and points
// without coordinates, are reported as not ok.
func pointFromFGB(fgbGeom *flattypes.Geometry, headerType flattypes.GeometryType) (orb.Point, bool) {
	if fgbGeom == nil {
		return orb.Point{}, false
	}

	// Geometries in a typed layer may leave their own type unset.
	geomType := fgbGeom.Type()
	if geomType == flattypes.GeometryTypeUnknown {
		geomType = headerType
	}
	if geomType != flattypes.GeometryTypePoint || fgbGeom.XyLength() < 2 {
		return orb.Point{}, false
	}
	return orb.Point{fgbGeom.Xy(0), fgbGeom.Xy(1)}, true
}

// featureBound returns the bounding box of the features' points. ok is false
// when there are no features.
func featureBound(features []*Feature) (b orb.Bound, ok bool) {
	if len(features) == 0 {
		return orb.Bound{}, false
	}

	b = features[0].Point.Bound()
	for _, f := range features[1:] {
		b = b.Extend(f.Point)
	}
	return b, true
}

// envelope flattens a bound to [minX, minY, maxX, maxY].
func envelope(b orb.Bound) [4]float64 {
	return [4]float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
}
