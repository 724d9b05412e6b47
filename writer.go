package csvtogeo

import (
	"io"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"
)

// WriteFlatGeobuf writes features to FlatGeobuf format. Columns are typed
// from the schema: string as String, integer as Long and real as Double.
func WriteFlatGeobuf(w io.Writer, features []*Feature, s *Schema, opts *Options) error {
	if s == nil {
		return ErrNilSchema
	}
	if opts == nil {
		opts = DefaultOptions()
	}

	features, code, err := prepare(features, s, opts)
	if err != nil {
		return err
	}

	builder := flatbuffers.NewBuilder(4096)

	header := writer.NewHeader(builder)
	header.SetGeometryType(flattypes.GeometryTypePoint)
	header.SetFeaturesCount(uint64(len(features)))
	if b, ok := featureBound(features); ok {
		env := envelope(b)
		header.SetEnvelope(env[:])
	}
	if opts.Name != "" {
		header.SetName(opts.Name)
	}
	if opts.Description != "" {
		header.SetDescription(opts.Description)
	}

	specs := s.Columns()
	if len(specs) > 0 {
		header.SetColumns(buildColumns(specs, builder))
	}

	ref := LookupCRS(code)
	crs := writer.NewCrs(builder)
	crs.SetOrg("EPSG")
	crs.SetCode(int32(ref.Code))
	if ref.Name != "" {
		crs.SetName(ref.Name)
	}
	// The writer has no WKT field; the WKT goes in the description.
	if ref.WKT != "" {
		crs.SetDescription(ref.WKT)
	}
	header.SetCrs(crs)

	gen := &featureGenerator{
		features: features,
		specs:    specs,
	}

	// An empty layer has no tree to build.
	includeIndex := opts.IncludeIndex && len(features) > 0
	fgbWriter := writer.NewWriter(header, includeIndex, gen, nil)

	_, err = fgbWriter.Write(w)
	return err
}

// featureGenerator feeds features to the FlatGeobuf writer in order.
type featureGenerator struct {
	features []*Feature
	specs    []ColumnSpec
	index    int
}

func (g *featureGenerator) Generate() *writer.Feature {
	if g.index >= len(g.features) {
		return nil
	}

	f := g.features[g.index]
	g.index++

	builder := flatbuffers.NewBuilder(1024)
	feature := writer.NewFeature(builder)
	feature.SetGeometry(pointToFGB(f.Point, builder))

	if props := encodeProperties(f.Properties, g.specs); len(props) > 0 {
		feature.SetProperties(props)
	}

	return feature
}
