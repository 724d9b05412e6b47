package csvtogeo

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/paulmach/orb/geojson"
)

// crsURN returns the OGC URN naming an EPSG code.
func crsURN(code int) string {
	return fmt.Sprintf("urn:ogc:def:crs:EPSG::%d", code)
}

// FeatureCollection builds a GeoJSON FeatureCollection of the features in
// order, with a named crs member for the output EPSG code.
func FeatureCollection(features []*Feature, s *Schema, opts *Options) (*geojson.FeatureCollection, error) {
	if s == nil {
		return nil, ErrNilSchema
	}
	if opts == nil {
		opts = DefaultOptions()
	}

	features, code, err := prepare(features, s, opts)
	if err != nil {
		return nil, err
	}

	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		fc.Append(f.GeoJSON())
	}
	fc.ExtraMembers = geojson.Properties{
		"crs": map[string]any{
			"type":       "name",
			"properties": map[string]any{"name": crsURN(code)},
		},
	}
	if opts.Name != "" {
		fc.ExtraMembers["name"] = opts.Name
	}
	return fc, nil
}

// WriteGeoJSON writes the features as a GeoJSON FeatureCollection.
func WriteGeoJSON(w io.Writer, features []*Feature, s *Schema, opts *Options) error {
	fc, err := FeatureCollection(features, s, opts)
	if err != nil {
		return err
	}

	data, err := json.Marshal(fc)
	if err != nil {
		return fmt.Errorf("csvtogeo: encoding GeoJSON: %w", err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
