package csvtogeo

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// Well-known EPSG codes.
const (
	EPSGWGS84       = 4326
	EPSGWebMercator = 3857
	EPSGNAD83       = 4269
)

// projection returns the transform from one EPSG code to another, or nil
// when no transform is needed.
func projection(from, to int) (orb.Projection, error) {
	if to == 0 || to == from {
		return nil, nil
	}
	switch {
	case from == EPSGWGS84 && to == EPSGWebMercator:
		return project.WGS84.ToMercator, nil
	case from == EPSGWebMercator && to == EPSGWGS84:
		return project.Mercator.ToWGS84, nil
	}
	return nil, fmt.Errorf("%w: EPSG:%d to EPSG:%d", ErrUnsupportedProjection, from, to)
}

// Reproject returns the features with their points converted from one EPSG
// code to another. The input features are not modified; properties are
// shared with the input. A target of 0 keeps the input.
func Reproject(features []*Feature, from, to int) ([]*Feature, error) {
	proj, err := projection(from, to)
	if err != nil {
		return nil, err
	}
	if proj == nil {
		return features, nil
	}

	out := make([]*Feature, len(features))
	for i, f := range features {
		out[i] = &Feature{
			Line:       f.Line,
			Point:      project.Point(f.Point, proj),
			Properties: f.Properties,
		}
	}
	return out, nil
}

// prepare applies the options' reprojection and returns the features and
// EPSG code to write.
func prepare(features []*Feature, s *Schema, opts *Options) ([]*Feature, int, error) {
	code := s.EPSGCode()
	if opts.TargetEPSG == 0 {
		return features, code, nil
	}
	out, err := Reproject(features, code, opts.TargetEPSG)
	if err != nil {
		return nil, 0, err
	}
	return out, opts.TargetEPSG, nil
}
