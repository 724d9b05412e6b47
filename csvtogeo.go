// Package csvtogeo converts CSV files with latitude/longitude positions into
// point feature collections. A key file describes how to read the CSV: which
// columns hold the position (or which column and capture pattern to split),
// which columns are copied into the output, their identifiers and types, and
// how many rows may be dropped for lacking a usable position.
//
// The accepted features can be written as GeoJSON, as an ESRI point
// shapefile (.shp/.shx/.dbf) or as FlatGeobuf.
package csvtogeo

import (
	"errors"
)

// Common errors returned by this package.
var (
	ErrUnsupportedFormat     = errors.New("csvtogeo: unsupported output format")
	ErrUnsupportedProjection = errors.New("csvtogeo: unsupported projection")
	ErrInvalidData           = errors.New("csvtogeo: invalid data")
	ErrNilSchema             = errors.New("csvtogeo: nil schema")
)

// CRS represents a coordinate reference system.
type CRS struct {
	Code        int    // EPSG code (e.g., 4326 for WGS84)
	Name        string // CRS name
	Description string // CRS description
	WKT         string // Well-Known Text representation
}

// WGS84 returns the standard WGS84 CRS (EPSG:4326).
func WGS84() *CRS {
	return LookupCRS(EPSGWGS84)
}

// LookupCRS returns the CRS for an EPSG code. Codes without a known
// definition get a CRS carrying only the code.
func LookupCRS(code int) *CRS {
	if crs, ok := knownCRS[code]; ok {
		c := crs
		return &c
	}
	return &CRS{Code: code}
}

var knownCRS = map[int]CRS{
	4326: {
		Code: 4326,
		Name: "WGS 84",
		WKT: `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],` +
			`PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`,
	},
	3857: {
		Code: 3857,
		Name: "WGS 84 / Pseudo-Mercator",
		WKT: `PROJCS["WGS_1984_Web_Mercator_Auxiliary_Sphere",GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",` +
			`SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],` +
			`PROJECTION["Mercator_Auxiliary_Sphere"],PARAMETER["False_Easting",0.0],PARAMETER["False_Northing",0.0],` +
			`PARAMETER["Central_Meridian",0.0],PARAMETER["Standard_Parallel_1",0.0],PARAMETER["Auxiliary_Sphere_Type",0.0],` +
			`UNIT["Meter",1.0]]`,
	},
	4269: {
		Code: 4269,
		Name: "NAD83",
		WKT: `GEOGCS["GCS_North_American_1983",DATUM["D_North_American_1983",SPHEROID["GRS_1980",6378137.0,298.257222101]],` +
			`PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`,
	},
}

// Options configures output writing.
type Options struct {
	Name         string // Layer name
	Description  string // Layer description
	IncludeIndex bool   // Include a spatial index in FlatGeobuf output; indexed features are stored in Hilbert order
	TargetEPSG   int    // Reproject points to this EPSG code; 0 keeps the key file's code
}

// DefaultOptions returns default options for writing output files.
func DefaultOptions() *Options {
	return &Options{}
}

// ColumnInfo describes a property column in a FlatGeobuf file.
type ColumnInfo struct {
	Name        string // Column name
	Type        string // Column type ("Long", "Double", "String", ...)
	Title       string // Column title (human-readable)
	Description string // Column description
	Nullable    bool   // Whether the column can contain null values
}

// Header contains metadata about a FlatGeobuf file.
type Header struct {
	Name          string       // Layer name
	Description   string       // Layer description
	GeometryType  string       // Geometry type ("Point", "Unknown", etc.)
	FeaturesCount uint64       // Number of features in the file
	Envelope      [4]float64   // Bounding box [minX, minY, maxX, maxY]
	CRS           *CRS         // Coordinate reference system
	HasIndex      bool         // Whether the file has a spatial index
	Columns       []ColumnInfo // Property column schema
}
