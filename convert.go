package csvtogeo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Format is an output file format.
type Format int

const (
	FormatGeoJSON Format = iota
	FormatShapefile
	FormatFlatGeobuf
)

func (f Format) String() string {
	switch f {
	case FormatShapefile:
		return "ESRI Shapefile"
	case FormatFlatGeobuf:
		return "FlatGeobuf"
	default:
		return "GeoJSON"
	}
}

// FormatForExt returns the output format for a file extension.
func FormatForExt(ext string) (Format, error) {
	switch ext {
	case ".geojson", ".GeoJSON", ".json":
		return FormatGeoJSON, nil
	case ".shp":
		return FormatShapefile, nil
	case ".fgb":
		return FormatFlatGeobuf, nil
	}
	return 0, fmt.Errorf("%w: %q (use .geojson, .shp or .fgb)", ErrUnsupportedFormat, ext)
}

// DefaultOutputExt is used when a Request names no extension.
const DefaultOutputExt = ".geojson"

// Request describes one conversion.
type Request struct {
	KeyFile         string
	KeyFileEncoding string // Charset of the key file, default UTF-8
	DataFile        string
	OutputExt       string // Output format extension, default .geojson
	OutputDir       string // Default is the data file's directory
	Options         *Options
	Logger          *slog.Logger
}

// Result is the outcome of a conversion.
type Result struct {
	Outputs []string // Files written
	Report  SkipReport
	Schema  *Schema
}

// Convert reads the key file and data file named by req and writes the
// accepted rows next to the data file (or into req.OutputDir), named after
// the data file with the output extension. Nothing is written unless every
// row has been read and the skip threshold holds. The skip report is
// returned with the error when the threshold is exceeded.
func Convert(ctx context.Context, req Request) (*Result, error) {
	logger := req.Logger
	if logger == nil {
		logger = slog.Default()
	}
	opts := DefaultOptions()
	if req.Options != nil {
		o := *req.Options
		opts = &o
	}
	ext := req.OutputExt
	if ext == "" {
		ext = DefaultOutputExt
	}
	format, err := FormatForExt(ext)
	if err != nil {
		return nil, err
	}

	schema, err := ReadKeyFile(req.KeyFile, req.KeyFileEncoding)
	if err != nil {
		return nil, err
	}
	for _, w := range schema.Warnings() {
		logger.Warn("key file", "file", req.KeyFile, "warning", w)
	}
	logger.Debug("key file read",
		"file", req.KeyFile,
		"mode", schema.Mode().String(),
		"epsg", schema.EPSGCode(),
		"columns", len(schema.Columns()),
	)

	f, err := os.Open(req.DataFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, err := NewCSVSource(f, schema)
	if err != nil {
		return nil, err
	}

	d := NewDriver(schema, src, WithLogger(logger), WithContext(ctx))
	features, err := d.Collect()
	res := &Result{Report: d.Report(), Schema: schema}
	if err != nil {
		return res, err
	}

	stem := strings.TrimSuffix(filepath.Base(req.DataFile), filepath.Ext(req.DataFile))
	dir := req.OutputDir
	if dir == "" {
		dir = filepath.Dir(req.DataFile)
	}
	base := filepath.Join(dir, stem)
	if opts.Name == "" {
		opts.Name = stem
	}

	switch format {
	case FormatShapefile:
		res.Outputs, err = WriteShapefile(base, features, schema, opts)
	case FormatFlatGeobuf:
		err = writeFileAtomic(base+ext, func(w io.Writer) error {
			return WriteFlatGeobuf(w, features, schema, opts)
		})
		if err == nil {
			res.Outputs = []string{base + ext}
		}
	default:
		err = writeFileAtomic(base+ext, func(w io.Writer) error {
			return WriteGeoJSON(w, features, schema, opts)
		})
		if err == nil {
			res.Outputs = []string{base + ext}
		}
	}
	if err != nil {
		return res, err
	}

	logger.Info("wrote output",
		"format", format.String(),
		"files", res.Outputs,
		"features", len(features),
	)
	return res, nil
}

// writeFileAtomic writes path through a temporary file in the same
// directory so a failed write leaves no partial output.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
