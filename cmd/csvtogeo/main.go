// Command csvtogeo converts a CSV data file described by a key file into
// GeoJSON, an ESRI shapefile or FlatGeobuf.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	csvtogeo "github.com/rareitmeyer/CSVToGeo"
	"github.com/rareitmeyer/CSVToGeo/internal/config"
	"github.com/rareitmeyer/CSVToGeo/internal/logging"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	if err := loadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "csvtogeo: %v\n", err)
		os.Exit(exitUsage)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

// loadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// run parses args, converts and returns the exit status.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "csvtogeo: %v\n", err)
		return exitUsage
	}

	fs := flag.NewFlagSet("csvtogeo", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: csvtogeo --keyfile KEYFILE --datafile DATAFILE [options]\n\n")
		fs.PrintDefaults()
	}
	var (
		keyFile    = fs.String("keyfile", "", "key file describing the data file (required)")
		dataFile   = fs.String("datafile", "", "CSV data file to convert (required)")
		outExt     = fs.String("outext", cfg.Output.Ext, "output extension: .geojson, .json, .shp or .fgb")
		kfEncoding = fs.String("kfencoding", cfg.KeyFile.Encoding, "key file encoding")
		outDir     = fs.String("outdir", cfg.Output.Dir, "output directory (default: the data file's directory)")
		toEPSG     = fs.Int("to-epsg", cfg.Output.TargetEPSG, "reproject output to this EPSG code (4326 or 3857)")
		fgbIndex   = fs.Bool("fgb-index", cfg.Output.FlatGeobufIndex, "write a spatial index into .fgb output")
	)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if *keyFile == "" || *dataFile == "" || fs.NArg() > 0 {
		fs.Usage()
		return exitUsage
	}
	if _, err := csvtogeo.FormatForExt(*outExt); err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return exitUsage
	}

	base := logging.New(stderr, cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(base)
	logger := logging.WithFields(base,
		"run_id", uuid.New().String(),
		"keyfile", *keyFile,
		"datafile", *dataFile,
	)

	opts := csvtogeo.DefaultOptions()
	opts.TargetEPSG = *toEPSG
	opts.IncludeIndex = *fgbIndex

	res, err := csvtogeo.Convert(ctx, csvtogeo.Request{
		KeyFile:         *keyFile,
		KeyFileEncoding: *kfEncoding,
		DataFile:        *dataFile,
		OutputExt:       *outExt,
		OutputDir:       *outDir,
		Options:         opts,
		Logger:          logger,
	})
	if res != nil {
		logReport(logger, res.Report)
	}
	if err != nil {
		logFailure(logger, err)
		return exitError
	}
	return exitOK
}

func logReport(logger *slog.Logger, r csvtogeo.SkipReport) {
	logger.Info("skip report",
		"total", r.Total,
		"accepted", r.Accepted,
		"skipped", r.Skipped,
		"skipped_pct", fmt.Sprintf("%.2f", r.Percent),
		"max_skip_pct", r.MaxPercent,
		"by_reason", r.ByReason,
	)
}

func logFailure(logger *slog.Logger, err error) {
	var schemaErr *csvtogeo.SchemaError
	if errors.As(err, &schemaErr) {
		for _, v := range schemaErr.Violations {
			logger.Error("key file", "violation", v.String())
		}
		return
	}
	logger.Error("conversion failed", "error", err)
}
