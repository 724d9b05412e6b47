// Package config loads csvtogeo's defaults from environment variables.
// Command line flags override these values.
package config

// Config holds the command's configuration.
type Config struct {
	Logging LoggingConfig
	Output  OutputConfig
	KeyFile KeyFileConfig
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"CSVTOGEO_LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"CSVTOGEO_LOG_FORMAT" default:"text"`
}

// OutputConfig holds output file settings.
type OutputConfig struct {
	// Ext selects the output format by extension (default: .geojson)
	Ext string `env:"CSVTOGEO_OUTEXT" default:".geojson"`

	// Dir is the output directory; empty writes next to the data file
	Dir string `env:"CSVTOGEO_OUTPUT_DIR"`

	// TargetEPSG reprojects output points; 0 keeps the key file's code
	TargetEPSG int `env:"CSVTOGEO_TO_EPSG" default:"0"`

	// FlatGeobufIndex adds a spatial index to .fgb output (default: false)
	FlatGeobufIndex bool `env:"CSVTOGEO_FGB_INDEX" default:"false"`
}

// KeyFileConfig holds key file settings.
type KeyFileConfig struct {
	// Encoding is the key file's charset (default: utf-8)
	Encoding string `env:"CSVTOGEO_KEYFILE_ENCODING" default:"utf-8"`
}
