package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, name := range []string{
		"CSVTOGEO_LOG_LEVEL", "CSVTOGEO_LOG_FORMAT", "CSVTOGEO_OUTEXT",
		"CSVTOGEO_OUTPUT_DIR", "CSVTOGEO_TO_EPSG", "CSVTOGEO_FGB_INDEX",
		"CSVTOGEO_KEYFILE_ENCODING",
	} {
		t.Setenv(name, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, ".geojson", cfg.Output.Ext)
	assert.Equal(t, "", cfg.Output.Dir)
	assert.Equal(t, 0, cfg.Output.TargetEPSG)
	assert.False(t, cfg.Output.FlatGeobufIndex)
	assert.Equal(t, "utf-8", cfg.KeyFile.Encoding)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CSVTOGEO_LOG_LEVEL", "debug")
	t.Setenv("CSVTOGEO_LOG_FORMAT", "json")
	t.Setenv("CSVTOGEO_OUTEXT", ".shp")
	t.Setenv("CSVTOGEO_OUTPUT_DIR", "/tmp/out")
	t.Setenv("CSVTOGEO_TO_EPSG", "3857")
	t.Setenv("CSVTOGEO_FGB_INDEX", "true")
	t.Setenv("CSVTOGEO_KEYFILE_ENCODING", "latin1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, ".shp", cfg.Output.Ext)
	assert.Equal(t, "/tmp/out", cfg.Output.Dir)
	assert.Equal(t, 3857, cfg.Output.TargetEPSG)
	assert.True(t, cfg.Output.FlatGeobufIndex)
	assert.Equal(t, "latin1", cfg.KeyFile.Encoding)
}

func TestLoadInvalidValue(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		value string
		want  string
	}{
		{"bad integer", "CSVTOGEO_TO_EPSG", "wgs84", "invalid integer"},
		{"bad boolean", "CSVTOGEO_FGB_INDEX", "maybe", "invalid boolean"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.env)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Logging: LoggingConfig{Level: "info", Format: "text"},
			Output:  OutputConfig{Ext: ".geojson"},
			KeyFile: KeyFileConfig{Encoding: "utf-8"},
		}
	}

	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"valid", func(*Config) {}, ""},
		{"flatgeobuf", func(c *Config) { c.Output.Ext = ".fgb" }, ""},
		{"uppercase level", func(c *Config) { c.Logging.Level = "WARN" }, ""},
		{"bad extension", func(c *Config) { c.Output.Ext = ".kml" }, "CSVTOGEO_OUTEXT"},
		{"negative epsg", func(c *Config) { c.Output.TargetEPSG = -1 }, "CSVTOGEO_TO_EPSG"},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, "CSVTOGEO_LOG_LEVEL"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "CSVTOGEO_LOG_FORMAT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateCollectsAll(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{Level: "loud", Format: "yaml"},
		Output:  OutputConfig{Ext: ".csv"},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
	assert.Contains(t, err.Error(), "CSVTOGEO_OUTEXT")
	assert.Contains(t, err.Error(), "CSVTOGEO_LOG_LEVEL")
	assert.Contains(t, err.Error(), "CSVTOGEO_LOG_FORMAT")
}
