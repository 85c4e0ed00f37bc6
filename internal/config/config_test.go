package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "/tmp", cfg.OutputDir)
	assert.Equal(t, 50, cfg.Quality)
	assert.Equal(t, 30, cfg.Fetch.TimeoutSeconds)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Processing.RetainTempFiles)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
output_dir: /var/shrunk
quality: 75
fetch:
  timeout_seconds: 10
performance:
  worker_threads: 8
processing:
  retain_temp_files: true
  keep_metadata: true
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/shrunk", cfg.OutputDir)
	assert.Equal(t, 75, cfg.Quality)
	assert.Equal(t, 10, cfg.Fetch.TimeoutSeconds)
	assert.Equal(t, 8, cfg.Performance.WorkerThreads)
	assert.True(t, cfg.Processing.RetainTempFiles)
	assert.True(t, cfg.Processing.KeepMetadata)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadConfig_InvalidQuality(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("quality: 150\n"), 0644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quality")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid defaults", mutate: func(c *Config) {}},
		{name: "empty output dir", mutate: func(c *Config) { c.OutputDir = "" }, wantErr: "output_dir"},
		{name: "quality too high", mutate: func(c *Config) { c.Quality = 101 }, wantErr: "quality"},
		{name: "quality negative", mutate: func(c *Config) { c.Quality = -1 }, wantErr: "quality"},
		{name: "negative timeout", mutate: func(c *Config) { c.Fetch.TimeoutSeconds = -5 }, wantErr: "timeout"},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: "log level"},
		{name: "negative workers normalized", mutate: func(c *Config) { c.Performance.WorkerThreads = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestConfig_Validate_NormalizesWorkers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Performance.WorkerThreads = -3
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0, cfg.Performance.WorkerThreads)
}
