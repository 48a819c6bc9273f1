package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 10*time.Second, cfg.ScanDuration)
	assert.Equal(t, 64, cfg.SendQueueSize)
	assert.Equal(t, 256, cfg.EventQueueSize)
	assert.Equal(t, "table", cfg.OutputFormat)
	assert.Empty(t, cfg.Device)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
log_level: debug
device: "Sensor-1234"
request_timeout: 2s
output_format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "Sensor-1234", cfg.Device)
	assert.Equal(t, 2*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "json", cfg.OutputFormat)

	// Fields not in the file keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 64, cfg.SendQueueSize)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "log_level: [unclosed"},
		{"bad log level", "log_level: loud"},
		{"bad output format", "output_format: xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestNewLogger(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "warn"

	logger := cfg.NewLogger()

	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	formatter, ok := logger.Formatter.(*logrus.TextFormatter)
	require.True(t, ok)
	assert.True(t, formatter.FullTimestamp)
	assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
}

func TestClientOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequestTimeout = 2 * time.Second
	cfg.SendQueueSize = 8
	cfg.EventQueueSize = 0 // keep default

	opts := cfg.ClientOptions()

	assert.Equal(t, 2*time.Second, opts.RequestTimeout)
	assert.Equal(t, 8, opts.SendQueueSize)
	assert.Equal(t, 256, opts.EventQueueSize)
}

func TestTransportOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConnectTimeout = 7 * time.Second

	opts := cfg.TransportOptions()

	assert.Equal(t, 7*time.Second, opts.ConnectTimeout)
	assert.Equal(t, 20, opts.MaxChunkSize)
}
