// Package config holds the application configuration: defaults come from
// struct tags, a YAML file can override them.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/srg/senslink/pkg/client"
	"github.com/srg/senslink/pkg/transport"
)

// Config holds application configuration.
type Config struct {
	LogLevel string `yaml:"log_level" default:"info"`

	// Device is the default connection target: advertised name or address.
	Device string `yaml:"device"`

	ConnectTimeout time.Duration `yaml:"connect_timeout" default:"30s"`
	RequestTimeout time.Duration `yaml:"request_timeout" default:"5s"`
	ScanDuration   time.Duration `yaml:"scan_duration" default:"10s"`

	SendQueueSize  int `yaml:"send_queue_size" default:"64"`
	EventQueueSize int `yaml:"event_queue_size" default:"256"`

	OutputFormat string `yaml:"output_format" default:"table"` // table, json

	// TTYSymlink is the stable path for the bridge's pseudo terminal.
	TTYSymlink string `yaml:"tty_symlink"`
}

// DefaultConfig returns configuration with all defaults applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML config file over the defaults. A missing file is not
// an error; the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field values that have a closed set of options.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	switch c.OutputFormat {
	case "table", "json":
	default:
		return fmt.Errorf("unknown output format %q", c.OutputFormat)
	}
	return nil
}

// NewLogger creates a configured logger instance.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}

// ClientOptions maps the config onto device client options.
func (c *Config) ClientOptions() *client.Options {
	opts := client.DefaultOptions()
	opts.RequestTimeout = c.RequestTimeout
	if c.SendQueueSize > 0 {
		opts.SendQueueSize = c.SendQueueSize
	}
	if c.EventQueueSize > 0 {
		opts.EventQueueSize = c.EventQueueSize
	}
	return opts
}

// TransportOptions maps the config onto BLE transport options.
func (c *Config) TransportOptions() *transport.Options {
	opts := transport.DefaultOptions()
	opts.ConnectTimeout = c.ConnectTimeout
	return opts
}
