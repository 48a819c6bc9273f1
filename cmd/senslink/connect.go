package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/senslink/pkg/client"
	"github.com/srg/senslink/pkg/config"
	"github.com/srg/senslink/pkg/transport"
)

// loadConfig reads the config file given via --config, falling back to the
// per-user default location. A missing file yields the defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return config.DefaultConfig(), nil
		}
		path = filepath.Join(dir, "senslink", "config.yaml")
	}
	return config.Load(path)
}

// resolveTarget picks the connection target: --device beats the config file.
func resolveTarget(cmd *cobra.Command, cfg *config.Config) (string, error) {
	if target, _ := cmd.Flags().GetString("device"); target != "" {
		return target, nil
	}
	if cfg.Device != "" {
		return cfg.Device, nil
	}
	return "", fmt.Errorf("no device given: use --device or set 'device' in the config file")
}

// signalContext returns a context canceled by Ctrl+C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// connectDevice wires config, transport and client together and connects.
// The caller owns the returned client and must Shutdown it.
func connectDevice(ctx context.Context, cmd *cobra.Command) (*client.Client, *config.Config, *logrus.Logger, error) {
	logger, err := configureLogger(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	target, err := resolveTarget(cmd, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	if timeout, _ := cmd.Flags().GetDuration("timeout"); timeout > 0 {
		cfg.RequestTimeout = timeout
	}

	dialer := transport.NewDialer(cfg.TransportOptions(), logger)
	opts := cfg.ClientOptions()
	opts.Logger = logger

	c := client.New(dialer, opts)
	if err := c.Connect(ctx, target); err != nil {
		return nil, nil, nil, err
	}
	return c, cfg, logger, nil
}
