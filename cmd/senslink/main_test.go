package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/senslink/pkg/client"
	"github.com/srg/senslink/pkg/config"
	"github.com/srg/senslink/pkg/transport"
)

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "v1.2.3", formatVersion("1.2.3"))
	assert.Equal(t, "v2.0", formatVersion("2.0"))
	assert.Equal(t, "dev", formatVersion("dev"))
	assert.Equal(t, "", formatVersion(""))
}

func TestFormatUserError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"device not found", transport.ErrDeviceNotFound, "device not found: check that it is powered on, in range and advertising, or run 'senslink scan'"},
		{"timeout", client.ErrTimeout, "the device did not answer in time: it may be busy or out of range"},
		{"connection closed", client.ErrConnectionClosed, "the connection to the device was lost"},
		{"not connected", client.ErrNotConnected, "not connected to a device"},
		{"unknown error passes through", assert.AnError, assert.AnError.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatUserError(tt.err))
		})
	}
}

func newTestCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("log-level", "", "")
	cmd.Flags().String("config", "", "")
	cmd.Flags().String("device", "", "")
	return cmd
}

func TestResolveTarget(t *testing.T) {
	cfg := config.DefaultConfig()

	t.Run("flag wins over config", func(t *testing.T) {
		cmd := newTestCmd()
		require.NoError(t, cmd.Flags().Set("device", "Sensor-1234"))
		cfg.Device = "Sensor-9999"

		target, err := resolveTarget(cmd, cfg)
		require.NoError(t, err)
		assert.Equal(t, "Sensor-1234", target)
	})

	t.Run("config used without flag", func(t *testing.T) {
		cfg.Device = "Sensor-9999"

		target, err := resolveTarget(newTestCmd(), cfg)
		require.NoError(t, err)
		assert.Equal(t, "Sensor-9999", target)
	})

	t.Run("error when neither is set", func(t *testing.T) {
		cfg.Device = ""

		_, err := resolveTarget(newTestCmd(), cfg)
		assert.Error(t, err)
	})
}

func TestConfigureLogger(t *testing.T) {
	t.Run("default is silent", func(t *testing.T) {
		logger, err := configureLogger(newTestCmd())
		require.NoError(t, err)
		assert.Equal(t, "panic", logger.GetLevel().String())
	})

	t.Run("honors log-level flag", func(t *testing.T) {
		cmd := newTestCmd()
		require.NoError(t, cmd.Flags().Set("log-level", "debug"))

		logger, err := configureLogger(cmd)
		require.NoError(t, err)
		assert.Equal(t, "debug", logger.GetLevel().String())
	})

	t.Run("rejects unknown level", func(t *testing.T) {
		cmd := newTestCmd()
		require.NoError(t, cmd.Flags().Set("log-level", "loud"))

		_, err := configureLogger(cmd)
		assert.Error(t, err)
	})
}

func TestSortedAttributeNames(t *testing.T) {
	names := sortedAttributeNames()
	require.NotEmpty(t, names)
	assert.Contains(t, names, "battery")
	assert.Contains(t, names, "firmware")
	assert.IsIncreasing(t, names)
}
