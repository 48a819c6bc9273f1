package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/srg/senslink/pkg/client"
)

// setTimeCmd represents the set-time command
var setTimeCmd = &cobra.Command{
	Use:   "set-time [rfc3339-timestamp]",
	Short: "Set the device clock",
	Long: `Set the device clock to the given RFC 3339 timestamp, or to the
current host time when no timestamp is given.

Examples:
  senslink set-time --device Sensor-1234
  senslink set-time 2026-08-24T12:00:00Z --device Sensor-1234`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSetTime,
}

// setTraceLevelCmd represents the set-trace-level command
var setTraceLevelCmd = &cobra.Command{
	Use:   "set-trace-level <level>",
	Short: "Set the firmware trace verbosity",
	Args:  cobra.ExactArgs(1),
	RunE:  runSetTraceLevel,
}

func runSetTime(cmd *cobra.Command, args []string) error {
	target := time.Now()
	if len(args) == 1 {
		parsed, err := time.Parse(time.RFC3339, args[0])
		if err != nil {
			return fmt.Errorf("invalid timestamp %q: expected RFC 3339, e.g. 2026-08-24T12:00:00Z", args[0])
		}
		target = parsed
	}

	cmd.SilenceUsage = true

	ctx, cancel := signalContext()
	defer cancel()

	c, cfg, _, err := connectDevice(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() { _ = c.Shutdown() }()

	if err := client.NewSendHelper(c, cfg.RequestTimeout).SetCurrentTime(target); err != nil {
		return fmt.Errorf("failed to set device time: %w", err)
	}

	fmt.Printf("Device clock set to %s\n", target.UTC().Format(time.RFC3339))
	return nil
}

func runSetTraceLevel(cmd *cobra.Command, args []string) error {
	level, err := strconv.ParseUint(args[0], 10, 8)
	if err != nil {
		return fmt.Errorf("invalid trace level %q: must be 0-255", args[0])
	}

	cmd.SilenceUsage = true

	ctx, cancel := signalContext()
	defer cancel()

	c, cfg, _, err := connectDevice(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() { _ = c.Shutdown() }()

	if err := client.NewSendHelper(c, cfg.RequestTimeout).SetTraceLevel(byte(level)); err != nil {
		return fmt.Errorf("failed to set trace level: %w", err)
	}

	fmt.Printf("Trace level set to %d\n", level)
	return nil
}
