package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "senslink",
	Short: "Command-line client for BLE sensor devices",
	Long: `Command-line client for BLE sensor devices speaking the framed serial
protocol over the Nordic UART Service:

- Scan and discover nearby sensor devices
- Read and write device attributes (serial number, firmware, clock, trace level)
- Stream live measurements (battery, heart rate, temperature)
- Reset or reboot a device
- Bridge a device to a PTY for serial-like access from other tools`,
	Version: formatVersion(version),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}

func init() {
	// Silence Cobra's "Error:" prefix - main() prints clean errors
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(setTimeCmd)
	rootCmd.AddCommand(setTraceLevelCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(bridgeCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(rebootCmd)

	// Global flags
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("config", "", "Config file path (YAML)")
	rootCmd.PersistentFlags().StringP("device", "D", "", "Device name or address (overrides config)")
	rootCmd.PersistentFlags().Duration("timeout", 0, "Request timeout (overrides config)")

	// Add -v as a short flag for --version
	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
}
