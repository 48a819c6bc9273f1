package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/srg/senslink/pkg/transport"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for sensor devices",
	Long: `Scan for Bluetooth Low Energy devices advertising the sensor serial
service and display their names, addresses and signal strength.

Use --all to list every BLE device in range regardless of services.`,
	RunE: runScan,
}

var (
	scanDuration   time.Duration
	scanFormat     string
	scanNamePrefix string
	scanAll        bool
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 10*time.Second, "Scan duration")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "table", "Output format (table, json)")
	scanCmd.Flags().StringVar(&scanNamePrefix, "name-prefix", "", "Only show devices whose name starts with the prefix")
	scanCmd.Flags().BoolVar(&scanAll, "all", false, "Show all BLE devices, not just sensor devices")
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanFormat != "table" && scanFormat != "json" {
		return fmt.Errorf("invalid format %q: must be table or json", scanFormat)
	}

	logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	opts := transport.DefaultScanOptions()
	opts.Duration = scanDuration
	opts.NamePrefix = scanNamePrefix
	if scanAll {
		opts.ServiceUUIDs = nil
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Fprintf(os.Stderr, "Scanning for %s...\n", scanDuration)

	devices, err := transport.NewScanner(logger).Scan(ctx, opts)
	if err != nil {
		return err
	}

	switch scanFormat {
	case "json":
		return displayDevicesJSON(devices)
	default:
		return displayDevicesTable(devices)
	}
}

func displayDevicesTable(devices []transport.DeviceInfo) error {
	if len(devices) == 0 {
		fmt.Println("No devices discovered")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tRSSI\tLAST SEEN")
	fmt.Fprintln(w, strings.Repeat("-", 60))

	for _, dev := range devices {
		name := dev.Name
		if name == "" {
			name = "(unknown)"
		}
		if len(name) > 24 {
			name = name[:21] + "..."
		}
		lastSeen := time.Since(dev.LastSeen).Truncate(time.Second)
		fmt.Fprintf(w, "%s\t%s\t%d dBm\t%s ago\n", name, dev.Address, dev.RSSI, lastSeen)
	}

	return w.Flush()
}

func displayDevicesJSON(devices []transport.DeviceInfo) error {
	var w io.Writer = os.Stdout
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(devices)
}
