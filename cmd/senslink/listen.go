package main

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/srg/senslink/pkg/client"
	"github.com/srg/senslink/pkg/codec"
	"github.com/srg/senslink/pkg/reporting"
)

// listenCmd represents the listen command
var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Stream live measurements from the device",
	Long: `Configure attribute reporting on the device and print every pushed
value until interrupted with Ctrl+C.

Examples:
  # Stream heart rate and battery level
  senslink listen --hr --battery --device Sensor-1234

  # Stream everything at a 2000-tick interval
  senslink listen --all --interval 2000 --device Sensor-1234`,
	RunE: runListen,
}

var (
	listenBattery     bool
	listenHeartRate   bool
	listenTemperature bool
	listenAllAttrs    bool
	listenInterval    uint16
)

func init() {
	listenCmd.Flags().BoolVar(&listenBattery, "battery", false, "Stream battery level")
	listenCmd.Flags().BoolVar(&listenHeartRate, "hr", false, "Stream heart rate")
	listenCmd.Flags().BoolVar(&listenTemperature, "temperature", false, "Stream temperature")
	listenCmd.Flags().BoolVar(&listenAllAttrs, "all", false, "Stream all supported measurements")
	listenCmd.Flags().Uint16Var(&listenInterval, "interval", 1000, "Reporting interval in device ticks (0 = on change)")
}

func runListen(cmd *cobra.Command, args []string) error {
	if listenAllAttrs {
		listenBattery, listenHeartRate, listenTemperature = true, true, true
	}
	if !listenBattery && !listenHeartRate && !listenTemperature {
		return fmt.Errorf("nothing to stream: pass --battery, --hr, --temperature or --all")
	}

	cmd.SilenceUsage = true

	ctx, cancel := signalContext()
	defer cancel()

	c, cfg, logger, err := connectDevice(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() { _ = c.Shutdown() }()

	// Stop waiting when the link drops underneath us.
	lost := make(chan struct{})
	var lostOnce sync.Once
	_, err = c.AddListener(client.ConnectionListenerFunc(func(from, to client.State) {
		if to == client.Disconnected {
			lostOnce.Do(func() { close(lost) })
		}
	}))
	if err != nil {
		return err
	}

	cache := reporting.NewCache(logger)
	cache.Observe(printObservation(term.IsTerminal(int(os.Stdout.Fd()))))
	if _, err := c.AddListener(cache); err != nil {
		return err
	}

	reporter := reporting.NewReporter(c, cfg.RequestTimeout, logger)
	if listenBattery {
		if err := reporter.StartBatteryLevelReporting(listenInterval); err != nil {
			return err
		}
	}
	if listenHeartRate {
		if err := reporter.StartHeartRateReporting(listenInterval); err != nil {
			return err
		}
	}
	if listenTemperature {
		if err := reporter.StartTemperatureReporting(listenInterval); err != nil {
			return err
		}
	}

	fmt.Fprintln(os.Stderr, "Streaming, press Ctrl+C to stop...")

	select {
	case <-ctx.Done():
		// Best effort: the device keeps pushing otherwise.
		if err := reporter.StopAll(); err != nil {
			logger.WithError(err).Warn("Failed to stop reporting on exit")
		}
		return nil
	case <-lost:
		return client.ErrConnectionClosed
	}
}

// printObservation renders one measurement per line, colored on a tty.
func printObservation(isTTY bool) reporting.Observer {
	color.NoColor = color.NoColor || !isTTY

	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)

	return func(obs reporting.Observation) {
		stamp := obs.ReceivedAt.Format(time.RFC3339)
		name := cyan.Sprintf("%-12s", obs.AttributeID)
		value := green.Sprint(codec.FormatAttributeValue(obs.AttributeID, obs.Value))
		fmt.Printf("%s  %s %s\n", stamp, name, value)
	}
}
