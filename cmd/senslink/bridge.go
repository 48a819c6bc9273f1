package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/srg/senslink/pkg/bridge"
	"github.com/srg/senslink/pkg/transport"
)

// bridgeCmd represents the bridge command
var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Bridge the device to a pseudo terminal",
	Long: `Connect to the device and expose the raw frame link as a pseudo
terminal, so other tools can speak the protocol over a plain tty.

The bridge is transparent: it does not correlate requests and responses,
it only moves complete frames in both directions.

Examples:
  senslink bridge --device Sensor-1234
  senslink bridge --device Sensor-1234 --symlink /tmp/sensor-tty`,
	RunE: runBridge,
}

var bridgeSymlink string

func init() {
	bridgeCmd.Flags().StringVar(&bridgeSymlink, "symlink", "", "Create a stable symlink to the PTY slave")
}

func runBridge(cmd *cobra.Command, args []string) error {
	logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	target, err := resolveTarget(cmd, cfg)
	if err != nil {
		return err
	}

	symlink := bridgeSymlink
	if symlink == "" {
		symlink = cfg.TTYSymlink
	}

	cmd.SilenceUsage = true

	ctx, cancel := signalContext()
	defer cancel()

	ch, err := transport.NewDialer(cfg.TransportOptions(), logger).Dial(ctx, target)
	if err != nil {
		return err
	}

	b := bridge.New(ch, &bridge.Options{
		SymlinkPath: symlink,
		Logger:      logger,
	})
	if err := b.Start(); err != nil {
		_ = ch.Close()
		return err
	}

	fmt.Printf("Bridge running on %s", b.TTYName())
	if symlink != "" {
		fmt.Printf(" (symlink %s)", symlink)
	}
	fmt.Println()
	fmt.Fprintln(os.Stderr, "Press Ctrl+C to stop...")

	<-ctx.Done()
	return b.Stop()
}
