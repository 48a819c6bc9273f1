package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/srg/senslink/pkg/client"
)

// resetCmd represents the reset command
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Factory-reset the device",
	Long: `Factory-reset the device, erasing stored settings and recordings.
Asks for confirmation unless --yes is given.`,
	RunE: runReset,
}

// rebootCmd represents the reboot command
var rebootCmd = &cobra.Command{
	Use:   "reboot",
	Short: "Reboot the device firmware",
	RunE:  runReboot,
}

var resetYes bool

func init() {
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Skip the confirmation prompt")
}

func runReset(cmd *cobra.Command, args []string) error {
	if !resetYes {
		fmt.Print("Factory reset erases all data on the device. Continue? [y/N] ")
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if answer := strings.ToLower(strings.TrimSpace(line)); answer != "y" && answer != "yes" {
			fmt.Println("Aborted")
			return nil
		}
	}

	cmd.SilenceUsage = true

	ctx, cancel := signalContext()
	defer cancel()

	c, cfg, _, err := connectDevice(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() { _ = c.Shutdown() }()

	if err := client.NewSendHelper(c, cfg.RequestTimeout).ResetDevice(); err != nil {
		return fmt.Errorf("failed to reset device: %w", err)
	}

	fmt.Println("Device reset")
	return nil
}

func runReboot(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	ctx, cancel := signalContext()
	defer cancel()

	c, cfg, _, err := connectDevice(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() { _ = c.Shutdown() }()

	if err := client.NewSendHelper(c, cfg.RequestTimeout).RebootDevice(); err != nil {
		return fmt.Errorf("failed to reboot device: %w", err)
	}

	fmt.Println("Device rebooting")
	return nil
}
