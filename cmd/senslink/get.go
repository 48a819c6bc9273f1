package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/srg/senslink/pkg/client"
	"github.com/srg/senslink/pkg/codec"
)

// getCmd represents the get command
var getCmd = &cobra.Command{
	Use:   "get [attribute...]",
	Short: "Read device attributes",
	Long: fmt.Sprintf(`Read one or more attributes from a connected device.

Known attributes: %s

Examples:
  # Read firmware version and serial number
  senslink get firmware serialno --device Sensor-1234

  # Read everything
  senslink get --all --device Sensor-1234`, strings.Join(sortedAttributeNames(), ", ")),
	RunE: runGet,
}

var getAll bool

func init() {
	getCmd.Flags().BoolVar(&getAll, "all", false, "Read all known attributes")
}

func sortedAttributeNames() []string {
	names := codec.AttributeNames()
	sort.Strings(names)
	return names
}

func runGet(cmd *cobra.Command, args []string) error {
	var attrs []codec.AttributeID
	if getAll {
		for _, name := range sortedAttributeNames() {
			id, _ := codec.AttributeByName(name)
			attrs = append(attrs, id)
		}
	} else {
		if len(args) == 0 {
			return fmt.Errorf("no attribute given: name one of %s or pass --all", strings.Join(sortedAttributeNames(), ", "))
		}
		for _, arg := range args {
			id, ok := codec.AttributeByName(arg)
			if !ok {
				return fmt.Errorf("unknown attribute %q: known attributes are %s", arg, strings.Join(sortedAttributeNames(), ", "))
			}
			attrs = append(attrs, id)
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

	helper := client.NewSendHelper(c, cfg.RequestTimeout)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	for _, id := range attrs {
		value, err := helper.GetAttributeFormatted(id)
		if err != nil {
			if getAll {
				// Not every firmware supports every attribute.
				fmt.Fprintf(w, "%s\t(unavailable: %v)\n", id, err)
				continue
			}
			return fmt.Errorf("failed to read %s: %w", id, err)
		}
		fmt.Fprintf(w, "%s\t%s\n", id, value)
	}
	return nil
}
