package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "zmk-split",
	Short: "Split keyboard control plane",
	Long: `Control plane for a split keyboard over BLE:

- Run the peripheral half's split GATT service (run-behavior reassembly,
  position/sensor state, HID indicators)
- Connect as the central half, follow position state, and forward HID
  reports to a gadget device
- Invoke a named behavior on a peripheral from the command line`,
	Version: version,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(peripheralCmd)
	rootCmd.AddCommand(centralCmd)
	rootCmd.AddCommand(invokeCmd)
	rootCmd.AddCommand(behaviorsCmd)

	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file")
}
