package main

import (
	"github.com/spf13/cobra"

	"github.com/xudongzheng/zmk/pkg/gatt"
	"github.com/xudongzheng/zmk/pkg/split"
)

// invokeCmd represents the invoke command
var invokeCmd = &cobra.Command{
	Use:   "invoke <peripheral-address> <behavior>",
	Short: "Invoke a named behavior on a peripheral",
	Long: `Connects to a split peripheral and writes a run-behavior command to it.
By default the behavior is tapped (pressed, then released); use
--press-only or --release-only for one edge.

Examples:
  zmk-split invoke AA:BB:CC:DD:EE:FF reset
  zmk-split invoke AA:BB:CC:DD:EE:FF mo --param1 1 --position 12`,
	Args: cobra.ExactArgs(2),
	RunE: runInvoke,
}

var (
	invokeParam1      uint32
	invokeParam2      uint32
	invokePosition    uint16
	invokePressOnly   bool
	invokeReleaseOnly bool
)

func init() {
	invokeCmd.Flags().Uint32Var(&invokeParam1, "param1", 0, "First behavior parameter")
	invokeCmd.Flags().Uint32Var(&invokeParam2, "param2", 0, "Second behavior parameter")
	invokeCmd.Flags().Uint16Var(&invokePosition, "position", 0, "Key position the invocation is attributed to")
	invokeCmd.Flags().BoolVar(&invokePressOnly, "press-only", false, "Send only the press edge")
	invokeCmd.Flags().BoolVar(&invokeReleaseOnly, "release-only", false, "Send only the release edge")
}

func runInvoke(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := gatt.DefaultCentralOptions(args[0])
	opts.ConnectTimeout = cfg.ConnectTimeout()
	opts.Logger = logger

	central, err := gatt.Dial(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer central.Close()

	payload := split.RunBehaviorPayload{
		Position: invokePosition,
		Param1:   invokeParam1,
		Param2:   invokeParam2,
		Behavior: args[1],
	}

	if !invokeReleaseOnly {
		payload.State = 1
		if err := central.InvokeBehavior(&payload); err != nil {
			return err
		}
	}
	if !invokePressOnly {
		payload.State = 0
		if err := central.InvokeBehavior(&payload); err != nil {
			return err
		}
	}
	return nil
}
