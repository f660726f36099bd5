package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xudongzheng/zmk/internal/work"
	"github.com/xudongzheng/zmk/pkg/gatt"
	"github.com/xudongzheng/zmk/pkg/hid"
)

// centralCmd represents the central command
var centralCmd = &cobra.Command{
	Use:   "central <peripheral-address>",
	Short: "Connect to a peripheral and forward its state as HID reports",
	Long: `Connects to a split peripheral, subscribes to its key position state,
and forwards each change as a HID report through the outbound report
queue to a USB gadget HID device (e.g. /dev/hidg0).

Without --hid-device, reports are delivered to a discarding endpoint,
which still exercises the full queue/retry pipeline for testing.`,
	Args: cobra.ExactArgs(1),
	RunE: runCentral,
}

var centralHIDDevice string

func init() {
	centralCmd.Flags().StringVar(&centralHIDDevice, "hid-device", "", "Path to the gadget HID device reports are written to")
}

func runCentral(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var out io.Writer = io.Discard
	if centralHIDDevice != "" {
		f, err := os.OpenFile(centralHIDDevice, os.O_WRONLY, 0)
		if err != nil {
			return fmt.Errorf("failed to open HID device %s: %w", centralHIDDevice, err)
		}
		defer f.Close()
		out = f
	} else {
		logger.Warn("No --hid-device given, discarding reports")
	}

	workq := work.NewQueue("hid-drain", logger)
	defer workq.Stop()

	sender, err := hid.NewSender(&hid.SenderOptions{
		Endpoint:      &hid.WriterEndpoint{W: out},
		WorkQueue:     workq,
		QueueCapacity: cfg.ReportQueueCapacity,
		MaxAttempts:   cfg.ReportMaxAttempts,
		RetryBackoff:  cfg.ReportRetryBackoff(),
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	opts := gatt.DefaultCentralOptions(args[0])
	opts.ConnectTimeout = cfg.ConnectTimeout()
	opts.Logger = logger

	central, err := gatt.Dial(ctx, opts)
	if err != nil {
		return err
	}
	defer central.Close()

	if err := central.SubscribePositionState(func(state []byte) {
		report := state
		if len(report) > hid.MaxReportSize {
			report = report[:hid.MaxReportSize]
		}
		if err := sender.Send(report); err != nil {
			logger.WithError(err).Warn("Failed to queue position report")
		}
	}); err != nil {
		return err
	}

	logger.Info("Following position state, Ctrl+C to stop")
	<-ctx.Done()
	return nil
}
