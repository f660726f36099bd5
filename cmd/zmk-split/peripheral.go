package main

import (
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/xudongzheng/zmk/internal/work"
	"github.com/xudongzheng/zmk/pkg/behavior"
	"github.com/xudongzheng/zmk/pkg/gatt"
	"github.com/xudongzheng/zmk/pkg/split"
)

// peripheralCmd represents the peripheral command
var peripheralCmd = &cobra.Command{
	Use:   "peripheral",
	Short: "Run the peripheral half's split GATT service",
	Long: `Advertises the split service and serves it: reassembles run-behavior
commands written by the central, dispatches them to registered
behaviors, and publishes position/sensor state to subscribers.`,
	RunE: runPeripheral,
}

func runPeripheral(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workq := work.NewQueue("split-lowprio", logger)
	defer workq.Stop()

	registry := newRegistry(logger)

	mirror := split.NewMirror(&split.MirrorOptions{
		Sensors:   cfg.Sensors,
		WorkQueue: workq,
		OnIndicatorsChanged: func(indicators uint8) {
			logger.WithField("indicators", indicators).Info("HID indicators changed")
		},
		Logger: logger,
	})

	service, err := split.NewService(&split.Options{
		Registry:          registry,
		Logger:            logger,
		ReassemblyTimeout: cfg.ReassemblyTimeout(),
	})
	if err != nil {
		return err
	}

	peripheral, err := gatt.NewPeripheral(&gatt.PeripheralOptions{
		Name:       cfg.DeviceName,
		Service:    service,
		Mirror:     mirror,
		Sensors:    cfg.Sensors,
		Indicators: cfg.Indicators,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	return peripheral.Serve(ctx)
}

// newRegistry builds the standard behavior set. Behaviors that act on
// the device itself get wired to platform hooks here; everything else
// belongs to whoever embeds the packages.
func newRegistry(logger *logrus.Logger) *behavior.Registry {
	registry := behavior.NewRegistry(logger)
	must := func(err error) {
		if err != nil {
			logger.WithError(err).Fatal("Failed to register behavior")
		}
	}
	must(registry.Register("reset", &behavior.Reset{Type: behavior.ResetWarm, Logger: logger}))
	must(registry.Register("bootloader", &behavior.Reset{Type: behavior.ResetBootloader, Logger: logger}))
	return registry
}
