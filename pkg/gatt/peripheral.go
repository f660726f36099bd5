package gatt

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"github.com/sirupsen/logrus"

	"github.com/xudongzheng/zmk/pkg/split"
)

// NewBLEDevice creates the host BLE device (overridable in tests).
var NewBLEDevice = func() (ble.Device, error) {
	return linux.NewDevice()
}

// PeripheralOptions configures a Peripheral.
type PeripheralOptions struct {
	// Name is the advertised device name.
	Name string

	// Service receives reassembled run-behavior writes. Required.
	Service *split.Service

	// Mirror backs the readable/notifiable state characteristics.
	// Required.
	Mirror *split.Mirror

	// Sensors includes the sensor state characteristic.
	Sensors bool

	// Indicators includes the HID indicators characteristic.
	Indicators bool

	Logger *logrus.Logger
}

// Peripheral exposes the split service over GATT. Characteristic write
// handlers hand (offset, bytes) straight to the split layer; notify
// handlers install themselves as the mirror's sinks for the duration of
// the subscription.
type Peripheral struct {
	name    string
	service *split.Service
	mirror  *split.Mirror
	logger  *logrus.Logger
	svc     *ble.Service
}

// NewPeripheral builds the GATT attribute table for the split service.
func NewPeripheral(opts *PeripheralOptions) (*Peripheral, error) {
	if opts == nil || opts.Service == nil || opts.Mirror == nil {
		return nil, fmt.Errorf("failed to create peripheral: service and mirror are required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	name := opts.Name
	if name == "" {
		name = "zmk-split"
	}

	p := &Peripheral{
		name:    name,
		service: opts.Service,
		mirror:  opts.Mirror,
		logger:  logger,
	}
	p.svc = p.buildService(opts.Sensors, opts.Indicators)
	return p, nil
}

// GATTService returns the assembled service for registration with a
// BLE stack.
func (p *Peripheral) GATTService() *ble.Service {
	return p.svc
}

// Serve registers the service with the host BLE device and advertises
// until ctx is canceled.
func (p *Peripheral) Serve(ctx context.Context) error {
	dev, err := NewBLEDevice()
	if err != nil {
		return fmt.Errorf("failed to create BLE device: %w", err)
	}
	ble.SetDefaultDevice(dev)

	if err := ble.AddService(p.svc); err != nil {
		return fmt.Errorf("failed to register split service: %w", err)
	}

	p.logger.WithField("name", p.name).Info("Advertising split service")
	err = ble.AdvertiseNameAndServices(ctx, p.name, SplitServiceUUID)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (p *Peripheral) buildService(sensors, indicators bool) *ble.Service {
	svc := ble.NewService(SplitServiceUUID)

	pos := svc.NewCharacteristic(PositionStateCharUUID)
	pos.HandleRead(ble.ReadHandlerFunc(func(req ble.Request, rsp ble.ResponseWriter) {
		if _, err := rsp.Write(p.mirror.PositionState()); err != nil {
			p.logger.WithError(err).Debug("Position state read failed")
		}
	}))
	pos.HandleNotify(ble.NotifyHandlerFunc(func(req ble.Request, n ble.Notifier) {
		p.logger.Debug("Position state subscriber attached")
		p.mirror.SetPositionSink(notifierSink{n})
		<-n.Context().Done()
		p.mirror.SetPositionSink(nil)
		p.logger.Debug("Position state subscriber detached")
	}))

	run := svc.NewCharacteristic(RunBehaviorCharUUID)
	run.HandleWrite(ble.WriteHandlerFunc(func(req ble.Request, rsp ble.ResponseWriter) {
		p.writeStatus(rsp, p.service.WriteRunBehavior(req.Offset(), req.Data()))
	}))
	numPos := run.NewDescriptor(NumPositionsDescUUID)
	numPos.HandleRead(ble.ReadHandlerFunc(func(req ble.Request, rsp ble.ResponseWriter) {
		if _, err := rsp.Write([]byte{p.mirror.NumPositions()}); err != nil {
			p.logger.WithError(err).Debug("Position count read failed")
		}
	}))

	if sensors {
		sensor := svc.NewCharacteristic(SensorStateCharUUID)
		sensor.HandleRead(ble.ReadHandlerFunc(func(req ble.Request, rsp ble.ResponseWriter) {
			if _, err := rsp.Write(p.mirror.SensorState()); err != nil {
				p.logger.WithError(err).Debug("Sensor state read failed")
			}
		}))
		sensor.HandleNotify(ble.NotifyHandlerFunc(func(req ble.Request, n ble.Notifier) {
			p.mirror.SetSensorSink(notifierSink{n})
			<-n.Context().Done()
			p.mirror.SetSensorSink(nil)
		}))
	}

	if indicators {
		ind := svc.NewCharacteristic(HIDIndicatorsCharUUID)
		ind.HandleWrite(ble.WriteHandlerFunc(func(req ble.Request, rsp ble.ResponseWriter) {
			p.writeStatus(rsp, p.mirror.WriteIndicators(req.Offset(), req.Data()))
		}))
	}

	return svc
}

// writeStatus maps split-layer write errors onto ATT status codes. An
// out-of-range write is an invalid offset, not a generic failure, so
// the peer can tell a protocol bug from a flaky link.
func (p *Peripheral) writeStatus(rsp ble.ResponseWriter, err error) {
	switch {
	case err == nil:
		rsp.SetStatus(ble.ErrSuccess)
	case errors.Is(err, split.ErrInvalidOffset):
		p.logger.WithError(err).Warn("Rejected out-of-range write")
		rsp.SetStatus(ble.ErrInvalidOffset)
	default:
		p.logger.WithError(err).Error("Characteristic write failed")
		rsp.SetStatus(ble.ErrUnlikely)
	}
}

// notifierSink adapts a ble.Notifier to the mirror's sink interface.
type notifierSink struct {
	n ble.Notifier
}

func (s notifierSink) Notify(data []byte) error {
	_, err := s.n.Write(data)
	return err
}
