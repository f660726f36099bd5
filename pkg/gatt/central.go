package gatt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/xudongzheng/zmk/pkg/split"
)

// CentralOptions configures a central-side connection to a split
// peripheral.
type CentralOptions struct {
	Address        string
	ConnectTimeout time.Duration
	Logger         *logrus.Logger
}

// DefaultCentralOptions returns sensible defaults for connecting to a
// peripheral half.
func DefaultCentralOptions(address string) *CentralOptions {
	return &CentralOptions{
		Address:        address,
		ConnectTimeout: 30 * time.Second,
	}
}

// Central is a live connection to a split peripheral's GATT service.
type Central struct {
	client  ble.Client
	runChar *ble.Characteristic
	posChar *ble.Characteristic
	logger  *logrus.Logger

	writeMutex sync.Mutex
}

// Dial connects to the peripheral, discovers the split service, and
// resolves its characteristics.
func Dial(ctx context.Context, opts *CentralOptions) (*Central, error) {
	if opts == nil || opts.Address == "" {
		return nil, fmt.Errorf("failed to dial peripheral: device address is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	timeout := opts.ConnectTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	dev, err := NewBLEDevice()
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", err)
	}
	ble.SetDefaultDevice(dev)

	logger.WithField("address", opts.Address).Info("Connecting to split peripheral...")

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := ble.Dial(connectCtx, ble.NewAddr(opts.Address))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to peripheral: %w", err)
	}

	profile, err := client.DiscoverProfile(true)
	if err != nil {
		client.CancelConnection()
		return nil, fmt.Errorf("failed to discover profile: %w", err)
	}

	c := &Central{client: client, logger: logger}
	for _, svc := range profile.Services {
		if !svc.UUID.Equal(SplitServiceUUID) {
			continue
		}
		for _, char := range svc.Characteristics {
			switch {
			case char.UUID.Equal(RunBehaviorCharUUID):
				c.runChar = char
			case char.UUID.Equal(PositionStateCharUUID):
				c.posChar = char
			}
		}
	}
	if c.runChar == nil || c.posChar == nil {
		client.CancelConnection()
		return nil, fmt.Errorf("split service %s not found on %s", SplitServiceUUID, opts.Address)
	}

	logger.Info("Split service discovered")
	return c, nil
}

// InvokeBehavior encodes the payload and writes it to the run-behavior
// characteristic without response. The ATT layer fragments writes
// larger than the negotiated MTU; the peripheral reassembles them from
// the resulting offset-addressed partial writes.
func (c *Central) InvokeBehavior(p *split.RunBehaviorPayload) error {
	data, err := p.Encode()
	if err != nil {
		return err
	}

	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()

	c.logger.WithFields(logrus.Fields{
		"behavior": p.Behavior,
		"position": p.Position,
		"pressed":  p.State > 0,
	}).Debug("Invoking remote behavior")

	if err := c.client.WriteCharacteristic(c.runChar, data, true); err != nil {
		return fmt.Errorf("failed to write run-behavior payload: %w", err)
	}
	return nil
}

// SubscribePositionState subscribes to position bitset notifications.
func (c *Central) SubscribePositionState(f func(state []byte)) error {
	if err := c.client.Subscribe(c.posChar, false, func(data []byte) {
		f(data)
	}); err != nil {
		return fmt.Errorf("failed to subscribe to position state: %w", err)
	}
	return nil
}

// ReadPositionState reads the peripheral's current position bitset.
func (c *Central) ReadPositionState() ([]byte, error) {
	data, err := c.client.ReadCharacteristic(c.posChar)
	if err != nil {
		return nil, fmt.Errorf("failed to read position state: %w", err)
	}
	return data, nil
}

// Close tears the connection down.
func (c *Central) Close() error {
	return c.client.CancelConnection()
}
