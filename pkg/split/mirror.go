package split

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/xudongzheng/zmk/internal/work"
)

const (
	// PositionCount is the number of key positions covered by the
	// position state bitset, one bit per position.
	PositionCount = 128

	positionStateLen = PositionCount / 8
	indicatorsLen    = 1
	maxSensorLen     = 16
)

// Notifier pushes state bytes to a subscribed remote peer. Failures are
// non-fatal; the mirror logs them and moves on, since state is
// latest-value and the next change carries the fresh truth.
type Notifier interface {
	Notify(data []byte) error
}

// MirrorOptions configures a Mirror.
type MirrorOptions struct {
	// Sensors enables the sensor state slot. When false,
	// SetSensorState is a no-op.
	Sensors bool

	// WorkQueue runs the deferred indicator-change notification. When
	// nil, OnIndicatorsChanged is invoked synchronously from
	// WriteIndicators.
	WorkQueue *work.Queue

	// OnIndicatorsChanged observes the indicator bitmask after each
	// write. Invocations coalesce: the job reads current state, so N
	// rapid writes may produce fewer than N calls, always ending on
	// the latest value.
	OnIndicatorsChanged func(indicators uint8)

	Logger *logrus.Logger
}

// Mirror holds the last-known state blobs a keyboard half exposes to
// its peer: the key position bitset, the most recent sensor event, and
// the host's HID indicator bitmask. It keeps no history.
type Mirror struct {
	sensors      bool
	workq        *work.Queue
	onIndicators func(uint8)
	logger       *logrus.Logger

	mu            sync.Mutex
	positionState [positionStateLen]byte
	sensorState   [maxSensorLen]byte
	sensorLen     int
	indicators    [indicatorsLen]byte
	posSink       Notifier
	sensorSink    Notifier

	indicatorJob *work.Item
}

// NewMirror creates a Mirror.
func NewMirror(opts *MirrorOptions) *Mirror {
	if opts == nil {
		opts = &MirrorOptions{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}

	m := &Mirror{
		sensors:      opts.Sensors,
		workq:        opts.WorkQueue,
		onIndicators: opts.OnIndicatorsChanged,
		logger:       logger,
	}
	m.indicatorJob = work.NewItem(m.notifyIndicators)
	return m
}

// SetPositionSink installs the notifier for position state changes.
// Pass nil when the peer unsubscribes.
func (m *Mirror) SetPositionSink(n Notifier) {
	m.mu.Lock()
	m.posSink = n
	m.mu.Unlock()
}

// SetSensorSink installs the notifier for sensor state changes.
func (m *Mirror) SetSensorSink(n Notifier) {
	m.mu.Lock()
	m.sensorSink = n
	m.mu.Unlock()
}

// SetPositionState overwrites the stored bitset with bits (truncated to
// the fixed width) and notifies the position sink.
func (m *Mirror) SetPositionState(bits []byte) {
	m.mu.Lock()
	n := copy(m.positionState[:], bits)
	state := make([]byte, n)
	copy(state, m.positionState[:n])
	sink := m.posSink
	m.mu.Unlock()

	m.notify(sink, state, "position")
}

// PositionState returns a copy of the stored bitset.
func (m *Mirror) PositionState() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := make([]byte, positionStateLen)
	copy(state, m.positionState[:])
	return state
}

// NumPositions returns the bitset's position capacity. The transport
// exposes it as a readable descriptor so the peer can size its view.
func (m *Mirror) NumPositions() uint8 {
	return PositionCount
}

// SetSensorState overwrites the stored sensor snapshot and notifies the
// sensor sink. Snapshots are opaque to the mirror; anything beyond the
// fixed slot size is truncated. No-op unless sensors are enabled.
func (m *Mirror) SetSensorState(snapshot []byte) {
	if !m.sensors {
		return
	}

	m.mu.Lock()
	m.sensorLen = copy(m.sensorState[:], snapshot)
	state := make([]byte, m.sensorLen)
	copy(state, m.sensorState[:m.sensorLen])
	sink := m.sensorSink
	m.mu.Unlock()

	m.notify(sink, state, "sensor")
}

// SensorState returns a copy of the stored sensor snapshot, or nil if
// none has been produced.
func (m *Mirror) SensorState() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sensorLen == 0 {
		return nil
	}
	state := make([]byte, m.sensorLen)
	copy(state, m.sensorState[:m.sensorLen])
	return state
}

// WriteIndicators applies one offset-addressed partial write to the
// indicator bitmask. Unlike run-behavior reassembly there is no
// completion predicate: every accepted write is a change in its own
// right and schedules one deferred notification.
func (m *Mirror) WriteIndicators(offset int, data []byte) error {
	end := offset + len(data)
	if offset < 0 || end > indicatorsLen {
		return fmt.Errorf("%w: offset %d len %d exceeds %d", ErrInvalidOffset, offset, len(data), indicatorsLen)
	}

	m.mu.Lock()
	copy(m.indicators[offset:end], data)
	m.mu.Unlock()

	if m.workq != nil {
		m.workq.Submit(m.indicatorJob)
	} else {
		m.notifyIndicators()
	}
	return nil
}

// Indicators returns the current indicator bitmask.
func (m *Mirror) Indicators() uint8 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.indicators[0]
}

func (m *Mirror) notifyIndicators() {
	if m.onIndicators == nil {
		return
	}
	v := m.Indicators()
	m.logger.WithField("indicators", fmt.Sprintf("%#02x", v)).Debug("Raising indicator change")
	m.onIndicators(v)
}

func (m *Mirror) notify(sink Notifier, state []byte, kind string) {
	if sink == nil {
		return
	}
	if err := sink.Notify(state); err != nil {
		m.logger.WithError(err).WithField("state", kind).Debug("Error notifying")
	}
}
