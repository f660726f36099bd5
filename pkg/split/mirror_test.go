package split_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/xudongzheng/zmk/internal/work"
	"github.com/xudongzheng/zmk/pkg/split"
)

// recordingNotifier captures notified state blobs.
type recordingNotifier struct {
	mu     sync.Mutex
	states [][]byte
	err    error
}

func (n *recordingNotifier) Notify(data []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.states = append(n.states, append([]byte(nil), data...))
	return n.err
}

func (n *recordingNotifier) notified() [][]byte {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([][]byte(nil), n.states...)
}

type MirrorTestSuite struct {
	suite.Suite

	logger *logrus.Logger
}

func (suite *MirrorTestSuite) SetupTest() {
	suite.logger = logrus.New()
	suite.logger.SetLevel(logrus.PanicLevel)
}

func (suite *MirrorTestSuite) TestPositionState() {
	mirror := split.NewMirror(&split.MirrorOptions{Logger: suite.logger})
	sink := &recordingNotifier{}
	mirror.SetPositionSink(sink)

	bits := []byte{0x01, 0x80, 0x00, 0x20}
	mirror.SetPositionState(bits)

	suite.Equal(bits, mirror.PositionState()[:4])
	suite.Equal([][]byte{bits}, sink.notified())

	suite.Run("stored state is a copy", func() {
		state := mirror.PositionState()
		state[0] = 0xFF
		suite.Equal(byte(0x01), mirror.PositionState()[0])
	})

	suite.Run("notify errors are absorbed", func() {
		sink.err = errors.New("peer gone")
		mirror.SetPositionState([]byte{0x02})
		suite.Equal(byte(0x02), mirror.PositionState()[0])
	})

	suite.Run("nil sink is fine", func() {
		mirror.SetPositionSink(nil)
		mirror.SetPositionState([]byte{0x04})
		suite.Equal(byte(0x04), mirror.PositionState()[0])
	})
}

func (suite *MirrorTestSuite) TestNumPositions() {
	mirror := split.NewMirror(&split.MirrorOptions{Logger: suite.logger})
	suite.Equal(uint8(split.PositionCount), mirror.NumPositions())
	suite.Len(mirror.PositionState(), split.PositionCount/8)
}

func (suite *MirrorTestSuite) TestSensorState() {
	suite.Run("disabled", func() {
		mirror := split.NewMirror(&split.MirrorOptions{Logger: suite.logger})
		sink := &recordingNotifier{}
		mirror.SetSensorSink(sink)

		mirror.SetSensorState([]byte{1, 2, 3})
		suite.Nil(mirror.SensorState())
		suite.Empty(sink.notified())
	})

	suite.Run("enabled", func() {
		mirror := split.NewMirror(&split.MirrorOptions{Sensors: true, Logger: suite.logger})
		sink := &recordingNotifier{}
		mirror.SetSensorSink(sink)

		snapshot := []byte{0x01, 0x10, 0x00, 0x7F}
		mirror.SetSensorState(snapshot)
		suite.Equal(snapshot, mirror.SensorState())
		suite.Equal([][]byte{snapshot}, sink.notified())
	})
}

func (suite *MirrorTestSuite) TestWriteIndicators() {
	var (
		mu       sync.Mutex
		observed []uint8
	)
	mirror := split.NewMirror(&split.MirrorOptions{
		Logger: suite.logger,
		OnIndicatorsChanged: func(v uint8) {
			mu.Lock()
			observed = append(observed, v)
			mu.Unlock()
		},
	})

	// No work queue configured: the notification runs synchronously.
	suite.Require().NoError(mirror.WriteIndicators(0, []byte{0x05}))
	suite.Equal(uint8(0x05), mirror.Indicators())
	suite.Equal([]uint8{0x05}, observed)

	suite.Run("overflow leaves the bitmask untouched", func() {
		err := mirror.WriteIndicators(0, []byte{1, 2})
		suite.ErrorIs(err, split.ErrInvalidOffset)
		err = mirror.WriteIndicators(1, []byte{1})
		suite.ErrorIs(err, split.ErrInvalidOffset)
		suite.Equal(uint8(0x05), mirror.Indicators())
		suite.Len(observed, 1)
	})
}

// TestIndicatorNotifyCoalesces blocks the work queue so two writes land
// before the notification job runs, then verifies a single callback
// observing the final value.
func (suite *MirrorTestSuite) TestIndicatorNotifyCoalesces() {
	workq := work.NewQueue("test-lowprio", suite.logger)
	defer workq.Stop()

	var (
		mu       sync.Mutex
		observed []uint8
	)
	mirror := split.NewMirror(&split.MirrorOptions{
		Logger:    suite.logger,
		WorkQueue: workq,
		OnIndicatorsChanged: func(v uint8) {
			mu.Lock()
			observed = append(observed, v)
			mu.Unlock()
		},
	})

	// Occupy the single worker so indicator jobs stay pending.
	block := make(chan struct{})
	running := make(chan struct{})
	workq.Submit(work.NewItem(func() {
		close(running)
		<-block
	}))
	<-running

	suite.Require().NoError(mirror.WriteIndicators(0, []byte{0x01}))
	suite.Require().NoError(mirror.WriteIndicators(0, []byte{0x03}))
	close(block)

	suite.Require().Eventually(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(observed) > 0
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	suite.Equal([]uint8{0x03}, observed, "coalesced job observes only the latest value")
}

func TestMirrorTestSuite(t *testing.T) {
	suite.Run(t, new(MirrorTestSuite))
}

func TestMirrorNilOptions(t *testing.T) {
	mirror := split.NewMirror(nil)
	require.NotNil(t, mirror)
	require.Equal(t, uint8(0), mirror.Indicators())
}
