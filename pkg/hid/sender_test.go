package hid_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"

	"github.com/xudongzheng/zmk/internal/work"
	"github.com/xudongzheng/zmk/pkg/hid"
)

// scriptedEndpoint fails the first failures write attempts and records
// every delivery attempt with its timestamp.
type scriptedEndpoint struct {
	mu       sync.Mutex
	status   hid.Status
	failures int
	attempts [][]byte
	times    []time.Time
	wakes    int
}

func (e *scriptedEndpoint) Status() hid.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

func (e *scriptedEndpoint) setStatus(s hid.Status) {
	e.mu.Lock()
	e.status = s
	e.mu.Unlock()
}

func (e *scriptedEndpoint) Write(p []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attempts = append(e.attempts, append([]byte(nil), p...))
	e.times = append(e.times, time.Now())
	if e.failures > 0 {
		e.failures--
		return errors.New("ep write failed")
	}
	return nil
}

func (e *scriptedEndpoint) RequestWake() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.wakes++
	return nil
}

func (e *scriptedEndpoint) snapshot() ([][]byte, []time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]byte(nil), e.attempts...), append([]time.Time(nil), e.times...)
}

type SenderTestSuite struct {
	suite.Suite

	logger   *logrus.Logger
	workq    *work.Queue
	endpoint *scriptedEndpoint
}

func (suite *SenderTestSuite) SetupTest() {
	suite.logger = logrus.New()
	suite.logger.SetLevel(logrus.PanicLevel)
	suite.workq = work.NewQueue("test-hid-drain", suite.logger)
	suite.endpoint = &scriptedEndpoint{status: hid.StatusReady}
}

func (suite *SenderTestSuite) TearDownTest() {
	suite.workq.Stop()
}

func (suite *SenderTestSuite) newSender(opts *hid.SenderOptions) *hid.Sender {
	if opts == nil {
		opts = hid.DefaultSenderOptions(suite.endpoint, suite.workq)
	}
	if opts.Logger == nil {
		opts.Logger = suite.logger
	}
	sender, err := hid.NewSender(opts)
	suite.Require().NoError(err)
	return sender
}

func (suite *SenderTestSuite) drained(sender *hid.Sender) {
	suite.Require().Eventually(func() bool {
		return sender.Pending() == 0
	}, 2*time.Second, time.Millisecond)
}

func (suite *SenderTestSuite) TestNewSenderValidation() {
	_, err := hid.NewSender(nil)
	suite.Error(err)

	_, err = hid.NewSender(&hid.SenderOptions{Endpoint: suite.endpoint})
	suite.Error(err)

	_, err = hid.NewSender(&hid.SenderOptions{WorkQueue: suite.workq})
	suite.Error(err)
}

func (suite *SenderTestSuite) TestDeliversInOrder() {
	sender := suite.newSender(nil)

	for i := byte(0); i < 5; i++ {
		suite.Require().NoError(sender.Send([]byte{i, i + 1}))
	}
	suite.drained(sender)

	attempts, _ := suite.endpoint.snapshot()
	suite.Require().Len(attempts, 5)
	for i := byte(0); i < 5; i++ {
		suite.Equal([]byte{i, i + 1}, attempts[i])
	}
}

func (suite *SenderTestSuite) TestReportTooLarge() {
	sender := suite.newSender(nil)
	err := sender.Send(make([]byte, hid.MaxReportSize+1))
	suite.ErrorIs(err, hid.ErrReportTooLarge)
}

func (suite *SenderTestSuite) TestSuspendedRequestsWake() {
	suite.endpoint.setStatus(hid.StatusSuspended)
	sender := suite.newSender(nil)

	suite.Require().NoError(sender.Send([]byte{1}))

	suite.Equal(1, suite.endpoint.wakes)
	suite.Equal(0, sender.Pending(), "nothing queued while suspended")
}

func (suite *SenderTestSuite) TestNotReadyFailsFast() {
	for _, status := range []hid.Status{
		hid.StatusDisconnected, hid.StatusError, hid.StatusResetting, hid.StatusUnknown,
	} {
		suite.Run(status.String(), func() {
			suite.endpoint.setStatus(status)
			sender := suite.newSender(nil)

			err := sender.Send([]byte{1})
			suite.ErrorIs(err, hid.ErrNotReady)
			suite.Equal(0, sender.Pending())
		})
	}
}

func (suite *SenderTestSuite) TestQueueFull() {
	// A permanently failing endpoint with a long backoff keeps the head
	// parked so the queue can fill deterministically.
	suite.endpoint.failures = 1 << 30
	opts := hid.DefaultSenderOptions(suite.endpoint, suite.workq)
	opts.QueueCapacity = 2
	opts.RetryBackoff = time.Hour
	sender := suite.newSender(opts)

	suite.Require().NoError(sender.Send([]byte{1}))
	suite.Require().NoError(sender.Send([]byte{2}))
	suite.ErrorIs(sender.Send([]byte{3}), hid.ErrQueueFull)
}

// TestRetryThenDrop: every delivery fails, so each report gets exactly
// three attempts at the retry backoff before it is dropped and the next
// becomes head.
func (suite *SenderTestSuite) TestRetryThenDrop() {
	suite.endpoint.failures = 1 << 30
	sender := suite.newSender(nil)

	suite.Require().NoError(sender.Send([]byte{1}))
	suite.Require().NoError(sender.Send([]byte{2}))
	suite.drained(sender)

	attempts, times := suite.endpoint.snapshot()
	suite.Require().Len(attempts, 6, "3 attempts per report")
	for i := 0; i < 3; i++ {
		suite.Equal([]byte{1}, attempts[i])
		suite.Equal([]byte{2}, attempts[i+3])
	}

	// Retries of the same report are spaced by the backoff.
	suite.GreaterOrEqual(times[2].Sub(times[0]), 20*time.Millisecond)
	suite.GreaterOrEqual(times[5].Sub(times[3]), 20*time.Millisecond)
}

// TestRecoveryOnThirdAttempt is the canonical mixed scenario: the first
// report needs three attempts, the rest then flow immediately.
func (suite *SenderTestSuite) TestRecoveryOnThirdAttempt() {
	suite.endpoint.failures = 2
	sender := suite.newSender(nil)

	start := time.Now()
	suite.Require().NoError(sender.Send([]byte{1, 1, 1, 1, 1, 1}))
	suite.Require().NoError(sender.Send([]byte{2, 2, 2, 2, 2, 2}))
	suite.Require().NoError(sender.Send([]byte{3, 3}))
	suite.drained(sender)

	attempts, _ := suite.endpoint.snapshot()
	suite.Require().Len(attempts, 5, "2 failures + 3 deliveries")
	suite.Equal([]byte{1, 1, 1, 1, 1, 1}, attempts[0])
	suite.Equal([]byte{1, 1, 1, 1, 1, 1}, attempts[1])
	suite.Equal([]byte{1, 1, 1, 1, 1, 1}, attempts[2], "first report delivered on its third attempt")
	suite.Equal([]byte{2, 2, 2, 2, 2, 2}, attempts[3])
	suite.Equal([]byte{3, 3}, attempts[4])

	suite.GreaterOrEqual(time.Since(start), 20*time.Millisecond, "two backoff periods elapsed")

	// The failure streak ended with the successful delivery: a fresh
	// always-failing stretch gets the full three attempts again.
	suite.endpoint.failures = 1 << 30
	suite.Require().NoError(sender.Send([]byte{4}))
	suite.drained(sender)
	attempts, _ = suite.endpoint.snapshot()
	suite.Len(attempts, 8)
}

// TestInReadySupersedesBackoff parks a failed head behind a very long
// backoff, then fires the ready callback and expects prompt delivery.
func (suite *SenderTestSuite) TestInReadySupersedesBackoff() {
	suite.endpoint.failures = 1
	opts := hid.DefaultSenderOptions(suite.endpoint, suite.workq)
	opts.RetryBackoff = time.Hour
	sender := suite.newSender(opts)

	suite.Require().NoError(sender.Send([]byte{9}))
	suite.Require().Eventually(func() bool {
		attempts, _ := suite.endpoint.snapshot()
		return len(attempts) == 1
	}, time.Second, time.Millisecond)

	sender.InReady()
	suite.drained(sender)

	attempts, _ := suite.endpoint.snapshot()
	suite.Require().Len(attempts, 2)
	suite.Equal([]byte{9}, attempts[1])
}

func TestSenderTestSuite(t *testing.T) {
	suite.Run(t, new(SenderTestSuite))
}
