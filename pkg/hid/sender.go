package hid

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xudongzheng/zmk/internal/work"
)

// SenderOptions configures a Sender.
type SenderOptions struct {
	// Endpoint delivers reports. Required.
	Endpoint Endpoint

	// WorkQueue runs the drain step. Required; it may be shared with
	// other deferred jobs (indicator notifications run on the same
	// queue), which also guarantees at most one delivery attempt is in
	// flight.
	WorkQueue *work.Queue

	// QueueCapacity is the report queue's slot count (0 = default 8).
	QueueCapacity int

	// MaxAttempts is the delivery attempt bound per report before the
	// head is dropped (0 = default 3).
	MaxAttempts int

	// RetryBackoff is the delay before reattempting a failed delivery
	// (0 = default 10ms).
	RetryBackoff time.Duration

	Logger *logrus.Logger
}

// DefaultSenderOptions returns the standard retry policy.
func DefaultSenderOptions(endpoint Endpoint, workq *work.Queue) *SenderOptions {
	return &SenderOptions{
		Endpoint:      endpoint,
		WorkQueue:     workq,
		QueueCapacity: DefaultQueueCapacity,
		MaxAttempts:   3,
		RetryBackoff:  10 * time.Millisecond,
	}
}

// Sender queues outbound reports and drains them to the endpoint one at
// a time. A failed delivery is retried with a fixed backoff; after
// MaxAttempts consecutive failures the head report is dropped and
// draining continues. Reports are never reordered and a drop only ever
// affects the current head.
//
// There is no end-to-end acknowledgement: loss past the retry bound is
// accepted and logged, not reported back to the producer.
type Sender struct {
	endpoint Endpoint
	queue    *Queue
	workq    *work.Queue
	item     *work.Item
	logger   *logrus.Logger

	maxAttempts int
	backoff     time.Duration

	// failed counts consecutive delivery failures for the current head
	// report. Only the drain handler touches it, and the single-worker
	// queue serializes handler runs.
	failed int
}

// NewSender creates a Sender.
func NewSender(opts *SenderOptions) (*Sender, error) {
	if opts == nil || opts.Endpoint == nil {
		return nil, fmt.Errorf("failed to create sender: endpoint is required")
	}
	if opts.WorkQueue == nil {
		return nil, fmt.Errorf("failed to create sender: work queue is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	backoff := opts.RetryBackoff
	if backoff <= 0 {
		backoff = 10 * time.Millisecond
	}

	s := &Sender{
		endpoint:    opts.Endpoint,
		queue:       NewQueue(opts.QueueCapacity),
		workq:       opts.WorkQueue,
		logger:      logger,
		maxAttempts: maxAttempts,
		backoff:     backoff,
	}
	s.item = work.NewItem(s.drain)
	return s, nil
}

// Send queues a report for delivery. The endpoint's status gates the
// call: a suspended endpoint gets a wake request and nothing is queued;
// any other non-ready status fails fast with ErrNotReady. A full queue
// fails with ErrQueueFull.
func (s *Sender) Send(p []byte) error {
	if len(p) > MaxReportSize {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrReportTooLarge, len(p), MaxReportSize)
	}

	switch s.endpoint.Status() {
	case StatusSuspended:
		return s.endpoint.RequestWake()
	case StatusDisconnected, StatusError, StatusResetting, StatusUnknown:
		return fmt.Errorf("%w: endpoint %s", ErrNotReady, s.endpoint.Status())
	}

	var r Report
	r.Len = uint8(copy(r.Data[:], p))
	if err := s.queue.Put(r); err != nil {
		s.logger.WithError(err).Error("Failed to queue HID report")
		return err
	}

	// Schedule rather than reschedule so an in-progress retry backoff
	// keeps its deadline.
	s.workq.Schedule(s.item, 0)
	return nil
}

// InReady re-arms the drain worker immediately. Endpoints call it from
// their "can send now" interrupt; it supersedes any pending backoff.
func (s *Sender) InReady() {
	s.workq.Reschedule(s.item, 0)
}

// Pending returns the number of undelivered reports.
func (s *Sender) Pending() int {
	return s.queue.Len()
}

// drain is the worker step: deliver queued reports head-first until the
// queue is empty or a failing head forces a backoff.
func (s *Sender) drain() {
	for {
		r, ok := s.queue.Peek()
		if !ok {
			return
		}

		if err := s.endpoint.Write(r.Bytes()); err != nil {
			s.failed++
			if s.failed < s.maxAttempts {
				s.logger.WithError(err).WithFields(logrus.Fields{
					"attempt": s.failed,
					"backoff": s.backoff,
				}).Debug("HID report write failed, retrying")
				s.workq.Reschedule(s.item, s.backoff)
				return
			}
			s.logger.WithError(err).WithField("failures", s.failed).
				Error("Dropped HID report after consecutive write failures")
		}

		// Delivered, or dropped past the attempt bound; either way the
		// head leaves the queue and the failure streak ends.
		s.queue.Get()
		s.failed = 0
	}
}
