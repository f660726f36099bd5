package split

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xudongzheng/zmk/pkg/behavior"
)

// BehaviorResolver resolves behavior names to implementations.
// *behavior.Registry satisfies it.
type BehaviorResolver interface {
	Get(name string) (behavior.Behavior, error)
}

// Options configures a Service.
type Options struct {
	// Registry resolves dispatched behavior names. Required.
	Registry BehaviorResolver

	// Logger receives per-write traces and dispatch failures.
	Logger *logrus.Logger

	// Clock supplies the timestamp attached to dispatched events, in
	// milliseconds. Defaults to uptime of the Service.
	Clock func() int64

	// ReassemblyTimeout discards a stale partial message when the next
	// write arrives more than this long after the previous one. Zero
	// disables the check, matching the wire protocol's original
	// behavior where an abandoned message blocks the buffer forever.
	ReassemblyTimeout time.Duration
}

// Service reassembles run-behavior commands from offset-addressed
// partial writes and dispatches them.
//
// There is exactly one reassembly buffer: the protocol has no message
// pipelining, and a new message simply overwrites the buffer in place
// starting at offset 0 by convention of the sender.
type Service struct {
	registry BehaviorResolver
	logger   *logrus.Logger
	clock    func() int64
	timeout  time.Duration

	mu        sync.Mutex
	buf       [payloadSize]byte
	coverage  uint32 // bit i set once byte i has been written since the last decode
	lastWrite time.Time
}

// NewService creates a Service.
func NewService(opts *Options) (*Service, error) {
	if opts == nil || opts.Registry == nil {
		return nil, fmt.Errorf("failed to create split service: behavior registry is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}

	clock := opts.Clock
	if clock == nil {
		start := time.Now()
		clock = func() int64 { return time.Since(start).Milliseconds() }
	}

	return &Service{
		registry: opts.Registry,
		logger:   logger,
		clock:    clock,
		timeout:  opts.ReassemblyTimeout,
	}, nil
}

// payloadComplete reports whether the reassembly buffer holds a full
// message after a write ending at the exclusive offset end. Two
// conditions must hold: every header byte has been written, and the
// final byte of this write is the name's NUL terminator (which implies
// it lies within the identifier region). Kept as a pure function so the
// completion rule is testable apart from I/O.
func payloadComplete(coverage uint32, buf []byte, end int) bool {
	if coverage&headerCoverageMask != headerCoverageMask {
		return false
	}
	if end <= headerSize {
		return false
	}
	return buf[end-1] == 0
}

// WriteRunBehavior applies one partial write at the given offset.
// Writes whose range exceeds the payload buffer are rejected with
// ErrInvalidOffset and leave the buffer untouched. When a write
// completes a message, the decoded command is dispatched before
// WriteRunBehavior returns; dispatch failures are logged and swallowed
// because the transport has no response channel to report them on.
func (s *Service) WriteRunBehavior(offset int, data []byte) error {
	end := offset + len(data)
	if offset < 0 || end > payloadSize {
		return fmt.Errorf("%w: offset %d len %d exceeds %d", ErrInvalidOffset, offset, len(data), payloadSize)
	}

	s.logger.WithFields(logrus.Fields{
		"offset": offset,
		"len":    len(data),
	}).Debug("Run-behavior write")

	s.mu.Lock()
	now := time.Now()
	if s.timeout > 0 && s.coverage != 0 && now.Sub(s.lastWrite) > s.timeout {
		// Stale partial message from a peer that went away mid-stream.
		// Discarding it here is a deliberate safety margin on top of
		// the wire protocol, which has no reset of its own.
		s.logger.WithField("idle", now.Sub(s.lastWrite)).Warn("Discarding stale partial run-behavior message")
		s.coverage = 0
	}
	s.lastWrite = now

	copy(s.buf[offset:end], data)
	for i := offset; i < end; i++ {
		s.coverage |= 1 << i
	}

	if !payloadComplete(s.coverage, s.buf[:], end) {
		s.mu.Unlock()
		return nil
	}

	payload := decodePayload(s.buf[:], end)
	s.coverage = 0
	s.mu.Unlock()

	s.dispatch(payload)
	return nil
}

func (s *Service) dispatch(p RunBehaviorPayload) {
	b, err := s.registry.Get(p.Behavior)
	if err != nil {
		s.logger.WithError(err).WithField("behavior", p.Behavior).Error("Failed to resolve behavior")
		return
	}

	binding := behavior.Binding{Name: p.Behavior, Param1: p.Param1, Param2: p.Param2}
	event := behavior.Event{Position: p.Position, Timestamp: s.clock()}
	pressed := p.State > 0

	s.logger.WithFields(logrus.Fields{
		"behavior": p.Behavior,
		"param1":   p.Param1,
		"param2":   p.Param2,
		"position": p.Position,
		"pressed":  pressed,
	}).Debug("Dispatching behavior")

	if pressed {
		err = b.Pressed(binding, event)
	} else {
		err = b.Released(binding, event)
	}
	if err != nil {
		s.logger.WithError(err).WithField("behavior", p.Behavior).Error("Failed to invoke behavior")
	}
}
