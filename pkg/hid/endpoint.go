// Package hid implements the outbound HID report pipeline: a bounded
// queue of opaque input reports and a drain worker that delivers them
// one at a time through an abstract endpoint, retrying transient write
// failures a fixed number of times before dropping.
package hid

import "io"

// Status is the delivery endpoint's readiness, mirroring the state set
// a USB device controller reports. Only StatusReady permits immediate
// send attempts.
type Status int

const (
	StatusReady Status = iota
	StatusSuspended
	StatusDisconnected
	StatusError
	StatusResetting
	StatusUnknown
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusSuspended:
		return "suspended"
	case StatusDisconnected:
		return "disconnected"
	case StatusError:
		return "error"
	case StatusResetting:
		return "resetting"
	default:
		return "unknown"
	}
}

// Endpoint is the physical interface reports are delivered through.
// Write corresponds to one interrupt-transfer attempt and may fail
// transiently. RequestWake asks a suspended host to resume; the
// endpoint signals readiness back through Sender.InReady.
type Endpoint interface {
	Status() Status
	Write(p []byte) error
	RequestWake() error
}

// WriterEndpoint adapts an io.Writer (a USB gadget HID character
// device, a capture file) into an always-ready Endpoint.
type WriterEndpoint struct {
	W io.Writer
}

func (e *WriterEndpoint) Status() Status { return StatusReady }

func (e *WriterEndpoint) Write(p []byte) error {
	_, err := e.W.Write(p)
	return err
}

func (e *WriterEndpoint) RequestWake() error { return nil }
