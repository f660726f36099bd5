package hid

import "errors"

var (
	// ErrQueueFull indicates a non-blocking enqueue against a full
	// report queue. The report is not queued; the caller drops it or
	// retries later.
	ErrQueueFull = errors.New("report queue full")

	// ErrNotReady indicates the endpoint is in a state (disconnected,
	// error, resetting, unknown) where queuing a report would be
	// pointless. Nothing is queued.
	ErrNotReady = errors.New("endpoint not ready")

	// ErrReportTooLarge indicates a report exceeding the transport's
	// maximum packet size.
	ErrReportTooLarge = errors.New("report exceeds maximum size")
)
