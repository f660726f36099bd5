package hid

import "sync"

const (
	// MaxReportSize is the largest report payload the pipeline carries:
	// one interrupt-transfer frame.
	MaxReportSize = 16

	// DefaultQueueCapacity is the report queue's slot count unless
	// configured otherwise.
	DefaultQueueCapacity = 8
)

// Report is one opaque outbound input report.
type Report struct {
	Data [MaxReportSize]byte
	Len  uint8
}

// Bytes returns the report's payload slice.
func (r *Report) Bytes() []byte {
	return r.Data[:r.Len]
}

// Queue is a bounded FIFO of reports. Capacity is fixed at
// construction. All operations are short, non-blocking critical
// sections, so a high-priority producer can enqueue safely while the
// drain worker is mid-cycle.
type Queue struct {
	mu    sync.Mutex
	slots []Report
	head  int
	count int
}

// NewQueue creates a queue with the given capacity; zero or negative
// selects DefaultQueueCapacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{slots: make([]Report, capacity)}
}

// Put appends a report. Fails with ErrQueueFull instead of blocking.
func (q *Queue) Put(r Report) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == len(q.slots) {
		return ErrQueueFull
	}
	q.slots[(q.head+q.count)%len(q.slots)] = r
	q.count++
	return nil
}

// Peek returns the head report without removing it.
func (q *Queue) Peek() (Report, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return Report{}, false
	}
	return q.slots[q.head], true
}

// Get removes and returns the head report.
func (q *Queue) Get() (Report, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return Report{}, false
	}
	r := q.slots[q.head]
	q.head = (q.head + 1) % len(q.slots)
	q.count--
	return r, true
}

// Len returns the number of queued reports.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the queue's fixed capacity.
func (q *Queue) Cap() int {
	return len(q.slots)
}
