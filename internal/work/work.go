// Package work provides a single-goroutine cooperative work queue with
// support for delayed scheduling. It is the executor for every deferred
// job in the control plane: the HID report drain step and the indicator
// change notifications both run here, one at a time, so they never race
// each other.
//
// The scheduling primitives mirror an RTOS delayable work item:
//
//   - Submit queues an item to run as soon as possible.
//   - Schedule queues an item with a delay, but keeps the existing
//     deadline if the item is already pending. This preserves an
//     in-progress retry backoff when a producer enqueues more data.
//   - Reschedule queues an item with a delay, replacing any existing
//     deadline. An "interface ready" signal uses this to cut a pending
//     backoff short.
//
// Handlers run outside the queue lock, so a handler may freely
// reschedule its own item.
package work

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xudongzheng/zmk/internal/groutine"
)

// Item is a unit of deferrable work. An Item may be pending on at most
// one deadline at a time; scheduling an already-pending item follows the
// Schedule/Reschedule semantics described in the package comment.
type Item struct {
	fn func()
}

// NewItem wraps fn as a schedulable work item.
func NewItem(fn func()) *Item {
	return &Item{fn: fn}
}

// Queue is a cooperative work queue serviced by a single goroutine.
type Queue struct {
	logger *logrus.Logger

	mu      sync.Mutex
	pending map[*Item]time.Time

	wake     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewQueue creates a queue and starts its worker goroutine under the
// given name.
func NewQueue(name string, logger *logrus.Logger) *Queue {
	if logger == nil {
		logger = logrus.New()
	}

	q := &Queue{
		logger:  logger,
		pending: make(map[*Item]time.Time),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}

	q.wg.Add(1)
	groutine.Go(context.Background(), name, func(ctx context.Context) {
		defer q.wg.Done()
		defer logger.Debugf("%s: exiting", groutine.GetName(ctx))
		q.run()
	})

	return q
}

// Submit queues the item to run as soon as possible. Equivalent to
// Schedule(item, 0).
func (q *Queue) Submit(item *Item) {
	q.Schedule(item, 0)
}

// Schedule queues the item to run after delay. If the item is already
// pending, its existing deadline is kept and Schedule reports false.
func (q *Queue) Schedule(item *Item, delay time.Duration) bool {
	q.mu.Lock()
	if _, ok := q.pending[item]; ok {
		q.mu.Unlock()
		return false
	}
	q.pending[item] = time.Now().Add(delay)
	q.mu.Unlock()

	q.notify()
	return true
}

// Reschedule queues the item to run after delay, replacing any existing
// deadline.
func (q *Queue) Reschedule(item *Item, delay time.Duration) {
	q.mu.Lock()
	q.pending[item] = time.Now().Add(delay)
	q.mu.Unlock()

	q.notify()
}

// Stop shuts the worker down and waits for it to exit. Pending items
// are discarded.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		close(q.stop)
	})
	q.wg.Wait()
}

func (q *Queue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// next returns the earliest-deadline item if it is due, removing it
// from the pending set; otherwise it returns how long until that item
// is due. found is false when nothing is pending at all.
func (q *Queue) next(now time.Time) (*Item, time.Duration, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var (
		earliest *Item
		deadline time.Time
	)
	for item, at := range q.pending {
		if earliest == nil || at.Before(deadline) {
			earliest = item
			deadline = at
		}
	}
	if earliest == nil {
		return nil, 0, false
	}
	if wait := deadline.Sub(now); wait > 0 {
		return nil, wait, true
	}

	delete(q.pending, earliest)
	return earliest, 0, true
}

func (q *Queue) run() {
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		item, wait, found := q.next(time.Now())
		if item != nil {
			item.fn()
			continue
		}

		if !found {
			// Nothing pending; sleep until woken.
			select {
			case <-q.wake:
			case <-q.stop:
				return
			}
			continue
		}

		timer.Reset(wait)
		select {
		case <-timer.C:
		case <-q.wake:
			if !timer.Stop() {
				<-timer.C
			}
		case <-q.stop:
			if !timer.Stop() {
				<-timer.C
			}
			return
		}
	}
}
