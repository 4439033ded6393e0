package engine

import (
	"sync"

	"github.com/roach88/nback/internal/model"
)

// Update is one notification for the host: either a new trial event or a
// fresh render snapshot.
type Update struct {
	Event    *model.TrialEvent
	Snapshot *model.Snapshot
}

// UpdateQueue is a thread-safe FIFO of updates published by the engine.
//
// The queue is unbounded so publishing never blocks the engine, whatever the
// renderer is doing. A renderer drains it from its own goroutine:
//
//	for {
//	    select {
//	    case <-ctx.Done():
//	        return
//	    case <-q.Wait():
//	        for _, u := range q.Drain() { render(u) }
//	    }
//	}
type UpdateQueue struct {
	mu      sync.Mutex
	updates []Update
	closed  bool
	signal  chan struct{} // buffered, size 1
}

// NewUpdateQueue creates an empty queue.
func NewUpdateQueue() *UpdateQueue {
	return &UpdateQueue{
		updates: make([]Update, 0, 64),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds an update to the back of the queue.
// Returns false if the queue is closed.
func (q *UpdateQueue) Enqueue(u Update) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.updates = append(q.updates, u)

	// Non-blocking; the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes and returns the front update without blocking.
func (q *UpdateQueue) TryDequeue() (Update, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.updates) == 0 {
		return Update{}, false
	}

	u := q.updates[0]
	q.updates[0] = Update{} // release pointers for GC

	if len(q.updates) == 1 {
		q.updates = q.updates[:0]
	} else {
		q.updates = q.updates[1:]
	}

	return u, true
}

// Drain removes and returns every queued update in order.
func (q *UpdateQueue) Drain() []Update {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Update, len(q.updates))
	copy(out, q.updates)
	clear(q.updates)
	q.updates = q.updates[:0]
	return out
}

// Wait returns a channel that signals when updates may be available. The
// channel is closed when the queue is closed.
func (q *UpdateQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *UpdateQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.updates)
}

// Close signals that no more updates will be enqueued and wakes waiters.
func (q *UpdateQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
