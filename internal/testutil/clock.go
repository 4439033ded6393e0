package testutil

import (
	"sort"
	"sync"
	"time"

	"github.com/roach88/nback/internal/clock"
)

// Epoch is the default start time of a FakeClock. Golden files depend on it.
var Epoch = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

// FakeClock is a manually advanced clock.Clock for tests.
//
// Time only moves when Advance is called. Timers scheduled with AfterFunc
// fire during Advance, in due-time order; timers due at the same instant
// fire in the order they were scheduled. Callbacks run without the clock's
// lock held, so they may call Now, AfterFunc or Stop, and a timer scheduled
// by a callback fires within the same Advance if it falls due.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	nextID uint64
	timers []*fakeTimer
}

type fakeTimer struct {
	c    *FakeClock
	id   uint64
	when time.Time
	f    func()
}

// NewFakeClock creates a clock reading start. A zero start means Epoch.
func NewFakeClock(start time.Time) *FakeClock {
	if start.IsZero() {
		start = Epoch
	}
	return &FakeClock{now: start}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc schedules f to run once the clock has been advanced by d.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	if d < 0 {
		d = 0
	}
	c.nextID++
	t := &fakeTimer{c: c, id: c.nextID, when: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Stop removes the timer. Returns false if it already fired or was stopped.
func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	return t.c.remove(t)
}

// Advance moves time forward by d, firing every timer that falls due.
// Now reads each timer's due time while its callback runs.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		t := c.earliest()
		if t == nil || t.when.After(target) {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.remove(t)
		if t.when.After(c.now) {
			c.now = t.when
		}
		c.mu.Unlock()

		t.f()
	}
}

// Pending returns the number of scheduled timers that have not fired.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// NextDue returns how far away the earliest pending timer is.
// ok is false when nothing is scheduled.
func (c *FakeClock) NextDue() (d time.Duration, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.earliest()
	if t == nil {
		return 0, false
	}
	return t.when.Sub(c.now), true
}

// earliest returns the next timer to fire. Caller holds c.mu.
func (c *FakeClock) earliest() *fakeTimer {
	if len(c.timers) == 0 {
		return nil
	}
	sort.SliceStable(c.timers, func(i, j int) bool {
		if c.timers[i].when.Equal(c.timers[j].when) {
			return c.timers[i].id < c.timers[j].id
		}
		return c.timers[i].when.Before(c.timers[j].when)
	})
	return c.timers[0]
}

// remove deletes t from the schedule. Caller holds c.mu.
func (c *FakeClock) remove(t *fakeTimer) bool {
	for i, p := range c.timers {
		if p == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return true
		}
	}
	return false
}
