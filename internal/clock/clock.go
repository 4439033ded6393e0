// Package clock abstracts time for the trial engine.
//
// The engine never reads the wall clock directly; it asks a Clock for the
// current time and for deferred invocation. Production code uses System;
// tests use testutil.FakeClock to advance time deterministically.
package clock

import "time"

// Clock is a source of time and deferred invocation.
//
// AfterFunc must not call f synchronously; f runs later, either on its own
// goroutine (System) or while a fake clock is being advanced.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a handle to a pending AfterFunc call.
type Timer interface {
	// Stop prevents the call from running. It returns false if the call
	// already ran or was already stopped.
	Stop() bool
}

// System is the production Clock backed by package time. Durations measured
// between two Now readings use the monotonic clock.
type System struct{}

// Now returns the current time.
func (System) Now() time.Time {
	return time.Now()
}

// AfterFunc calls f on its own goroutine after d.
func (System) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
