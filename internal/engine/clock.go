package engine

import (
	"time"

	"github.com/roach88/nback/internal/clock"
)

// timerSlot holds the single outstanding timer of one logical timer.
//
// gen changes every time the slot is armed or stopped; a callback is current
// only while the slot still holds the generation it was armed with.
type timerSlot struct {
	timer clock.Timer
	gen   uint64
}

// arm stops any outstanding timer and schedules fire(gen) after d.
func (s *timerSlot) arm(c clock.Clock, d time.Duration, fire func(gen uint64)) {
	s.stop()
	gen := s.gen
	s.timer = c.AfterFunc(d, func() { fire(gen) })
}

// stop cancels the outstanding timer, if any, and invalidates its callback.
func (s *timerSlot) stop() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

// current reports whether gen identifies the outstanding timer.
func (s *timerSlot) current(gen uint64) bool {
	return s.timer != nil && s.gen == gen
}

// release marks the outstanding timer as fired.
func (s *timerSlot) release() {
	s.timer = nil
}

// pending reports whether a timer is outstanding.
func (s *timerSlot) pending() bool {
	return s.timer != nil
}
