// Package recorder holds the append-only trial event log and response log of
// a single test run.
//
// Events are stamped with a logical sequence number as they are appended;
// ordering never depends on wall-clock timestamps. At most one response with
// IsResponse=true is accepted per trial index. Once frozen, the log rejects
// further appends.
package recorder

import (
	"errors"
	"fmt"

	"github.com/roach88/nback/internal/model"
)

var (
	// ErrFrozen is returned when appending to a frozen log.
	ErrFrozen = errors.New("recorder: log is frozen")

	// ErrDuplicateResponse is returned when a trial already has a response.
	ErrDuplicateResponse = errors.New("recorder: trial already has a response")
)

// Log is the event log and response recorder for one run.
//
// Log is not safe for concurrent use; the engine serializes access.
type Log struct {
	seq       int64
	events    []model.TrialEvent
	responses []model.ResponseRecord
	responded map[int]struct{}
	frozen    bool
}

// New returns an empty log.
func New() *Log {
	return &Log{
		events:    make([]model.TrialEvent, 0, 64),
		responses: make([]model.ResponseRecord, 0, 16),
		responded: make(map[int]struct{}),
	}
}

// AppendEvent stamps ev with the next sequence number and appends it.
// Returns the stamped event.
func (l *Log) AppendEvent(ev model.TrialEvent) (model.TrialEvent, error) {
	if l.frozen {
		return model.TrialEvent{}, fmt.Errorf("append %s: %w", ev.Type, ErrFrozen)
	}
	l.seq++
	ev.Seq = l.seq
	l.events = append(l.events, ev)
	return ev, nil
}

// AppendResponse appends a response record. A second record with
// IsResponse=true for the same trial is rejected with ErrDuplicateResponse.
func (l *Log) AppendResponse(r model.ResponseRecord) error {
	if l.frozen {
		return fmt.Errorf("append response for trial %d: %w", r.TrialIndex, ErrFrozen)
	}
	if r.IsResponse {
		if _, ok := l.responded[r.TrialIndex]; ok {
			return fmt.Errorf("trial %d: %w", r.TrialIndex, ErrDuplicateResponse)
		}
		l.responded[r.TrialIndex] = struct{}{}
	}
	l.responses = append(l.responses, r)
	return nil
}

// HasResponse reports whether a user response was recorded for the trial.
func (l *Log) HasResponse(trialIndex int) bool {
	_, ok := l.responded[trialIndex]
	return ok
}

// Freeze makes the log read-only.
func (l *Log) Freeze() {
	l.frozen = true
}

// Frozen reports whether the log is read-only.
func (l *Log) Frozen() bool {
	return l.frozen
}

// Events returns a copy of the event log in insertion order.
func (l *Log) Events() []model.TrialEvent {
	out := make([]model.TrialEvent, len(l.events))
	copy(out, l.events)
	return out
}

// OutcomeEvents returns the classification events in insertion order.
func (l *Log) OutcomeEvents() []model.TrialEvent {
	var out []model.TrialEvent
	for _, ev := range l.events {
		if ev.Type.IsOutcome() {
			out = append(out, ev)
		}
	}
	if out == nil {
		out = []model.TrialEvent{}
	}
	return out
}

// Responses returns a copy of the response log in insertion order.
func (l *Log) Responses() []model.ResponseRecord {
	out := make([]model.ResponseRecord, len(l.responses))
	copy(out, l.responses)
	return out
}

// Len returns the number of events.
func (l *Log) Len() int {
	return len(l.events)
}
