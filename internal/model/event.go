package model

import "time"

// EventType identifies a trial lifecycle event or outcome.
type EventType string

const (
	EventTrialStart    EventType = "TRIAL_START"
	EventMiss          EventType = "MISS"
	EventCorrectReject EventType = "CORRECT_REJECT"
	EventHit           EventType = "HIT"
	EventFalseAlarm    EventType = "FALSE_ALARM"
	EventTrialEnd      EventType = "TRIAL_END"
)

// IsOutcome reports whether the event is one of the four signal-detection
// classifications.
func (t EventType) IsOutcome() bool {
	switch t {
	case EventHit, EventMiss, EventFalseAlarm, EventCorrectReject:
		return true
	}
	return false
}

// Correct reports whether the outcome counts towards accuracy.
func (t EventType) Correct() bool {
	return t == EventHit || t == EventCorrectReject
}

// TrialEvent is one entry of the append-only event log.
type TrialEvent struct {
	// Seq orders events within a run (logical clock, starts at 1).
	Seq            int64     `json:"seq"`
	TrialIndex     int       `json:"trial_index"`
	Time           time.Time `json:"time"`
	Type           EventType `json:"type"`
	Position       int       `json:"position"`
	IsMatch        bool      `json:"is_match"`
	Correct        *bool     `json:"correct,omitempty"`
	ReactionTimeMs *int      `json:"reaction_time_ms,omitempty"`
}

// ResponseRecord is one entry of the response log. IsResponse is false for
// the synthetic record written when a match is missed.
type ResponseRecord struct {
	TrialIndex     int       `json:"trial_index"`
	Time           time.Time `json:"time"`
	Position       int       `json:"position"`
	IsMatch        bool      `json:"is_match"`
	IsResponse     bool      `json:"is_response"`
	Correct        bool      `json:"correct"`
	ReactionTimeMs *int      `json:"reaction_time_ms,omitempty"`
}

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }

// Int returns a pointer to n.
func Int(n int) *int { return &n }
