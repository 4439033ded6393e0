package harness

import (
	"time"

	"github.com/roach88/nback/internal/model"
	"github.com/roach88/nback/internal/results"
)

// TraceEntry is one line of the session trace: either an engine event or a
// control call made by a step.
type TraceEntry struct {
	// Offset is the time since Start.
	Offset time.Duration `json:"offset"`

	// Event is set for engine events.
	Event *model.TrialEvent `json:"event,omitempty"`

	// Action and Outcome are set for steps. Outcome is the response
	// classification for respond, otherwise "ok" or "rejected".
	Action  string `json:"action,omitempty"`
	Outcome string `json:"outcome,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success.
	// True if every step expectation and assertion holds.
	Pass bool `json:"pass"`

	// Trace contains engine events and step actions in order.
	Trace []TraceEntry `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	Phase  model.Phase     `json:"phase"`
	Record model.RunRecord `json:"record"`
	Advice results.Advice  `json:"advice"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEntry{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddEventTrace adds an engine event to the trace.
func (r *Result) AddEventTrace(offset time.Duration, ev model.TrialEvent) {
	r.Trace = append(r.Trace, TraceEntry{Offset: offset, Event: &ev})
}

// AddActionTrace adds a step's control call to the trace.
func (r *Result) AddActionTrace(offset time.Duration, action, outcome string) {
	r.Trace = append(r.Trace, TraceEntry{Offset: offset, Action: action, Outcome: outcome})
}

// Events returns the engine events of the trace in order.
func (r *Result) Events() []model.TrialEvent {
	out := make([]model.TrialEvent, 0, len(r.Trace))
	for _, entry := range r.Trace {
		if entry.Event != nil {
			out = append(out, *entry.Event)
		}
	}
	return out
}
