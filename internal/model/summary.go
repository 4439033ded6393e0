package model

import "time"

// Summary is the results summary of a run. Counters are accumulated during
// the run; every other field is derived on demand by the results package.
type Summary struct {
	Hits           int `json:"hits"`
	Misses         int `json:"misses"`
	FalseAlarms    int `json:"false_alarms"`
	CorrectRejects int `json:"correct_rejects"`

	Accuracy              int     `json:"accuracy"`
	AverageReactionTimeMs int     `json:"average_reaction_time_ms"`
	ReactionTimeSDMs      float64 `json:"reaction_time_sd_ms"`
	TotalMatchTrials      int     `json:"total_match_trials"`
	TotalNonMatchTrials   int     `json:"total_non_match_trials"`
	CompletedTrials       int     `json:"completed_trials"`

	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// Classified returns the number of trials that received an outcome.
func (s Summary) Classified() int {
	return s.Hits + s.Misses + s.FalseAlarms + s.CorrectRejects
}

// RunRecord is everything a finished (or snapshotted) run produced. It is
// the unit consumed by the export and archive collaborators.
type RunRecord struct {
	ID        string           `json:"id"`
	Config    Config           `json:"config"`
	Sequence  Sequence         `json:"sequence"`
	Summary   Summary          `json:"summary"`
	Events    []TrialEvent     `json:"events"`
	Responses []ResponseRecord `json:"responses"`

	// Complete is false for a record taken while the run was still going.
	Complete bool `json:"complete"`
}

// OutcomeEvents returns the classification events of the record in log order.
func (r RunRecord) OutcomeEvents() []TrialEvent {
	out := make([]TrialEvent, 0, len(r.Events))
	for _, ev := range r.Events {
		if ev.Type.IsOutcome() {
			out = append(out, ev)
		}
	}
	return out
}
