package model

// Phase is the lifecycle state of the trial scheduler.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhasePaused
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhasePaused:
		return "paused"
	case PhaseComplete:
		return "complete"
	}
	return "unknown"
}

// Snapshot is the render state handed to the host.
type Snapshot struct {
	Phase             Phase  `json:"phase"`
	CurrentTrialIndex int    `json:"current_trial_index"`
	VisiblePosition   *int   `json:"visible_position,omitempty"`
	IsPaused          bool   `json:"is_paused"`
	ViewingResults    bool   `json:"viewing_results"`
	ResponseAllowed   bool   `json:"response_allowed"`
	ErrorMessage      string `json:"error_message,omitempty"`
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}
