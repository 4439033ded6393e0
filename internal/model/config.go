package model

import "time"

// DefaultGridSize is the side length of the stimulus grid (3x3 = 9 cells).
const DefaultGridSize = 3

// Config is the immutable configuration of one test run.
//
// Ranges are enforced by the host (see internal/config); the engine assumes
// NBack >= 1, TotalTrials > NBack, 0 <= MatchPercentage <= 100 and
// SecondsPerTrial > 0.
type Config struct {
	// NBack is the lag used as the comparison target for a match.
	NBack int `json:"n_back"`

	// SecondsPerTrial is the response-window duration.
	SecondsPerTrial float64 `json:"seconds_per_trial"`

	// MatchPercentage is the target share (0-100) of lagged trials that match.
	MatchPercentage float64 `json:"match_percentage"`

	// TotalTrials is the length of the stimulus sequence.
	TotalTrials int `json:"total_trials"`

	// ShowFeedback surfaces inline text on misses and false alarms.
	ShowFeedback bool `json:"show_feedback"`

	// GridSize is the grid side length. Zero means DefaultGridSize.
	GridSize int `json:"grid_size,omitempty"`
}

// WindowDuration returns the full response-window duration.
func (c Config) WindowDuration() time.Duration {
	return time.Duration(c.SecondsPerTrial * float64(time.Second))
}

// Cells returns the number of grid cells positions are drawn from.
func (c Config) Cells() int {
	size := c.GridSize
	if size <= 0 {
		size = DefaultGridSize
	}
	return size * size
}
