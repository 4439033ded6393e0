// Package results aggregates outcome counters into a results summary and
// derives the advance/fallback signal.
//
// Summaries are always recomputed from the counters, never maintained
// incrementally, so a live snapshot and the final summary cannot drift.
package results

import (
	"math"
	"time"

	"github.com/roach88/nback/internal/model"
	"github.com/roach88/nback/internal/scoring"
)

// Input is everything Summarize needs.
type Input struct {
	Counters        scoring.Counters
	StartTime       time.Time
	EndTime         time.Time
	CompletedTrials int
}

// Summarize computes the results summary. It is pure and may be called at any
// time: mid-run for a live view or once the run is complete.
func Summarize(in Input) model.Summary {
	c := in.Counters
	s := model.Summary{
		Hits:                c.Hits,
		Misses:              c.Misses,
		FalseAlarms:         c.FalseAlarms,
		CorrectRejects:      c.CorrectRejects,
		TotalMatchTrials:    c.Hits + c.Misses,
		TotalNonMatchTrials: c.FalseAlarms + c.CorrectRejects,
		CompletedTrials:     in.CompletedTrials,
		StartTime:           in.StartTime,
		EndTime:             in.EndTime,
	}

	if total := c.Classified(); total > 0 {
		s.Accuracy = int(math.Round(float64(c.Hits+c.CorrectRejects) * 100 / float64(total)))
	}
	s.AverageReactionTimeMs = int(math.Round(mean(c.ReactionTimes)))
	s.ReactionTimeSDMs = stdDev(c.ReactionTimes)

	if !in.StartTime.IsZero() && !in.EndTime.IsZero() {
		s.DurationSeconds = in.EndTime.Sub(in.StartTime).Seconds()
	}
	return s
}

func mean(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += float64(v)
	}
	return sum / float64(len(values))
}

// stdDev is the population standard deviation; 0 for fewer than two values.
func stdDev(values []int) float64 {
	if len(values) <= 1 {
		return 0
	}
	avg := mean(values)
	var sumSquaredDiff float64
	for _, v := range values {
		diff := float64(v) - avg
		sumSquaredDiff += diff * diff
	}
	return math.Sqrt(sumSquaredDiff / float64(len(values)))
}
