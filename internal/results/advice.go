package results

import (
	"fmt"

	"github.com/roach88/nback/internal/model"
)

// Thresholds configure the advance/fallback signal.
type Thresholds struct {
	// Advance is the accuracy (%) at or above which the next level is suggested.
	Advance int `json:"advance"`

	// Fallback is the accuracy (%) below which a lower level is suggested.
	Fallback int `json:"fallback"`

	// FallbackCount is how many consecutive runs below Fallback the history
	// view needs before it suggests dropping a level.
	FallbackCount int `json:"fallback_count"`
}

// DefaultThresholds mirror the settings the test ships with.
var DefaultThresholds = Thresholds{Advance: 80, Fallback: 50, FallbackCount: 3}

// Direction is the suggested change of level.
type Direction string

const (
	Stay     Direction = "stay"
	Advance  Direction = "advance"
	Fallback Direction = "fallback"
)

// Advice is the suggestion produced from one or more runs.
type Advice struct {
	Direction Direction `json:"direction"`
	NextNBack int       `json:"next_n_back"`
	Message   string    `json:"message"`
}

// Advise returns the signal for a single run at level nBack.
func Advise(s model.Summary, nBack int, th Thresholds) Advice {
	switch {
	case s.Accuracy >= th.Advance:
		return advanceAdvice(nBack)
	case s.Accuracy < th.Fallback:
		return fallbackAdvice(nBack)
	}
	return Advice{Direction: Stay, NextNBack: nBack}
}

// AdviseHistory returns the signal for a series of accuracies at level nBack,
// oldest first. The latest run decides advancing; falling back requires the
// last FallbackCount runs to all be below the fallback threshold.
func AdviseHistory(accuracies []int, nBack int, th Thresholds) Advice {
	if len(accuracies) == 0 {
		return Advice{Direction: Stay, NextNBack: nBack}
	}
	if accuracies[len(accuracies)-1] >= th.Advance {
		return advanceAdvice(nBack)
	}

	need := max(th.FallbackCount, 1)
	if len(accuracies) < need {
		return Advice{Direction: Stay, NextNBack: nBack}
	}
	for _, acc := range accuracies[len(accuracies)-need:] {
		if acc >= th.Fallback {
			return Advice{Direction: Stay, NextNBack: nBack}
		}
	}
	return fallbackAdvice(nBack)
}

func advanceAdvice(nBack int) Advice {
	return Advice{
		Direction: Advance,
		NextNBack: nBack + 1,
		Message:   fmt.Sprintf("Congratulations! You can advance to %d-back.", nBack+1),
	}
}

func fallbackAdvice(nBack int) Advice {
	next := max(1, nBack-1)
	return Advice{
		Direction: Fallback,
		NextNBack: next,
		Message:   fmt.Sprintf("Consider trying %d-back.", next),
	}
}
