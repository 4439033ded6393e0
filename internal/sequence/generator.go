// Package sequence generates the stimulus sequence for a test run.
//
// Generation is a pure function of the configuration and a random source.
// The number of matching trials is exact, not probabilistic: each lagged
// slot is drawn as a match with probability needed/remaining, which is the
// classic way to sample an exact count without replacement.
package sequence

import (
	"math"
	"math/rand/v2"

	"github.com/roach88/nback/internal/model"
)

// NewRand returns a deterministic random source for the given seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// TargetMatches returns the exact number of matching trials a sequence for
// cfg must contain: round((TotalTrials-NBack) * MatchPercentage / 100).
func TargetMatches(cfg model.Config) int {
	lagged := cfg.TotalTrials - cfg.NBack
	if lagged <= 0 {
		return 0
	}
	target := int(math.Round(float64(lagged) * cfg.MatchPercentage / 100))
	if target < 0 {
		return 0
	}
	if target > lagged {
		return lagged
	}
	return target
}

// Generate builds the stimulus sequence for cfg.
//
// The first NBack positions are unconstrained. Every later slot either copies
// the position NBack trials back (a match) or is redrawn until it differs from
// it, so non-match slots are never accidental matches.
//
// When TotalTrials <= NBack the result is the unconstrained prefix only.
func Generate(cfg model.Config, rng *rand.Rand) model.Sequence {
	total := cfg.TotalTrials
	if total < 0 {
		total = 0
	}
	cells := cfg.Cells()
	positions := make([]int, 0, total)

	prefix := min(cfg.NBack, total)
	for i := 0; i < prefix; i++ {
		positions = append(positions, rng.IntN(cells))
	}

	target := TargetMatches(cfg)
	created := 0
	for i := prefix; i < total; i++ {
		needed := target - created
		remaining := total - i
		if shouldMatch(rng, needed, remaining) {
			positions = append(positions, positions[i-cfg.NBack])
			created++
			continue
		}
		positions = append(positions, drawExcept(rng, cells, positions[i-cfg.NBack]))
	}

	return model.Sequence{NBack: cfg.NBack, Positions: positions}
}

// shouldMatch implements the running-target rule.
func shouldMatch(rng *rand.Rand, needed, remaining int) bool {
	if needed <= 0 {
		return false
	}
	if needed >= remaining {
		return true
	}
	return rng.Float64() < float64(needed)/float64(remaining)
}

// drawExcept draws uniformly over [0, cells) until the value differs from
// avoid. A single-cell grid cannot avoid anything and returns 0.
func drawExcept(rng *rand.Rand, cells, avoid int) int {
	if cells < 2 {
		return 0
	}
	for {
		p := rng.IntN(cells)
		if p != avoid {
			return p
		}
	}
}
