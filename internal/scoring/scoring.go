// Package scoring classifies trial outcomes and keeps the running counters.
//
// A response on a trial is a HIT when the trial matches the one NBack trials
// back and a FALSE_ALARM otherwise; trials before NBack can never match, so
// any response there is a FALSE_ALARM. A trial that closes without a response
// is a MISS when it matched and a CORRECT_REJECT when it did not. Trials
// before NBack that close without a response are not classified.
package scoring

import (
	"fmt"

	"github.com/roach88/nback/internal/model"
)

// ClassifyResponse returns the outcome of a user response on trial i.
func ClassifyResponse(seq model.Sequence, i int) model.EventType {
	if i < seq.NBack {
		return model.EventFalseAlarm
	}
	if seq.IsMatch(i) {
		return model.EventHit
	}
	return model.EventFalseAlarm
}

// ClassifyTimeout returns the outcome of trial i when its response window
// closes. ok is false when the trial gets no classification: it was already
// answered, or it precedes the first lagged trial.
func ClassifyTimeout(seq model.Sequence, i int, responded bool) (outcome model.EventType, ok bool) {
	if responded || i < seq.NBack {
		return "", false
	}
	if seq.IsMatch(i) {
		return model.EventMiss, true
	}
	return model.EventCorrectReject, true
}

// Counters are the running outcome totals of a run.
type Counters struct {
	Hits           int
	Misses         int
	FalseAlarms    int
	CorrectRejects int

	// ReactionTimes holds the reaction time of every HIT, in milliseconds.
	ReactionTimes []int
}

// Record adds one outcome. reactionTimeMs is kept for HITs only.
func (c *Counters) Record(outcome model.EventType, reactionTimeMs int) {
	switch outcome {
	case model.EventHit:
		c.Hits++
		c.ReactionTimes = append(c.ReactionTimes, reactionTimeMs)
	case model.EventMiss:
		c.Misses++
	case model.EventFalseAlarm:
		c.FalseAlarms++
	case model.EventCorrectReject:
		c.CorrectRejects++
	}
}

// Classified returns the number of recorded outcomes.
func (c Counters) Classified() int {
	return c.Hits + c.Misses + c.FalseAlarms + c.CorrectRejects
}

// Clone returns a copy that shares no memory with c.
func (c Counters) Clone() Counters {
	out := c
	out.ReactionTimes = append([]int(nil), c.ReactionTimes...)
	return out
}

// Feedback returns the inline feedback text for an outcome on trial i, or ""
// when the outcome needs none.
func Feedback(outcome model.EventType, i, nBack int) string {
	switch outcome {
	case model.EventMiss:
		return fmt.Sprintf("Missed! This position matches the one from %d trials ago.", nBack)
	case model.EventFalseAlarm:
		if i < nBack {
			return fmt.Sprintf("FALSE ALARM! The first %d trials can't be matches.", nBack)
		}
		return fmt.Sprintf("FALSE ALARM! This position does not match the one from %d trials ago.", nBack)
	}
	return ""
}
