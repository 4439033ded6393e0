package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nback/internal/model"
	"github.com/roach88/nback/internal/results"
	"github.com/roach88/nback/internal/scoring"
)

func TestSampleRecord_LeadInTrialsUnclassified(t *testing.T) {
	rec := SampleRecord("run-1")

	for _, ev := range rec.OutcomeEvents() {
		assert.GreaterOrEqual(t, ev.TrialIndex, rec.Config.NBack, "outcome %s on lead-in trial %d", ev.Type, ev.TrialIndex)
	}
}

func TestSampleRecord_OutcomesFollowScoring(t *testing.T) {
	rec := SampleRecord("run-1")
	answered := map[int]bool{}
	for _, r := range rec.Responses {
		answered[r.TrialIndex] = r.IsResponse
	}

	var counters scoring.Counters
	for _, ev := range rec.OutcomeEvents() {
		if answered[ev.TrialIndex] {
			assert.Equal(t, scoring.ClassifyResponse(rec.Sequence, ev.TrialIndex), ev.Type, "trial %d", ev.TrialIndex)
		} else {
			want, ok := scoring.ClassifyTimeout(rec.Sequence, ev.TrialIndex, false)
			require.True(t, ok, "trial %d", ev.TrialIndex)
			assert.Equal(t, want, ev.Type, "trial %d", ev.TrialIndex)
		}
		rt := 0
		if ev.ReactionTimeMs != nil {
			rt = *ev.ReactionTimeMs
		}
		counters.Record(ev.Type, rt)
	}

	got := results.Summarize(results.Input{
		Counters:        counters,
		StartTime:       rec.Summary.StartTime,
		EndTime:         rec.Summary.EndTime,
		CompletedTrials: rec.Config.TotalTrials,
	})
	assert.Equal(t, rec.Summary, got)
	assert.True(t, rec.Complete)
}

func TestSampleRecord_EventsAreSequenced(t *testing.T) {
	rec := SampleRecord("run-1")

	require.Len(t, rec.Events, 2*rec.Config.TotalTrials+len(rec.OutcomeEvents()))
	for i, ev := range rec.Events {
		assert.Equal(t, int64(i+1), ev.Seq)
	}
	assert.Equal(t, model.EventTrialStart, rec.Events[0].Type)
	assert.Equal(t, model.EventTrialEnd, rec.Events[len(rec.Events)-1].Type)
}
