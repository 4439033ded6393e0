package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSequence_IsMatch(t *testing.T) {
	seq := Sequence{NBack: 2, Positions: []int{4, 7, 4, 1, 4}}

	assert.False(t, seq.IsMatch(0), "no comparison target")
	assert.False(t, seq.IsMatch(1), "no comparison target")
	assert.True(t, seq.IsMatch(2))
	assert.False(t, seq.IsMatch(3))
	assert.True(t, seq.IsMatch(4))
	assert.False(t, seq.IsMatch(5), "out of range")
	assert.Equal(t, 2, seq.MatchCount())
}

func TestSequence_CloneIsIndependent(t *testing.T) {
	seq := Sequence{NBack: 1, Positions: []int{1, 2, 3}}
	clone := seq.Clone()
	clone.Positions[0] = 8

	assert.Equal(t, 1, seq.At(0))
	assert.Equal(t, 8, clone.At(0))
}

func TestConfig_Derived(t *testing.T) {
	cfg := Config{SecondsPerTrial: 2.5}
	assert.Equal(t, 2500*time.Millisecond, cfg.WindowDuration())
	assert.Equal(t, 9, cfg.Cells())

	cfg.GridSize = 4
	assert.Equal(t, 16, cfg.Cells())
}

func TestEventType_IsOutcome(t *testing.T) {
	tests := []struct {
		typ     EventType
		outcome bool
		correct bool
	}{
		{EventTrialStart, false, false},
		{EventTrialEnd, false, false},
		{EventHit, true, true},
		{EventCorrectReject, true, true},
		{EventMiss, true, false},
		{EventFalseAlarm, true, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			assert.Equal(t, tt.outcome, tt.typ.IsOutcome())
			assert.Equal(t, tt.correct, tt.typ.Correct())
		})
	}
}

func TestRunRecord_OutcomeEvents(t *testing.T) {
	rec := RunRecord{Events: []TrialEvent{
		{Seq: 1, Type: EventTrialStart},
		{Seq: 2, Type: EventHit},
		{Seq: 3, Type: EventTrialEnd},
		{Seq: 4, Type: EventTrialStart},
		{Seq: 5, Type: EventCorrectReject},
	}}

	got := rec.OutcomeEvents()
	if assert.Len(t, got, 2) {
		assert.Equal(t, int64(2), got[0].Seq)
		assert.Equal(t, int64(5), got[1].Seq)
	}
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "idle", PhaseIdle.String())
	assert.Equal(t, "running", PhaseRunning.String())
	assert.Equal(t, "paused", PhasePaused.String())
	assert.Equal(t, "complete", PhaseComplete.String())

	text, err := PhasePaused.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "paused", string(text))
}
