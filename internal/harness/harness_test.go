package harness

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nback/internal/model"
	"github.com/roach88/nback/internal/results"
	"github.com/roach88/nback/internal/testutil"
)

func TestRun_Scenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err, path)

		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRun_PerfectRun(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/perfect_2back.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	assert.Equal(t, model.PhaseComplete, result.Phase)
	assert.Equal(t, testutil.FixedRunID, result.Record.ID)
	assert.Equal(t, results.Advance, result.Advice.Direction)
	assert.Equal(t, 3, result.Advice.NextNBack)

	events := result.Events()
	require.Len(t, events, 13)
	for i, ev := range events {
		assert.Equal(t, int64(i+1), ev.Seq)
	}
	assert.Equal(t, testutil.Epoch.Add(time.Second), events[0].Time)

	// Two respond steps interleaved with the engine events.
	assert.Len(t, result.Trace, 15)
	assert.Equal(t, ActionRespond, result.Trace[5].Action)
	assert.Equal(t, "HIT", result.Trace[5].Outcome)
	assert.Equal(t, 6500*time.Millisecond, result.Trace[5].Offset)
}

func TestRun_StepExpectationMismatch(t *testing.T) {
	scenario := &Scenario{
		Name:     "wrong_expectation",
		Config:   Config{NBack: 1, SecondsPerTrial: 2, MatchPercentage: 50, TotalTrials: 3},
		Sequence: []int{4, 4, 2},
		Steps: []Step{
			{At: Duration(1500 * time.Millisecond), Action: ActionRespond, Expect: "HIT"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "steps[0]: respond at 1.5s: expected HIT, got FALSE_ALARM", result.Errors[0])
}

func TestRun_RunForStopsMidTest(t *testing.T) {
	scenario := &Scenario{
		Name:     "partial",
		Config:   Config{NBack: 1, SecondsPerTrial: 2, MatchPercentage: 50, TotalTrials: 10},
		Sequence: []int{0, 0, 1, 1, 2, 2, 3, 3, 4, 4},
		RunFor:   Duration(7 * time.Second),
		Assertions: []Assertion{
			{Type: AssertPhase, Phase: "running"},
			{Type: AssertSummary, Expect: map[string]any{"completed_trials": 3, "misses": 1}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, model.PhaseRunning, result.Phase)
}

func TestRun_PausedRunStaysPaused(t *testing.T) {
	scenario := &Scenario{
		Name:     "left_paused",
		Config:   Config{NBack: 1, SecondsPerTrial: 2, MatchPercentage: 50, TotalTrials: 3},
		Sequence: []int{4, 4, 2},
		Steps: []Step{
			{At: Duration(2 * time.Second), Action: ActionPause, Expect: ResultOK},
		},
		Assertions: []Assertion{
			{Type: AssertPhase, Phase: "paused"},
			{Type: AssertEventCount, Event: "TRIAL_START", Count: 1},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_ResetAndRestart(t *testing.T) {
	scenario := &Scenario{
		Name:     "restart",
		Config:   Config{NBack: 1, SecondsPerTrial: 2, MatchPercentage: 50, TotalTrials: 3},
		Sequence: []int{4, 4, 2},
		Timing:   Timing{StartDelay: durationPtr(0)},
		Steps: []Step{
			{At: Duration(500 * time.Millisecond), Action: ActionReset, Expect: ResultOK},
			{At: Duration(time.Second), Action: ActionStart, Expect: ResultOK},
			{At: Duration(time.Second), Action: ActionStart, Expect: ResultRejected},
		},
		Assertions: []Assertion{
			{Type: AssertPhase, Phase: "complete"},
			{Type: AssertOutcomes, Outcomes: []string{"MISS", "CORRECT_REJECT"}},
			// One start from the abandoned run, three from the restart.
			{Type: AssertEventCount, Event: "TRIAL_START", Count: 4},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	// The restarted run's log starts over.
	require.NotEmpty(t, result.Record.Events)
	assert.Equal(t, int64(1), result.Record.Events[0].Seq)
	assert.Equal(t, testutil.Epoch.Add(time.Second), result.Record.Summary.StartTime)
}

func TestRun_ViewResultsDuringGap(t *testing.T) {
	scenario := &Scenario{
		Name:     "results_view",
		Config:   Config{NBack: 1, SecondsPerTrial: 2, MatchPercentage: 50, TotalTrials: 3},
		Sequence: []int{4, 4, 2},
		Steps: []Step{
			// Trial 1 closes at 3s; the gap runs until 3.5s.
			{At: Duration(3200 * time.Millisecond), Action: ActionViewResults, Expect: ResultOK},
			{At: Duration(5 * time.Second), Action: ActionBack, Expect: ResultOK},
			{At: Duration(5 * time.Second), Action: ActionBack, Expect: ResultRejected},
			{At: Duration(6 * time.Second), Action: ActionResume, Expect: ResultOK},
			{At: Duration(6500 * time.Millisecond), Action: ActionRespond, Expect: "HIT"},
		},
		Assertions: []Assertion{
			{Type: AssertSummary, Expect: map[string]any{"hits": 1, "correct_rejects": 1, "average_reaction_time_ms": 500}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	// Trial 2 is presented at resume with a full window.
	for _, ev := range result.Events() {
		if ev.TrialIndex == 1 && ev.Type == model.EventTrialStart {
			assert.Equal(t, testutil.Epoch.Add(6*time.Second), ev.Time)
		}
	}
}

func TestRun_SeededScenarioIsDeterministic(t *testing.T) {
	scenario := &Scenario{
		Name:   "seeded",
		Config: Config{NBack: 2, SecondsPerTrial: 1, MatchPercentage: 30, TotalTrials: 20},
		Seed:   42,
	}

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, model.PhaseComplete, first.Phase)
	assert.Len(t, first.Record.Sequence.Positions, 20)
	assert.Equal(t, FormatTrace("seeded", first), FormatTrace("seeded", second))

	// No responses: every lagged trial is a miss or a correct rejection.
	s := first.Record.Summary
	assert.Equal(t, first.Record.Sequence.MatchCount(), s.Misses)
	assert.Equal(t, 18, s.Misses+s.CorrectRejects)
}

func TestRun_InvalidScenario(t *testing.T) {
	_, err := Run(&Scenario{Name: "bad"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid scenario")
}

func TestRun_WithLogger(t *testing.T) {
	var buf bytes.Buffer
	log := testLogger(&buf)

	scenario, err := LoadScenario("testdata/scenarios/stop_early.yaml")
	require.NoError(t, err)

	result, err := Run(scenario, WithLogger(log))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)
	require.NoError(t, log.Sync())

	assert.Contains(t, buf.String(), "test started")
	assert.Contains(t, buf.String(), "0192a3b4-c5d6-7e8f-9012-3456789abcde")
}

func durationPtr(d time.Duration) *Duration {
	v := Duration(d)
	return &v
}
