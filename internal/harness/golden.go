package harness

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/nback/internal/results"
)

// FormatTrace renders a result as the plain-text trace stored in golden
// files. The layout is stable: one line per trace entry, followed by the
// final phase, summary and advice.
func FormatTrace(name string, result *Result) []byte {
	var buf bytes.Buffer
	rec := result.Record
	cfg := rec.Config

	fmt.Fprintf(&buf, "scenario: %s\n", name)
	fmt.Fprintf(&buf, "run: %s\n", rec.ID)
	fmt.Fprintf(&buf, "config: n_back=%d trials=%d window=%s match=%g%% feedback=%t\n",
		cfg.NBack, cfg.TotalTrials, cfg.WindowDuration(), cfg.MatchPercentage, cfg.ShowFeedback)

	positions := make([]string, len(rec.Sequence.Positions))
	for i, p := range rec.Sequence.Positions {
		positions[i] = strconv.Itoa(p)
	}
	fmt.Fprintf(&buf, "sequence: %s\n", strings.Join(positions, " "))

	buf.WriteString("trace:\n")
	for _, entry := range result.Trace {
		buf.WriteString(formatEntry(entry))
		buf.WriteByte('\n')
	}

	s := rec.Summary
	fmt.Fprintf(&buf, "phase: %s\n", result.Phase)
	fmt.Fprintf(&buf, "summary: hits=%d misses=%d false_alarms=%d correct_rejects=%d accuracy=%d%% avg_rt=%dms completed=%d/%d\n",
		s.Hits, s.Misses, s.FalseAlarms, s.CorrectRejects, s.Accuracy, s.AverageReactionTimeMs,
		s.CompletedTrials, cfg.TotalTrials)
	fmt.Fprintf(&buf, "advice: %s\n", formatAdvice(result.Advice))

	return buf.Bytes()
}

func formatEntry(entry TraceEntry) string {
	offset := formatOffset(entry.Offset)
	if entry.Event == nil {
		return fmt.Sprintf("%9s  >    %s: %s", offset, entry.Action, entry.Outcome)
	}

	ev := entry.Event
	line := fmt.Sprintf("%9s  #%-3d trial %-3d %-15s pos=%d",
		offset, ev.Seq, ev.TrialIndex+1, ev.Type, ev.Position)
	if ev.IsMatch {
		line += " match"
	}
	if ev.Correct != nil {
		line += fmt.Sprintf(" correct=%t", *ev.Correct)
	}
	if ev.ReactionTimeMs != nil {
		line += fmt.Sprintf(" rt=%dms", *ev.ReactionTimeMs)
	}
	return line
}

func formatOffset(d time.Duration) string {
	return fmt.Sprintf("+%.3fs", d.Seconds())
}

func formatAdvice(a results.Advice) string {
	switch a.Direction {
	case results.Advance:
		return fmt.Sprintf("advance to %d-back", a.NextNBack)
	case results.Fallback:
		return fmt.Sprintf("fall back to %d-back", a.NextNBack)
	}
	return fmt.Sprintf("stay at %d-back", a.NextNBack)
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the trace doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, FormatTrace(scenarioName, result))
}
