package harness

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/roach88/nback/internal/model"
	"github.com/roach88/nback/internal/store"
)

// validIdentifier matches valid SQL identifiers (column names).
// Identifiers can't be parameterized, so archive assertions only accept
// names matching this pattern.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// summaryFields maps summary assertion keys to their values.
var summaryFields = map[string]func(model.Summary) any{
	"hits":                     func(s model.Summary) any { return s.Hits },
	"misses":                   func(s model.Summary) any { return s.Misses },
	"false_alarms":             func(s model.Summary) any { return s.FalseAlarms },
	"correct_rejects":          func(s model.Summary) any { return s.CorrectRejects },
	"accuracy":                 func(s model.Summary) any { return s.Accuracy },
	"average_reaction_time_ms": func(s model.Summary) any { return s.AverageReactionTimeMs },
	"total_match_trials":       func(s model.Summary) any { return s.TotalMatchTrials },
	"total_non_match_trials":   func(s model.Summary) any { return s.TotalNonMatchTrials },
	"completed_trials":         func(s model.Summary) any { return s.CompletedTrials },
	"duration_seconds":         func(s model.Summary) any { return s.DurationSeconds },
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEntry // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, entry := range e.Trace {
			fmt.Fprintf(&buf, "%s\n", formatEntry(entry))
		}
	}

	return buf.String()
}

// assertSummary checks the final summary against the expected subset.
func assertSummary(result *Result, assertion Assertion) error {
	var mismatches []string
	for _, key := range sortedKeys(assertion.Expect) {
		field, ok := summaryFields[key]
		if !ok {
			return fmt.Errorf("unknown summary field %q", key)
		}
		want := assertion.Expect[key]
		got := field(result.Record.Summary)
		if !valuesEqual(want, got) {
			mismatches = append(mismatches, fmt.Sprintf("%s=%v (want %v)", key, got, want))
		}
	}

	if len(mismatches) > 0 {
		return &AssertionError{
			Type:     AssertSummary,
			Expected: formatExpect(assertion.Expect),
			Actual:   strings.Join(mismatches, " "),
		}
	}
	return nil
}

// assertEventCount checks the event appears exactly Count times in the trace.
func assertEventCount(result *Result, assertion Assertion) error {
	count := 0
	for _, ev := range result.Events() {
		if string(ev.Type) != assertion.Event {
			continue
		}
		if assertion.Trial > 0 && ev.TrialIndex != assertion.Trial-1 {
			continue
		}
		count++
	}

	if count != assertion.Count {
		what := assertion.Event
		if assertion.Trial > 0 {
			what = fmt.Sprintf("%s on trial %d", assertion.Event, assertion.Trial)
		}
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, what),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertEventOrder checks the events appear in the trace in the given order,
// not necessarily adjacent.
func assertEventOrder(result *Result, assertion Assertion) error {
	next := 0
	for _, ev := range result.Events() {
		if next < len(assertion.Events) && string(ev.Type) == assertion.Events[next] {
			next++
		}
	}

	if next < len(assertion.Events) {
		return &AssertionError{
			Type:     AssertEventOrder,
			Expected: fmt.Sprintf("events in order: %v", assertion.Events),
			Actual:   fmt.Sprintf("matched %d of %d, stuck at %s", next, len(assertion.Events), assertion.Events[next]),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertOutcomes checks the outcome of every classified trial of the final run.
func assertOutcomes(result *Result, assertion Assertion) error {
	events := result.Record.OutcomeEvents()
	got := make([]string, len(events))
	for i, ev := range events {
		got[i] = string(ev.Type)
	}

	if strings.Join(got, ",") != strings.Join(assertion.Outcomes, ",") {
		return &AssertionError{
			Type:     AssertOutcomes,
			Expected: fmt.Sprintf("%v", assertion.Outcomes),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}

// assertPhase checks the final lifecycle phase.
func assertPhase(result *Result, assertion Assertion) error {
	if result.Phase.String() != assertion.Phase {
		return &AssertionError{
			Type:     AssertPhase,
			Expected: assertion.Phase,
			Actual:   result.Phase.String(),
		}
	}
	return nil
}

// assertArchive saves the final run to a fresh in-memory archive, reads the
// runs row back with parameterized SQL and validates the expected columns.
// The reloaded record must also carry every event of the run.
func assertArchive(ctx context.Context, result *Result, assertion Assertion) error {
	st, err := store.Open(":memory:")
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer st.Close()

	if _, err := st.Save(ctx, result.Record); err != nil {
		return &AssertionError{
			Type:     AssertArchive,
			Expected: "run saved",
			Actual:   fmt.Sprintf("save error: %v", err),
		}
	}

	columns := sortedKeys(assertion.Expect)
	for _, c := range columns {
		if !validIdentifier.MatchString(c) {
			return fmt.Errorf("invalid column name %q: must match pattern %s", c, validIdentifier.String())
		}
	}

	query := fmt.Sprintf("SELECT %s FROM runs WHERE id = ?", strings.Join(columns, ", "))
	rows, err := st.Query(ctx, query, result.Record.ID)
	if err != nil {
		return &AssertionError{
			Type:     AssertArchive,
			Expected: fmt.Sprintf("columns %v", columns),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	defer rows.Close()

	if !rows.Next() {
		return &AssertionError{
			Type:     AssertArchive,
			Expected: fmt.Sprintf("run %s archived", result.Record.ID),
			Actual:   "row not found",
		}
	}

	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return fmt.Errorf("scan row: %w", err)
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("close rows: %w", err)
	}

	var mismatches []string
	for i, c := range columns {
		got := values[i]
		if b, ok := got.([]byte); ok {
			got = string(b)
		}
		if !valuesEqual(assertion.Expect[c], got) {
			mismatches = append(mismatches, fmt.Sprintf("%s=%v (want %v)", c, got, assertion.Expect[c]))
		}
	}

	reloaded, err := st.Get(ctx, result.Record.ID)
	if err != nil {
		return fmt.Errorf("reload run: %w", err)
	}
	if len(reloaded.Events) != len(result.Record.Events) {
		mismatches = append(mismatches, fmt.Sprintf("events=%d (want %d)", len(reloaded.Events), len(result.Record.Events)))
	}

	if len(mismatches) > 0 {
		return &AssertionError{
			Type:     AssertArchive,
			Expected: formatExpect(assertion.Expect),
			Actual:   strings.Join(mismatches, " "),
		}
	}
	return nil
}

// valuesEqual compares a YAML-decoded expectation with an actual value.
// Numbers compare by value regardless of their Go type.
func valuesEqual(expected, actual any) bool {
	if e, ok := toFloat(expected); ok {
		if a, ok := toFloat(actual); ok {
			return e == a
		}
		return false
	}
	return fmt.Sprint(expected) == fmt.Sprint(actual)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatExpect(m map[string]any) string {
	parts := make([]string, 0, len(m))
	for _, k := range sortedKeys(m) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, m[k]))
	}
	return strings.Join(parts, " ")
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(ctx context.Context, result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertSummary:
			err = assertSummary(result, assertion)
		case AssertEventCount:
			err = assertEventCount(result, assertion)
		case AssertEventOrder:
			err = assertEventOrder(result, assertion)
		case AssertOutcomes:
			err = assertOutcomes(result, assertion)
		case AssertPhase:
			err = assertPhase(result, assertion)
		case AssertArchive:
			err = assertArchive(ctx, result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
