package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/nback/internal/model"
)

// Scenario defines a scripted test session.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario exercises.
	Description string `yaml:"description"`

	// RunID is the fixed run ID. Defaults to testutil.FixedRunID.
	RunID string `yaml:"run_id,omitempty"`

	// Config is the test configuration.
	Config Config `yaml:"config"`

	// Sequence fixes the stimulus positions. When empty the sequence is
	// generated from Seed.
	Sequence []int `yaml:"sequence,omitempty"`

	// Seed seeds sequence generation.
	Seed uint64 `yaml:"seed,omitempty"`

	// Timing overrides the engine's fixed delays.
	Timing Timing `yaml:"timing,omitempty"`

	// Steps are applied in order, each at its offset from Start.
	Steps []Step `yaml:"steps,omitempty"`

	// RunFor is how long to run after Start. Zero runs until the test is no
	// longer running.
	RunFor Duration `yaml:"run_for,omitempty"`

	// Assertions validate the finished session.
	Assertions []Assertion `yaml:"assertions"`
}

// Config mirrors model.Config with YAML keys.
type Config struct {
	NBack           int     `yaml:"n_back"`
	SecondsPerTrial float64 `yaml:"seconds_per_trial"`
	MatchPercentage float64 `yaml:"match_percentage"`
	TotalTrials     int     `yaml:"total_trials"`
	ShowFeedback    bool    `yaml:"show_feedback"`
	GridSize        int     `yaml:"grid_size,omitempty"`
}

// Model converts the scenario config to the engine's configuration.
func (c Config) Model() model.Config {
	return model.Config{
		NBack:           c.NBack,
		SecondsPerTrial: c.SecondsPerTrial,
		MatchPercentage: c.MatchPercentage,
		TotalTrials:     c.TotalTrials,
		ShowFeedback:    c.ShowFeedback,
		GridSize:        c.GridSize,
	}
}

// Timing overrides engine delays. Nil fields keep the engine defaults.
type Timing struct {
	StartDelay *Duration `yaml:"start_delay,omitempty"`
	TrialGap   *Duration `yaml:"trial_gap,omitempty"`
	Feedback   *Duration `yaml:"feedback,omitempty"`
}

// Step is one timed control call.
type Step struct {
	// At is the offset from Start.
	At Duration `yaml:"at"`

	// Action is the control call to make.
	Action string `yaml:"action"`

	// Expect is the expected result: an outcome or "rejected" for respond,
	// "ok" or "rejected" for everything else. Empty skips the check.
	Expect string `yaml:"expect,omitempty"`
}

// Assertion validates the finished session.
type Assertion struct {
	// Type specifies the assertion type:
	// - "summary": subset match on summary fields
	// - "event_count": Event appears exactly Count times
	// - "event_order": Events appear in order
	// - "outcomes": per-trial outcomes equal Outcomes
	// - "phase": final phase equals Phase
	// - "archive": archived runs row matches Expect
	Type string `yaml:"type"`

	// Expect holds expected field values (used by summary and archive).
	// Subset match - only specified fields are validated.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Event is the event type (used by event_count).
	Event string `yaml:"event,omitempty"`

	// Trial restricts event_count to one trial (1-based). Zero counts all.
	Trial int `yaml:"trial,omitempty"`

	// Count is the expected number of occurrences (used by event_count).
	Count int `yaml:"count,omitempty"`

	// Events is the expected event order (used by event_order).
	Events []string `yaml:"events,omitempty"`

	// Outcomes lists the expected outcome of each trial (used by outcomes).
	Outcomes []string `yaml:"outcomes,omitempty"`

	// Phase is the expected final phase (used by phase).
	Phase string `yaml:"phase,omitempty"`
}

// Action names.
const (
	ActionRespond     = "respond"
	ActionPause       = "pause"
	ActionResume      = "resume"
	ActionStop        = "stop"
	ActionViewResults = "view_results"
	ActionBack        = "back"
	ActionReset       = "reset"
	ActionStart       = "start"
)

// Step results other than outcomes.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
)

// Assertion type constants.
const (
	AssertSummary    = "summary"
	AssertEventCount = "event_count"
	AssertEventOrder = "event_order"
	AssertOutcomes   = "outcomes"
	AssertPhase      = "phase"
	AssertArchive    = "archive"
)

// Duration is a time.Duration written as a Go duration string ("1.5s").
type Duration time.Duration

// D returns d as a time.Duration.
func (d Duration) D() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q", node.Line, s)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks required fields and value ranges.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}

	c := s.Config
	switch {
	case c.NBack < 1:
		return fmt.Errorf("config.n_back must be at least 1, got %d", c.NBack)
	case c.TotalTrials <= c.NBack:
		return fmt.Errorf("config.total_trials must exceed n_back, got %d", c.TotalTrials)
	case c.SecondsPerTrial <= 0:
		return fmt.Errorf("config.seconds_per_trial must be positive, got %g", c.SecondsPerTrial)
	case c.MatchPercentage < 0 || c.MatchPercentage > 100:
		return fmt.Errorf("config.match_percentage must be within 0-100, got %g", c.MatchPercentage)
	case c.GridSize < 0:
		return fmt.Errorf("config.grid_size must not be negative, got %d", c.GridSize)
	}

	if len(s.Sequence) > 0 {
		if s.Seed != 0 {
			return errors.New("sequence and seed are mutually exclusive")
		}
		if len(s.Sequence) != c.TotalTrials {
			return fmt.Errorf("sequence has %d positions, want total_trials (%d)", len(s.Sequence), c.TotalTrials)
		}
		cells := c.Model().Cells()
		for i, p := range s.Sequence {
			if p < 0 || p >= cells {
				return fmt.Errorf("sequence[%d]: position %d outside grid of %d cells", i, p, cells)
			}
		}
	}

	var last Duration
	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
		if step.At < last {
			return fmt.Errorf("steps[%d]: at %s is before the previous step", i, step.At.D())
		}
		last = step.At
	}
	if s.RunFor != 0 && s.RunFor < last {
		return fmt.Errorf("run_for %s ends before the last step", s.RunFor.D())
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, step Step) error {
	if step.At < 0 {
		return fmt.Errorf("steps[%d]: at must not be negative", index)
	}

	switch step.Action {
	case ActionRespond:
		if step.Expect != "" && step.Expect != ResultRejected && !model.EventType(step.Expect).IsOutcome() {
			return fmt.Errorf("steps[%d]: respond expects an outcome or %q, got %q", index, ResultRejected, step.Expect)
		}
	case ActionPause, ActionResume, ActionStop, ActionViewResults, ActionBack, ActionReset, ActionStart:
		if step.Expect != "" && step.Expect != ResultOK && step.Expect != ResultRejected {
			return fmt.Errorf("steps[%d]: %s expects %q or %q, got %q", index, step.Action, ResultOK, ResultRejected, step.Expect)
		}
	case "":
		return fmt.Errorf("steps[%d]: action is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", index, step.Action)
	}
	return nil
}

// validateAssertion checks assertion-specific required fields.
func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case AssertSummary:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: summary requires expect", index)
		}
		for key := range a.Expect {
			if _, ok := summaryFields[key]; !ok {
				return fmt.Errorf("assertions[%d]: unknown summary field %q", index, key)
			}
		}
	case AssertEventCount:
		if !isEventType(a.Event) {
			return fmt.Errorf("assertions[%d]: event_count requires a valid event, got %q", index, a.Event)
		}
		if a.Count < 0 || a.Trial < 0 {
			return fmt.Errorf("assertions[%d]: event_count count and trial must not be negative", index)
		}
	case AssertEventOrder:
		if len(a.Events) < 2 {
			return fmt.Errorf("assertions[%d]: event_order requires at least 2 events", index)
		}
		for _, ev := range a.Events {
			if !isEventType(ev) {
				return fmt.Errorf("assertions[%d]: unknown event %q", index, ev)
			}
		}
	case AssertOutcomes:
		for _, o := range a.Outcomes {
			if !model.EventType(o).IsOutcome() {
				return fmt.Errorf("assertions[%d]: %q is not an outcome", index, o)
			}
		}
	case AssertPhase:
		if _, ok := phases[a.Phase]; !ok {
			return fmt.Errorf("assertions[%d]: unknown phase %q", index, a.Phase)
		}
	case AssertArchive:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: archive requires expect", index)
		}
		for key := range a.Expect {
			if !validIdentifier.MatchString(key) {
				return fmt.Errorf("assertions[%d]: invalid column name %q", index, key)
			}
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

var phases = map[string]model.Phase{
	model.PhaseIdle.String():     model.PhaseIdle,
	model.PhaseRunning.String():  model.PhaseRunning,
	model.PhasePaused.String():   model.PhasePaused,
	model.PhaseComplete.String(): model.PhaseComplete,
}

func isEventType(s string) bool {
	t := model.EventType(s)
	return t.IsOutcome() || t == model.EventTrialStart || t == model.EventTrialEnd
}
