package harness

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/nback/internal/engine"
	"github.com/roach88/nback/internal/model"
	"github.com/roach88/nback/internal/results"
	"github.com/roach88/nback/internal/testutil"
)

// maxTimerFirings bounds a run-to-completion loop.
const maxTimerFirings = 100_000

// Harness executes one scenario on a fake clock.
type Harness struct {
	scenario *Scenario
	engine   *engine.Engine
	clock    *testutil.FakeClock
	start    time.Time
	log      *zap.Logger
}

// Option configures a harness run.
type Option func(*Harness)

// WithLogger routes engine logs to l. Default: zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(h *Harness) {
		h.log = l
	}
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Start the engine at offset zero on a fresh fake clock
//  2. For each step, advance the clock to its offset and apply the action
//  3. Advance to run_for, or until the test stops running
//  4. Evaluate assertions against the trace and the final run record
//
// An error is returned only when the scenario cannot be executed; failed
// expectations are reported through Result.Errors.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	h := &Harness{
		scenario: scenario,
		clock:    testutil.NewFakeClock(time.Time{}),
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.start = h.clock.Now()
	h.engine = engine.New(scenario.Config.Model(), h.engineOptions()...)
	defer h.engine.Close()

	result := NewResult()

	if !h.engine.Start() {
		return nil, fmt.Errorf("engine refused to start")
	}
	h.collect(result)

	for i, step := range scenario.Steps {
		h.advanceTo(step.At.D())
		h.collect(result)

		got := h.apply(step.Action)
		result.AddActionTrace(h.offset(), step.Action, got)
		if step.Expect != "" && step.Expect != got {
			result.AddError(fmt.Sprintf("steps[%d]: %s at %s: expected %s, got %s",
				i, step.Action, step.At.D(), step.Expect, got))
		}
		h.collect(result)
	}

	if scenario.RunFor > 0 {
		h.advanceTo(scenario.RunFor.D())
	} else {
		h.runToCompletion()
	}
	h.collect(result)

	result.Phase = h.engine.Phase()
	result.Record = h.engine.Record()
	result.Advice = results.Advise(result.Record.Summary, result.Record.Config.NBack, results.DefaultThresholds)

	for _, msg := range EvaluateAssertions(context.Background(), result, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

func (h *Harness) engineOptions() []engine.Option {
	s := h.scenario
	opts := []engine.Option{
		engine.WithClock(h.clock),
		engine.WithLogger(h.log),
		engine.WithRunIDGenerator(testutil.NewFixedRunIDGenerator(s.RunID)),
	}

	if len(s.Sequence) > 0 {
		positions := append([]int(nil), s.Sequence...)
		opts = append(opts, engine.WithSequenceFunc(func(cfg model.Config) model.Sequence {
			return model.Sequence{NBack: cfg.NBack, Positions: positions}
		}))
	} else {
		opts = append(opts, engine.WithSeed(s.Seed))
	}

	if t := s.Timing.StartDelay; t != nil {
		opts = append(opts, engine.WithStartDelay(t.D()))
	}
	if t := s.Timing.TrialGap; t != nil {
		opts = append(opts, engine.WithTrialGap(t.D()))
	}
	if t := s.Timing.Feedback; t != nil {
		opts = append(opts, engine.WithFeedbackDuration(t.D()))
	}
	return opts
}

// offset returns the fake time elapsed since the session started.
func (h *Harness) offset() time.Duration {
	return h.clock.Now().Sub(h.start)
}

// advanceTo moves the clock to the given offset, firing due timers.
func (h *Harness) advanceTo(at time.Duration) {
	if d := at - h.offset(); d > 0 {
		h.clock.Advance(d)
	} else {
		h.clock.Advance(0)
	}
}

// runToCompletion fires timers until the test stops running.
func (h *Harness) runToCompletion() {
	for range maxTimerFirings {
		if h.engine.Phase() != model.PhaseRunning {
			return
		}
		d, ok := h.clock.NextDue()
		if !ok {
			return
		}
		h.clock.Advance(d)
	}
	h.log.Warn("run did not finish", zap.Int("timer_firings", maxTimerFirings))
}

// apply makes the control call for action and reports its result.
func (h *Harness) apply(action string) string {
	var ok bool
	switch action {
	case ActionRespond:
		outcome, accepted := h.engine.Respond()
		if !accepted {
			return ResultRejected
		}
		return string(outcome)
	case ActionPause:
		ok = h.engine.Pause()
	case ActionResume:
		ok = h.engine.Resume()
	case ActionStop:
		ok = h.engine.Stop()
	case ActionViewResults:
		ok = h.engine.ViewResults()
	case ActionBack:
		ok = h.engine.BackToTest()
	case ActionReset:
		ok = h.engine.Reset()
	case ActionStart:
		ok = h.engine.Start()
	}
	if ok {
		return ResultOK
	}
	return ResultRejected
}

// collect drains published events into the trace. Snapshots are skipped.
func (h *Harness) collect(result *Result) {
	for _, u := range h.engine.Updates().Drain() {
		if u.Event != nil {
			result.AddEventTrace(u.Event.Time.Sub(h.start), *u.Event)
		}
	}
}
