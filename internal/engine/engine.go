package engine

import (
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/nback/internal/clock"
	"github.com/roach88/nback/internal/model"
	"github.com/roach88/nback/internal/recorder"
	"github.com/roach88/nback/internal/results"
	"github.com/roach88/nback/internal/scoring"
	"github.com/roach88/nback/internal/sequence"
)

const (
	// DefaultStartDelay is the pause between Start and the first stimulus.
	DefaultStartDelay = time.Second

	// DefaultTrialGap is the inter-trial gap after a window closes.
	DefaultTrialGap = 500 * time.Millisecond

	// DefaultFeedbackDuration is how long feedback text stays visible.
	DefaultFeedbackDuration = 3 * time.Second
)

// SequenceFunc builds the stimulus sequence for a run.
type SequenceFunc func(cfg model.Config) model.Sequence

// Engine is the trial scheduler state machine.
//
// Thread-safety: every exported method is safe for concurrent use. Timer
// callbacks take the same mutex, so at any instant exactly one of them or
// one control call is mutating the run.
type Engine struct {
	mu sync.Mutex

	clock       clock.Clock
	log         *zap.Logger
	idGen       RunIDGenerator
	rng         *rand.Rand
	sequenceFor SequenceFunc
	updates     *UpdateQueue

	startDelay       time.Duration
	trialGap         time.Duration
	feedbackDuration time.Duration

	cfg model.Config

	// Run state. Replaced wholesale by Start and Reset.
	runCfg    model.Config // cfg as of Start; Configure never touches it
	phase     model.Phase
	epoch     uint64
	runID     string
	seq       model.Sequence
	rec       *recorder.Log
	counters  scoring.Counters
	startTime time.Time
	final     *model.Summary

	current         int  // index of the trial presented last
	presented       bool // whether any trial has been presented
	next            int  // trial the gap timer will present
	visible         bool
	responseAllowed bool
	trialStart      time.Time
	windowDuration  time.Duration // duration of the window currently armed
	remaining       time.Duration
	hasRemaining    bool
	resumeTrial     int
	viewingResults  bool
	message         string

	window   timerSlot
	gap      timerSlot
	feedback timerSlot
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the system clock.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLogger sets the logger. Default: zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithRunIDGenerator replaces the UUIDv7 run ID generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) {
		e.idGen = g
	}
}

// WithSeed makes sequence generation deterministic.
func WithSeed(seed uint64) Option {
	return func(e *Engine) {
		e.rng = sequence.NewRand(seed)
	}
}

// WithSequenceFunc replaces sequence generation, e.g. to replay a fixed
// sequence.
func WithSequenceFunc(f SequenceFunc) Option {
	return func(e *Engine) {
		e.sequenceFor = f
	}
}

// WithStartDelay sets the delay before the first stimulus.
func WithStartDelay(d time.Duration) Option {
	return func(e *Engine) {
		e.startDelay = d
	}
}

// WithTrialGap sets the inter-trial gap.
func WithTrialGap(d time.Duration) Option {
	return func(e *Engine) {
		e.trialGap = d
	}
}

// WithFeedbackDuration sets how long feedback text stays visible.
func WithFeedbackDuration(d time.Duration) Option {
	return func(e *Engine) {
		e.feedbackDuration = d
	}
}

// New creates an idle Engine for cfg.
func New(cfg model.Config, opts ...Option) *Engine {
	e := &Engine{
		clock:            clock.System{},
		log:              zap.NewNop(),
		idGen:            UUIDv7Generator{},
		updates:          NewUpdateQueue(),
		startDelay:       DefaultStartDelay,
		trialGap:         DefaultTrialGap,
		feedbackDuration: DefaultFeedbackDuration,
		cfg:              cfg,
		rec:              recorder.New(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if e.sequenceFor == nil {
		e.sequenceFor = func(cfg model.Config) model.Sequence {
			return sequence.Generate(cfg, e.rng)
		}
	}

	return e
}

// Configure replaces the configuration. It is rejected while a run is in
// progress; the new configuration applies from the next Start. A completed
// run keeps reporting the configuration it ran with.
func (e *Engine) Configure(cfg model.Config) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase == model.PhaseRunning || e.phase == model.PhasePaused {
		return false
	}
	e.cfg = cfg
	return true
}

// Start begins a new run. Only valid from Idle: a completed run must be
// Reset first. The first stimulus is presented after the start delay.
func (e *Engine) Start() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != model.PhaseIdle {
		return false
	}

	e.stopRunTimers()
	e.epoch++
	e.runID = e.idGen.Generate()
	e.runCfg = e.cfg
	e.seq = e.sequenceFor(e.runCfg).Clone()
	e.rec = recorder.New()
	e.counters = scoring.Counters{}
	e.final = nil
	e.startTime = e.clock.Now()
	e.clearTrialState()
	e.viewingResults = false
	e.setMessage("")
	e.phase = model.PhaseRunning

	e.log.Info("test started",
		zap.String("run_id", e.runID),
		zap.Int("n_back", e.runCfg.NBack),
		zap.Int("total_trials", e.runCfg.TotalTrials),
		zap.Float64("seconds_per_trial", e.runCfg.SecondsPerTrial),
		zap.Float64("match_percentage", e.runCfg.MatchPercentage),
		zap.Int("matches", e.seq.MatchCount()),
	)

	e.armGap(0, e.startDelay)
	e.publishSnapshot()
	return true
}

// Pause freezes the open response window. Only valid while Running with a
// window open; the remaining window time is kept for Resume.
func (e *Engine) Pause() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != model.PhaseRunning || !e.responseAllowed {
		return false
	}
	e.pauseWindow()
	e.publishSnapshot()
	return true
}

// Resume re-presents the paused trial with the remaining window time.
//
// Resuming appends a fresh TRIAL_START and measures reaction time from the
// resume instant, not from the original presentation.
func (e *Engine) Resume() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != model.PhasePaused {
		return false
	}

	window := e.runCfg.WindowDuration()
	if e.hasRemaining {
		window = e.remaining
	}
	e.hasRemaining = false
	e.phase = model.PhaseRunning

	e.log.Debug("test resumed", zap.Int("trial", e.resumeTrial), zap.Duration("window", window))
	e.present(e.resumeTrial, window)
	return true
}

// Stop ends the run early and computes the final results. Valid while
// Running or Paused.
func (e *Engine) Stop() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != model.PhaseRunning && e.phase != model.PhasePaused {
		return false
	}
	e.finish()
	return true
}

// Reset cancels every pending timer, discards the run and returns to Idle.
func (e *Engine) Reset() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopRunTimers()
	e.feedback.stop()
	e.epoch++
	e.phase = model.PhaseIdle
	e.runID = ""
	e.seq = model.Sequence{}
	e.rec = recorder.New()
	e.counters = scoring.Counters{}
	e.final = nil
	e.startTime = time.Time{}
	e.clearTrialState()
	e.viewingResults = false
	e.message = ""

	e.log.Debug("test reset")
	e.publishSnapshot()
	return true
}

// Respond records a user response for the open window and returns its
// outcome. It is a no-op (ok=false) unless the engine is Running, the window
// is open and the trial has no response yet.
func (e *Engine) Respond() (outcome model.EventType, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != model.PhaseRunning || !e.responseAllowed {
		return "", false
	}
	i := e.current
	if e.rec.HasResponse(i) {
		return "", false
	}

	now := e.clock.Now()
	rt := reactionTimeMs(now.Sub(e.trialStart))
	outcome = scoring.ClassifyResponse(e.seq, i)
	correct := outcome == model.EventHit

	err := e.rec.AppendResponse(model.ResponseRecord{
		TrialIndex:     i,
		Time:           now,
		Position:       e.seq.At(i),
		IsMatch:        e.seq.IsMatch(i),
		IsResponse:     true,
		Correct:        correct,
		ReactionTimeMs: model.Int(rt),
	})
	if err != nil {
		e.log.Debug("response rejected", zap.Int("trial", i), zap.Error(err))
		return "", false
	}

	e.appendEvent(i, outcome, model.Bool(correct), model.Int(rt))
	e.counters.Record(outcome, rt)
	e.log.Debug("response recorded",
		zap.Int("trial", i),
		zap.String("outcome", string(outcome)),
		zap.Int("reaction_time_ms", rt),
	)

	if e.runCfg.ShowFeedback {
		if msg := scoring.Feedback(outcome, i, e.runCfg.NBack); msg != "" {
			e.setMessage(msg)
		}
	}
	e.publishSnapshot()
	return outcome, true
}

// ViewResults switches the host to the results view. A running test is
// paused first: an open window keeps its remaining time, and during the
// inter-trial gap the next trial is held until Resume.
func (e *Engine) ViewResults() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase == model.PhaseIdle {
		return false
	}
	if e.phase == model.PhaseRunning {
		if e.responseAllowed {
			e.pauseWindow()
		} else {
			e.pauseGap()
		}
	}
	e.viewingResults = true
	e.publishSnapshot()
	return true
}

// BackToTest leaves the results view. A paused test stays paused.
func (e *Engine) BackToTest() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.viewingResults {
		return false
	}
	e.viewingResults = false
	e.publishSnapshot()
	return true
}

// Notify shows host-supplied feedback text, e.g. after saving results. The
// text clears itself after the feedback duration.
func (e *Engine) Notify(msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.setMessage(msg)
	e.publishSnapshot()
}

// Close stops every timer and closes the update queue. The engine must not
// be used afterwards.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopRunTimers()
	e.feedback.stop()
	e.epoch++
	e.updates.Close()
}

// Updates returns the queue the engine publishes events and snapshots to.
func (e *Engine) Updates() *UpdateQueue {
	return e.updates
}

// Snapshot returns the current render state.
func (e *Engine) Snapshot() model.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot()
}

// Phase returns the current lifecycle phase.
func (e *Engine) Phase() model.Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Config returns the configuration the next (or current) run uses.
func (e *Engine) Config() model.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// RunID returns the identifier of the current run, "" when Idle.
func (e *Engine) RunID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runID
}

// Sequence returns a copy of the current run's stimulus sequence.
func (e *Engine) Sequence() model.Sequence {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq.Clone()
}

// Events returns a copy of the trial event log.
func (e *Engine) Events() []model.TrialEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec.Events()
}

// Responses returns a copy of the response log.
func (e *Engine) Responses() []model.ResponseRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec.Responses()
}

// Summary returns the results summary: the frozen final summary once the run
// is Complete, otherwise a live snapshot computed now.
func (e *Engine) Summary() model.Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.summary()
}

// Record returns everything the current run produced. Complete is set only
// once the run has finished; a record taken earlier carries a live summary.
func (e *Engine) Record() model.RunRecord {
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg := e.runCfg
	if e.phase == model.PhaseIdle {
		cfg = e.cfg
	}
	return model.RunRecord{
		ID:        e.runID,
		Config:    cfg,
		Sequence:  e.seq.Clone(),
		Summary:   e.summary(),
		Events:    e.rec.Events(),
		Responses: e.rec.Responses(),
		Complete:  e.final != nil,
	}
}

func (e *Engine) summary() model.Summary {
	if e.final != nil {
		return *e.final
	}
	if e.phase == model.PhaseIdle {
		return model.Summary{}
	}
	return results.Summarize(results.Input{
		Counters:        e.counters.Clone(),
		StartTime:       e.startTime,
		EndTime:         e.clock.Now(),
		CompletedTrials: e.completedTrials(),
	})
}

func (e *Engine) completedTrials() int {
	if !e.presented {
		return 0
	}
	return e.current + 1
}

func (e *Engine) snapshot() model.Snapshot {
	s := model.Snapshot{
		Phase:             e.phase,
		CurrentTrialIndex: e.current,
		IsPaused:          e.phase == model.PhasePaused,
		ViewingResults:    e.viewingResults,
		ResponseAllowed:   e.phase == model.PhaseRunning && e.responseAllowed,
		ErrorMessage:      e.message,
	}
	if e.visible && e.current < e.seq.Len() {
		s.VisiblePosition = model.Int(e.seq.At(e.current))
	}
	return s
}

func (e *Engine) clearTrialState() {
	e.current = 0
	e.presented = false
	e.next = 0
	e.visible = false
	e.responseAllowed = false
	e.trialStart = time.Time{}
	e.windowDuration = 0
	e.remaining = 0
	e.hasRemaining = false
	e.resumeTrial = 0
}

func (e *Engine) stopRunTimers() {
	e.window.stop()
	e.gap.stop()
}

func reactionTimeMs(d time.Duration) int {
	if d < 0 {
		return 0
	}
	return int((d + time.Millisecond/2) / time.Millisecond)
}
