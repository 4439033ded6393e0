package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/roach88/nback/internal/model"
	"github.com/roach88/nback/internal/results"
	"github.com/roach88/nback/internal/scoring"
)

// The methods in this file assume e.mu is held.

// present shows trial i and opens its response window for window. Past the
// end of the sequence it finishes the run instead.
func (e *Engine) present(i int, window time.Duration) {
	if i >= e.seq.Len() {
		e.finish()
		return
	}

	e.current = i
	e.presented = true
	e.visible = true
	e.responseAllowed = true
	e.trialStart = e.clock.Now()
	e.windowDuration = window
	e.hasRemaining = false

	e.appendEvent(i, model.EventTrialStart, nil, nil)
	e.log.Debug("trial presented",
		zap.Int("trial", i),
		zap.Int("position", e.seq.At(i)),
		zap.Bool("match", e.seq.IsMatch(i)),
		zap.Duration("window", window),
	)

	epoch := e.epoch
	e.window.arm(e.clock, window, func(gen uint64) {
		e.onWindowClose(epoch, gen, i)
	})
	e.publishSnapshot()
}

// onWindowClose is the window-close timer callback for trial i.
func (e *Engine) onWindowClose(epoch, gen uint64, i int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.window.current(gen) || e.epoch != epoch || e.phase != model.PhaseRunning || e.current != i {
		e.log.Debug("stale window timer ignored", zap.Int("trial", i))
		return
	}
	e.window.release()

	if outcome, ok := scoring.ClassifyTimeout(e.seq, i, e.rec.HasResponse(i)); ok {
		if outcome == model.EventMiss {
			err := e.rec.AppendResponse(model.ResponseRecord{
				TrialIndex: i,
				Time:       e.clock.Now(),
				Position:   e.seq.At(i),
				IsMatch:    true,
			})
			if err != nil {
				e.log.Warn("miss record rejected", zap.Int("trial", i), zap.Error(err))
			}
		}
		e.appendEvent(i, outcome, model.Bool(outcome == model.EventCorrectReject), nil)
		e.counters.Record(outcome, 0)

		if e.runCfg.ShowFeedback {
			if msg := scoring.Feedback(outcome, i, e.runCfg.NBack); msg != "" {
				e.setMessage(msg)
			}
		}
	}

	e.visible = false
	e.responseAllowed = false
	e.appendEvent(i, model.EventTrialEnd, nil, nil)

	e.armGap(i+1, e.trialGap)
	e.publishSnapshot()
}

// armGap schedules the presentation of trial next after d.
func (e *Engine) armGap(next int, d time.Duration) {
	e.next = next
	epoch := e.epoch
	e.gap.arm(e.clock, d, func(gen uint64) {
		e.onGap(epoch, gen, next)
	})
}

// onGap is the inter-trial gap (and start delay) timer callback.
func (e *Engine) onGap(epoch, gen uint64, next int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.gap.current(gen) || e.epoch != epoch || e.phase != model.PhaseRunning {
		e.log.Debug("stale gap timer ignored", zap.Int("next_trial", next))
		return
	}
	e.gap.release()
	e.present(next, e.runCfg.WindowDuration())
}

// pauseWindow pauses with the window of the current trial open.
func (e *Engine) pauseWindow() {
	elapsed := e.clock.Now().Sub(e.trialStart)
	remaining := e.windowDuration - elapsed
	if remaining < 0 {
		remaining = 0
	}

	e.window.stop()
	e.remaining = remaining
	e.hasRemaining = true
	e.resumeTrial = e.current
	e.phase = model.PhasePaused

	e.log.Debug("test paused",
		zap.Int("trial", e.current),
		zap.Duration("remaining", remaining),
	)
}

// pauseGap pauses between trials; Resume presents the held trial with a
// full window.
func (e *Engine) pauseGap() {
	e.gap.stop()
	e.hasRemaining = false
	e.resumeTrial = e.next
	e.phase = model.PhasePaused

	e.log.Debug("test paused between trials", zap.Int("next_trial", e.next))
}

// finish stops the run, freezes the logs and computes the final summary.
func (e *Engine) finish() {
	e.stopRunTimers()
	e.epoch++
	e.phase = model.PhaseComplete
	e.visible = false
	e.responseAllowed = false
	e.hasRemaining = false

	s := results.Summarize(results.Input{
		Counters:        e.counters.Clone(),
		StartTime:       e.startTime,
		EndTime:         e.clock.Now(),
		CompletedTrials: e.completedTrials(),
	})
	e.final = &s
	e.rec.Freeze()

	e.log.Info("test complete",
		zap.String("run_id", e.runID),
		zap.Int("completed_trials", s.CompletedTrials),
		zap.Int("accuracy", s.Accuracy),
		zap.Int("hits", s.Hits),
		zap.Int("misses", s.Misses),
		zap.Int("false_alarms", s.FalseAlarms),
		zap.Int("correct_rejects", s.CorrectRejects),
	)
	e.publishSnapshot()
}

// appendEvent logs an event for trial i and publishes it.
func (e *Engine) appendEvent(i int, typ model.EventType, correct *bool, rt *int) {
	ev, err := e.rec.AppendEvent(model.TrialEvent{
		TrialIndex:     i,
		Time:           e.clock.Now(),
		Type:           typ,
		Position:       e.seq.At(i),
		IsMatch:        e.seq.IsMatch(i),
		Correct:        correct,
		ReactionTimeMs: rt,
	})
	if err != nil {
		e.log.Warn("event rejected", zap.Int("trial", i), zap.String("type", string(typ)), zap.Error(err))
		return
	}
	e.updates.Enqueue(Update{Event: &ev})
}

// setMessage replaces the feedback text and re-arms its clear timer.
func (e *Engine) setMessage(msg string) {
	e.feedback.stop()
	e.message = msg
	if msg == "" {
		return
	}
	e.feedback.arm(e.clock, e.feedbackDuration, e.onFeedbackClear)
}

// onFeedbackClear is the feedback-clear timer callback.
func (e *Engine) onFeedbackClear(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.feedback.current(gen) {
		return
	}
	e.feedback.release()
	e.message = ""
	e.publishSnapshot()
}

func (e *Engine) publishSnapshot() {
	s := e.snapshot()
	e.updates.Enqueue(Update{Snapshot: &s})
}
