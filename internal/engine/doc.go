// Package engine implements the N-back trial scheduler.
//
// The scheduler presents a timed sequence of stimuli, opens and closes the
// response window for each trial, classifies outcomes through the scoring
// package and hands the counters to the results package when the sequence is
// exhausted or the test is stopped.
//
// ARCHITECTURE:
//
// Single Logical Thread:
// All state lives in one Engine value guarded by a single mutex. Control
// calls (Start, Pause, Respond, ...) and timer callbacks both run under that
// mutex, so the response handler and the window-close handler are mutually
// exclusive for a trial and the order in which they run decides the outcome.
// No operation blocks the caller; waiting is expressed as a scheduled timer.
//
// Trial Protocol (phase Running):
//  1. Present: show the stimulus, open the window, append TRIAL_START,
//     arm the window-close timer.
//  2. Window close: classify MISS / CORRECT_REJECT unless the recorder holds
//     a response for the trial, hide the stimulus, append TRIAL_END, arm the
//     inter-trial gap timer.
//  3. Gap: present the next trial, or finish when the sequence is exhausted.
//
// Timer Slots:
// Each logical timer (window-close, gap, feedback-clear) owns one slot. Arming
// a slot always stops the previous timer first, and every callback carries the
// slot generation and the run epoch it was armed for. A callback whose
// generation, epoch or expected phase no longer match is ignored, which keeps
// stale timers from firing trials twice after Pause, Stop or Reset.
//
// Time:
// The engine never reads the wall clock directly; it asks its clock.Clock.
// Tests use testutil.FakeClock to advance time deterministically.
package engine
