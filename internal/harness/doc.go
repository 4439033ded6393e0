// Package harness runs scripted N-back sessions against the trial engine.
//
// A scenario drives the engine on a fake clock, so a session of any length
// runs instantly and produces the same trace every time.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: perfect_2back
//	description: "Every match is answered half a second in"
//	config:
//	  n_back: 2
//	  seconds_per_trial: 2
//	  match_percentage: 30
//	  total_trials: 5
//	sequence: [1, 2, 1, 2, 1]   # or seed: 42
//	timing:
//	  start_delay: 1s
//	  trial_gap: 500ms
//	steps:
//	  - at: 6.5s
//	    action: respond
//	    expect: HIT
//	run_for: 20s                # optional, default runs to completion
//	assertions:
//	  - type: summary
//	    expect: { hits: 3, accuracy: 100 }
//	  - type: event_order
//	    events: [TRIAL_START, HIT, TRIAL_END]
//
// Step offsets are measured from Start. Timers that fall due at a step's
// offset fire before the step's action is applied.
//
// # Actions
//
//   - respond: a MATCH response; expect is the outcome or "rejected"
//   - pause, resume, stop, view_results, back, reset, start: expect is
//     "ok" or "rejected"
//
// # Assertion Types
//
//   - summary: subset match on the results summary
//   - event_count: an event type appears exactly N times (optionally on one trial)
//   - event_order: event types appear in the given order
//   - outcomes: the per-trial outcomes, in trial order
//   - phase: the final lifecycle phase
//   - archive: the run saved to an in-memory archive has the given columns
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/perfect_2back.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
