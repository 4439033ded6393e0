// Package model defines the data shared by every part of the N-back engine.
//
// The types here are plain values. Configuration and the stimulus sequence are
// immutable for the lifetime of one test run; trial events and response
// records are append-only and never mutated once written.
//
// Trial indices are 0-based throughout. Reports convert to 1-based trial
// numbers at the export boundary only.
package model
