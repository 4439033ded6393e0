// Package store provides the SQLite-backed archive of completed N-back runs.
//
// A saved run keeps everything needed to review or export it later:
//   - runs: configuration, stimulus positions and results summary, plus the
//     n-back level and accuracy as columns for history queries
//   - trial_events: the full event log of the run
//   - responses: the response log, including the records written for misses
//
// # Ordering
//
// Events and responses are read back ORDER BY seq / idx, never by timestamp,
// so a run reads back exactly as it was logged. Run listings are newest
// first by start time, ties broken by ID.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Deleting a run deletes its logs
//
// The trial engine never depends on the archive; saving is the host's call.
package store
