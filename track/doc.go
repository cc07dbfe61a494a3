// Package track owns the single-subject identity lock: the state machine that
// turns noisy, sparsely-delivered, unstably-labeled detector boxes into one
// stable, smoothly-predicted subject estimate.
//
// Responsibilities:
//   - Maintain the lock lifecycle (active, tentative, lost, reacquiring) from
//     match and miss timing on the video's own timeline.
//   - Re-associate the subject across detector id churn: an exact id match
//     wins unconditionally; geometry re-association holds a pending id under
//     hysteresis before rebinding, so a look-alike never captures the lock in
//     a single frame.
//   - Smooth position, size, and velocity with EMA blending; decay confidence
//     while the subject is unobserved.
//   - Project render-rate box estimates between detector batches without
//     mutating state.
//
// Key types:
//   - Lock: one tracked subject. Update on every detector batch, Predict at
//     render rate, CurrentBox for the latest smoothed estimate.
//   - Config: every tunable constant, with DefaultConfig as the baseline.
//   - EventCollector: optional instrumentation hook for state transitions,
//     match quality, and id rebinds.
//
// Dependency rule: track depends only on detect and geom. It performs no I/O,
// spawns no goroutines, and holds no locks; one goroutine drives one Lock.
package track
