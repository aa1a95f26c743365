// Package registry implements the existence gate: a single time-bounded
// query classifying whether a candidate genuinely exists in its source
// registry. The classification is deterministic under network uncertainty —
// timeout, offline and transport error are first-class outcomes, never
// coerced into "not-found". Strict-mode feed routing depends on this gate.
package registry
