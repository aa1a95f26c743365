// Package orchestrator coordinates one candidate's full evaluation.
//
// The flow: validate, run the six local calculators synchronously, then fan
// out the registry existence gate and every enabled enrichment client
// concurrently under the policy's global deadline. Enrichment failures are
// soft: a failing client degrades its own slot to the default signal and
// never disturbs its siblings. An exceeded global deadline is the one hard
// failure, surfaced as ErrOverload rather than a partial score.
//
// Slot assignment is fixed before the fan-out starts, so the assembled
// signal set is identical regardless of completion order.
package orchestrator
