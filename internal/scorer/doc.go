// Package scorer folds a candidate's signal set into its final score.
//
// The aggregation contract is deliberately simple: total = sum over signals
// of weight(signal) * clamp01(value), clamped to [0,1]. Weights come straight
// from the policy with no renormalization, so dropping a signal's weight
// silently removes its influence rather than redistributing it. Reasons are
// concatenated in signal-priority order, preserving insertion order within a
// signal, which keeps repeated runs byte-identical.
package scorer
