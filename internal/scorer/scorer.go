package scorer

import (
	"sort"
	"time"

	"github.com/phantomscan/phantomscan/internal/model"
	"github.com/phantomscan/phantomscan/internal/policy"
)

// Aggregate folds a complete signal set into a breakdown with the weighted
// total and the ordered reasons list. The total is the literal weighted sum:
// a signal with no configured weight contributes nothing, and weights are
// never renormalized. Signal values are clamped to [0,1] before weighting so
// a misbehaving source cannot push the total past what its weight allows.
func Aggregate(sigs []model.Signal, pol *policy.Policy) model.ScoreBreakdown {
	var b model.ScoreBreakdown

	ordered := make([]model.Signal, len(sigs))
	copy(ordered, sigs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return pol.PriorityFor(ordered[i].Name) < pol.PriorityFor(ordered[j].Name)
	})

	var total float64
	for _, s := range ordered {
		v := clamp01(s.Value)
		setSubscore(&b, s.Name, v)
		total += pol.WeightFor(s.Name) * v
		b.Reasons = append(b.Reasons, s.Reasons...)
	}
	b.Total = clamp01(total)
	return b
}

// Score produces the full scored candidate: breakdown, triage risk level,
// and the as-of timestamp.
func Score(c model.Candidate, sigs []model.Signal, existence model.ExistenceResult, pol *policy.Policy, now time.Time) model.ScoredCandidate {
	b := Aggregate(sigs, pol)
	return model.ScoredCandidate{
		Candidate: c,
		Score:     b.Total,
		Breakdown: b,
		Existence: existence,
		RiskLevel: RiskLevel(b.Total, pol),
		ScoredAt:  now,
	}
}

// RiskLevel maps a total score to the triage bands used by the feed and the
// alert rules.
func RiskLevel(total float64, pol *policy.Policy) string {
	switch {
	case total >= pol.Feed.HighRisk:
		return "high"
	case total >= pol.Feed.MediumRisk:
		return "medium"
	default:
		return "low"
	}
}

// setSubscore writes a signal's value into its breakdown field. Advisory
// signals have no field; their value still reaches the total through the
// weighted sum if a policy weights them.
func setSubscore(b *model.ScoreBreakdown, name string, v float64) {
	switch name {
	case model.SignalNameSuspicion:
		b.NameSuspicion = v
	case model.SignalNewness:
		b.Newness = v
	case model.SignalRepoMissing:
		b.RepoMissing = v
	case model.SignalMaintainerRep:
		b.MaintainerRep = v
	case model.SignalScriptRisk:
		b.ScriptRisk = v
	case model.SignalHallucination:
		b.Hallucination = v
	case model.SignalContentRisk:
		b.ContentRisk = v
	case model.SignalProvenanceRisk:
		b.ProvenanceRisk = v
	case model.SignalRepoAsymmetry:
		b.RepoAsymmetry = v
	case model.SignalDownloadAnomaly:
		b.DownloadAnomaly = v
	case model.SignalVersionFlip:
		b.VersionFlip = v
	case model.SignalReadmePlagiarism:
		b.ReadmePlagiarism = v
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
