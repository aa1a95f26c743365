package signals

import (
	"time"

	"github.com/phantomscan/phantomscan/internal/model"
	"github.com/phantomscan/phantomscan/internal/policy"
)

// Hallucination checks the candidate name against the curated corpus of
// names known to be invented by generative assistants. Any match forces the
// signal to 1.0 — a deliberate override, never blended with other evidence.
func Hallucination(c model.Candidate, pol *policy.Policy, _ time.Time) model.Signal {
	sig := model.Signal{Name: model.SignalHallucination}
	if pol.Hallucinations == nil {
		return sig
	}
	if hit, reason := pol.Hallucinations.Match(c.Name); hit {
		sig.Value = 1.0
		sig.Reasons = append(sig.Reasons, reason)
	}
	return sig
}
