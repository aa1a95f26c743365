package signals

import (
	"time"

	"github.com/phantomscan/phantomscan/internal/model"
	"github.com/phantomscan/phantomscan/internal/policy"
)

// Calc is a pure signal calculator. Implementations must not perform I/O or
// read the wall clock — now is always passed in.
type Calc func(c model.Candidate, pol *policy.Policy, now time.Time) model.Signal

// Local returns the six local calculators in canonical order.
func Local() []Calc {
	return []Calc{
		NameSuspicion,
		Newness,
		RepoMissing,
		MaintainerRep,
		ScriptRisk,
		Hallucination,
	}
}
