package signals

import (
	"fmt"
	"time"

	"github.com/phantomscan/phantomscan/internal/model"
	"github.com/phantomscan/phantomscan/internal/policy"
)

// Newness scores package age with linear decay: 1.0 at age zero down to 0.0
// at the configured window. Negative age (clock skew between the registry
// and us) clamps to 1.0 rather than erroring.
func Newness(c model.Candidate, pol *policy.Policy, now time.Time) model.Signal {
	sig := model.Signal{Name: model.SignalNewness}
	if c.CreatedAt.IsZero() {
		return sig // unknown creation time — no newness claim either way
	}

	window := pol.Heuristics.NewPackageDays
	ageDays := int(now.Sub(c.CreatedAt).Hours() / 24)

	switch {
	case ageDays <= 0:
		sig.Value = 1.0
		sig.Reasons = append(sig.Reasons, "Published today")
	case ageDays < window:
		sig.Value = 1.0 - float64(ageDays)/float64(window)
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("Only %d days old", ageDays))
	}
	return sig
}
