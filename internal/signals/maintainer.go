package signals

import (
	"fmt"
	"time"

	"github.com/phantomscan/phantomscan/internal/model"
	"github.com/phantomscan/phantomscan/internal/policy"
)

// youngAccountBonus is added when a maintainer account is younger than the
// configured threshold. The total stays capped at 1.0.
const youngAccountBonus = 0.3

// MaintainerRep scores maintainer reputation: base 1.0 for a single (or no)
// maintainer, plus bonuses for a disposable email domain and a very young
// account. Unknown classifications contribute nothing.
func MaintainerRep(c model.Candidate, pol *policy.Policy, _ time.Time) model.Signal {
	sig := model.Signal{Name: model.SignalMaintainerRep}

	if c.MaintainersCount <= 1 {
		sig.Value = 1.0
		sig.Reasons = append(sig.Reasons, "Single maintainer")
	}

	if c.DisposableEmail != nil && *c.DisposableEmail {
		sig.Value = clamp01(sig.Value + youngAccountBonus)
		sig.Reasons = append(sig.Reasons, "Disposable email domain")
	}

	if c.MaintainerAgeDays != nil && *c.MaintainerAgeDays < pol.Heuristics.MaintainerAgeDays {
		sig.Value = clamp01(sig.Value + youngAccountBonus)
		sig.Reasons = append(sig.Reasons,
			fmt.Sprintf("Very young maintainer account (%d days)", *c.MaintainerAgeDays))
	}

	return sig
}
