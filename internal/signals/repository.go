package signals

import (
	"time"

	"github.com/phantomscan/phantomscan/internal/model"
	"github.com/phantomscan/phantomscan/internal/policy"
)

// RepoMissing scores absent project links: 1.0 when neither homepage nor
// repository URL is present, 0.5 when exactly one is, 0.0 when both are.
func RepoMissing(c model.Candidate, _ *policy.Policy, _ time.Time) model.Signal {
	sig := model.Signal{Name: model.SignalRepoMissing}

	hasRepo := c.Repository != ""
	hasHome := c.Homepage != ""

	switch {
	case !hasRepo && !hasHome:
		sig.Value = 1.0
		sig.Reasons = append(sig.Reasons, "No repository or homepage")
	case !hasRepo:
		sig.Value = 0.5
		sig.Reasons = append(sig.Reasons, "No repository URL")
	case !hasHome:
		sig.Value = 0.5
		sig.Reasons = append(sig.Reasons, "No homepage URL")
	}
	return sig
}
