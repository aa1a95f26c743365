package enrich

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/phantomscan/phantomscan/internal/model"
	"github.com/phantomscan/phantomscan/internal/policy"
)

// Asymmetry scores. A freshly created repository behind a new package is the
// strongest squatting tell; a long-dormant one is nearly as strong.
const (
	asymmetryFreshRepo   = 0.8
	asymmetryDormantRepo = 0.7
	asymmetryArchived    = 0.6
)

// Windows for the asymmetry heuristics.
const (
	freshRepoWindow  = 7 * 24 * time.Hour
	dormantThreshold = 365 * 24 * time.Hour
)

// repoFactsClient fills the repository-asymmetry slot by comparing the
// registry-listed creation time against the linked repository's apparent
// age and activity.
type repoFactsClient struct {
	pol    *policy.Policy
	client *http.Client
	now    time.Time
}

// githubRepo is the subset of the repository facts document we read.
type githubRepo struct {
	CreatedAt time.Time `json:"created_at"`
	PushedAt  time.Time `json:"pushed_at"`
	Archived  bool      `json:"archived"`
	Fork      bool      `json:"fork"`
}

func (c *repoFactsClient) Signal() string { return model.SignalRepoAsymmetry }

func (c *repoFactsClient) Fetch(ctx context.Context, cand model.Candidate) (model.Signal, error) {
	sig := Default(model.SignalRepoAsymmetry)

	owner, repo, ok := parseGitHubURL(cand.Repository)
	if !ok {
		// No linked repository, or one we cannot interrogate. Absence is
		// unknown, not risky — repo_missing covers the missing-link case.
		return sig, nil
	}

	var facts githubRepo
	u := fmt.Sprintf("%s/repos/%s/%s", c.pol.Enrich.GithubAPI, owner, repo)
	if err := getJSON(ctx, c.client, u, &facts); err != nil {
		if NotFound(err) {
			sig.Value = asymmetryFreshRepo
			sig.Reasons = append(sig.Reasons, "Linked repository does not exist")
			return sig, nil
		}
		return sig, err
	}

	pkgIsNew := !cand.CreatedAt.IsZero() &&
		c.now.Sub(cand.CreatedAt) < time.Duration(c.pol.Heuristics.NewPackageDays)*24*time.Hour

	switch {
	case pkgIsNew && !facts.CreatedAt.IsZero() && c.now.Sub(facts.CreatedAt) < freshRepoWindow:
		sig.Value = asymmetryFreshRepo
		sig.Reasons = append(sig.Reasons,
			fmt.Sprintf("Repository created %d days ago, alongside a brand-new package",
				int(c.now.Sub(facts.CreatedAt).Hours()/24)))
	case pkgIsNew && !facts.PushedAt.IsZero() && cand.CreatedAt.Sub(facts.PushedAt) > dormantThreshold:
		sig.Value = asymmetryDormantRepo
		sig.Reasons = append(sig.Reasons,
			"New package points at a repository dormant for over a year")
	case facts.Archived:
		sig.Value = asymmetryArchived
		sig.Reasons = append(sig.Reasons, "Linked repository is archived")
	}

	if facts.Fork && sig.Value > 0 {
		sig.Reasons = append(sig.Reasons, "Linked repository is a fork")
	}
	return sig, nil
}

// parseGitHubURL extracts owner and repository from a github.com URL.
func parseGitHubURL(raw string) (owner, repo string, ok bool) {
	if raw == "" {
		return "", "", false
	}
	raw = strings.TrimPrefix(raw, "git+")
	u, err := url.Parse(raw)
	if err != nil || !strings.HasSuffix(u.Hostname(), "github.com") {
		return "", "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), true
}
