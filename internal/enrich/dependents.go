package enrich

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/phantomscan/phantomscan/internal/model"
	"github.com/phantomscan/phantomscan/internal/policy"
)

// SignalDependents is the advisory dependents-count signal. It has no default
// weight, so it contributes reasons without moving the total unless a policy
// explicitly weights it.
const SignalDependents = "dependents"

// dependentsClient looks up how many published packages depend on the
// candidate. A package nobody depends on is unremarkable; the reason exists
// so analysts see the number next to the other evidence.
type dependentsClient struct {
	pol    *policy.Policy
	client *http.Client
}

// librariesIOProject is the subset of the project document we read.
type librariesIOProject struct {
	DependentsCount     int `json:"dependents_count"`
	DependentReposCount int `json:"dependent_repos_count"`
}

func (c *dependentsClient) Signal() string { return SignalDependents }

func (c *dependentsClient) Fetch(ctx context.Context, cand model.Candidate) (model.Signal, error) {
	sig := Default(SignalDependents)

	platform := "pypi"
	if cand.Ecosystem == model.EcosystemNPM {
		platform = "npm"
	}
	u := fmt.Sprintf("%s/%s/%s?api_key=%s",
		c.pol.Enrich.LibrariesIOAPI, platform,
		url.PathEscape(cand.Name), url.QueryEscape(c.pol.Enrich.LibrariesIOKey()))

	var proj librariesIOProject
	if err := getJSON(ctx, c.client, u, &proj); err != nil {
		if NotFound(err) {
			return sig, nil
		}
		return sig, err
	}

	sig.Reasons = append(sig.Reasons,
		fmt.Sprintf("%d dependent packages, %d dependent repositories",
			proj.DependentsCount, proj.DependentReposCount))
	return sig, nil
}
