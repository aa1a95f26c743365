package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/phantomscan/phantomscan/internal/model"
	"github.com/phantomscan/phantomscan/internal/policy"
)

// SignalOSV is the advisory known-vulnerability signal. Like dependents, it
// carries reasons but no default weight.
const SignalOSV = "osv"

// maxOSVReasons bounds how many advisory IDs we surface per package.
const maxOSVReasons = 5

// osvClient queries the OSV vulnerability database for advisories that
// already name the candidate. A hit usually means the package was reported
// as malware.
type osvClient struct {
	pol    *policy.Policy
	client *http.Client
}

type osvQuery struct {
	Package osvPackage `json:"package"`
	Version string     `json:"version,omitempty"`
}

type osvPackage struct {
	Name      string `json:"name"`
	Ecosystem string `json:"ecosystem"`
}

type osvResponse struct {
	Vulns []osvVuln `json:"vulns"`
}

type osvVuln struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
}

func (c *osvClient) Signal() string { return SignalOSV }

func (c *osvClient) Fetch(ctx context.Context, cand model.Candidate) (model.Signal, error) {
	sig := Default(SignalOSV)

	ecosystem := "PyPI"
	if cand.Ecosystem == model.EcosystemNPM {
		ecosystem = "npm"
	}
	body, err := json.Marshal(osvQuery{
		Package: osvPackage{Name: cand.Name, Ecosystem: ecosystem},
		Version: cand.Version,
	})
	if err != nil {
		return sig, fmt.Errorf("enrich: encode osv query: %w", err)
	}

	u := c.pol.Enrich.OSVAPI + "/v1/query"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return sig, fmt.Errorf("enrich: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return sig, fmt.Errorf("enrich: osv query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return sig, &StatusError{Code: resp.StatusCode, URL: u}
	}

	var out osvResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return sig, fmt.Errorf("enrich: decode osv response: %w", err)
	}

	if len(out.Vulns) == 0 {
		return sig, nil
	}
	sig.Value = 1.0
	for i, v := range out.Vulns {
		if i == maxOSVReasons {
			sig.Reasons = append(sig.Reasons,
				fmt.Sprintf("and %d more advisories", len(out.Vulns)-maxOSVReasons))
			break
		}
		reason := "Known advisory " + v.ID
		if v.Summary != "" {
			reason += ": " + v.Summary
		}
		sig.Reasons = append(sig.Reasons, reason)
	}
	return sig, nil
}
