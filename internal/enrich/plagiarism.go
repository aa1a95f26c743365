package enrich

import (
	"context"
	"fmt"
	"net/http"

	"github.com/phantomscan/phantomscan/internal/analysis"
	"github.com/phantomscan/phantomscan/internal/model"
	"github.com/phantomscan/phantomscan/internal/policy"
)

// maxReadmeBytes bounds how much repository readme we pull for comparison.
const maxReadmeBytes = 256 << 10

// plagiarismClient fills the readme-plagiarism slot: 5-gram Jaccard
// similarity between the package description and the linked repository's
// readme, case-insensitive and whitespace-normalized.
type plagiarismClient struct {
	pol    *policy.Policy
	client *http.Client
}

func (c *plagiarismClient) Signal() string { return model.SignalReadmePlagiarism }

func (c *plagiarismClient) Fetch(ctx context.Context, cand model.Candidate) (model.Signal, error) {
	sig := Default(model.SignalReadmePlagiarism)
	if cand.Description == "" {
		return sig, nil
	}

	owner, repo, ok := parseGitHubURL(cand.Repository)
	if !ok {
		return sig, nil
	}

	u := fmt.Sprintf("%s/repos/%s/%s/readme", c.pol.Enrich.GithubAPI, owner, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return sig, fmt.Errorf("enrich: build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.raw+json")

	resp, err := c.client.Do(req)
	if err != nil {
		return sig, fmt.Errorf("enrich: fetch readme: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return sig, nil // repository has no readme — nothing to compare
	}
	if resp.StatusCode != http.StatusOK {
		return sig, &StatusError{Code: resp.StatusCode, URL: u}
	}

	readme := make([]byte, 0, 4096)
	buf := make([]byte, 4096)
	for len(readme) < maxReadmeBytes {
		n, rerr := resp.Body.Read(buf)
		readme = append(readme, buf[:n]...)
		if rerr != nil {
			break
		}
	}

	similarity := analysis.ReadmeSimilarity(cand.Description, string(readme))
	sig.Value = analysis.PlagiarismValue(similarity, c.pol.Heuristics.ReadmeSimilarity)
	if sig.Value > 0 {
		sig.Reasons = append(sig.Reasons,
			fmt.Sprintf("Readme %.0f%% similar to linked repository readme", similarity*100))
	}
	return sig, nil
}
