package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/phantomscan/phantomscan/internal/model"
	"github.com/phantomscan/phantomscan/internal/policy"
)

// Client is the capability interface one enrichment category implements.
// Fetch must respect ctx and return promptly on cancellation; the signal it
// returns always carries the client's fixed slot name.
type Client interface {
	// Signal names the slot this client fills.
	Signal() string

	// Fetch produces the client's signal for the candidate. A non-nil
	// error means the slot degrades to its default value — errors are
	// soft and isolated to this client.
	Fetch(ctx context.Context, c model.Candidate) (model.Signal, error)
}

// New returns the clients enabled by the policy toggles, in a fixed order
// so the orchestrator's slot assignment is deterministic. now anchors every
// age computation so repeated runs are reproducible.
func New(pol *policy.Policy, now time.Time) []Client {
	httpClient := buildHTTPClient(pol)

	var out []Client
	if pol.Enrich.RepoFacts {
		out = append(out, &repoFactsClient{pol: pol, client: httpClient, now: now})
	}
	if pol.Enrich.Plagiarism {
		out = append(out, &plagiarismClient{pol: pol, client: httpClient})
	}
	if pol.Enrich.Downloads {
		out = append(out, &downloadsClient{pol: pol, client: httpClient, now: now})
	}
	if pol.Enrich.Versions {
		out = append(out, &versionsClient{pol: pol, client: httpClient})
	}
	if pol.Enrich.Provenance {
		out = append(out, &provenanceClient{pol: pol, client: httpClient})
	}
	if pol.Enrich.ContentScan {
		out = append(out, &contentClient{pol: pol, client: httpClient})
	}
	if pol.Enrich.Dependents && pol.Enrich.LibrariesIOKey() != "" {
		out = append(out, &dependentsClient{pol: pol, client: httpClient})
	}
	if pol.Enrich.OSV {
		out = append(out, &osvClient{pol: pol, client: httpClient})
	}
	return out
}

// Default returns the documented default (absent) signal for a slot:
// zero contribution, no reasons.
func Default(name string) model.Signal {
	return model.Signal{Name: name}
}

// headerRoundTripper injects the User-Agent and, where configured, a GitHub
// bearer token into every outgoing request.
type headerRoundTripper struct {
	base      http.RoundTripper
	userAgent string
	ghToken   string
	ghAPI     string
}

func (t *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	if t.ghToken != "" && t.ghAPI != "" && hasPrefixURL(req, t.ghAPI) {
		req.Header.Set("Authorization", "Bearer "+t.ghToken)
	}
	return t.base.RoundTrip(req)
}

func hasPrefixURL(req *http.Request, base string) bool {
	return len(req.URL.String()) >= len(base) && req.URL.String()[:len(base)] == base
}

// buildHTTPClient constructs the shared http.Client for all enrichment
// calls. The per-call sub-deadline is enforced here; the orchestrator's
// global deadline additionally bounds everything via ctx.
func buildHTTPClient(pol *policy.Policy) *http.Client {
	return &http.Client{
		Transport: &headerRoundTripper{
			base:      http.DefaultTransport,
			userAgent: pol.Network.UserAgent,
			ghToken:   pol.Enrich.GithubToken(),
			ghAPI:     pol.Enrich.GithubAPI,
		},
		Timeout: pol.Enrich.Timeout,
	}
}

// getJSON fetches url and decodes the response body into v.
// Non-2xx statuses are returned as errors carrying the status code.
func getJSON(ctx context.Context, client *http.Client, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("enrich: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("enrich: http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, URL: url}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("enrich: decode %s: %w", url, err)
	}
	return nil
}

// getBody fetches url and returns up to limit bytes of the response body.
func getBody(ctx context.Context, client *http.Client, url string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("enrich: build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("enrich: http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, URL: url}
	}
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}

// StatusError is a non-2xx HTTP response from an enrichment source.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("enrich: unexpected status %d from %s", e.Code, e.URL)
}

// NotFound reports whether err is a 404 StatusError — for most sources that
// simply means "no data for this package", not a failure.
func NotFound(err error) bool {
	se, ok := err.(*StatusError)
	return ok && se.Code == http.StatusNotFound
}
