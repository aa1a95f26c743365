package sources

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/phantomscan/phantomscan/internal/model"
	"github.com/phantomscan/phantomscan/internal/policy"
)

// repoURLKeys are the project_urls entries treated as the repository link,
// in preference order.
var repoURLKeys = []string{"Source", "Repository", "Code", "GitHub", "GitLab"}

// PyPISource reads the PyPI newest-packages and latest-updates RSS feeds and
// resolves each named project to a candidate via the JSON API.
type PyPISource struct {
	pol    *policy.Policy
	client *http.Client
}

// NewPyPI creates the PyPI source from the policy's sources block.
func NewPyPI(pol *policy.Policy) *PyPISource {
	return &PyPISource{
		pol:    pol,
		client: &http.Client{Timeout: pol.Sources.PyPI.Timeout},
	}
}

func (s *PyPISource) Ecosystem() model.Ecosystem { return model.EcosystemPyPI }

// rss is the feed document shape shared by both PyPI feeds.
type rss struct {
	Channel struct {
		Items []struct {
			Title string `xml:"title"`
		} `xml:"item"`
	} `xml:"channel"`
}

// pypiDoc is the subset of the JSON API project document a candidate needs.
type pypiDoc struct {
	Info struct {
		Name        string            `json:"name"`
		Version     string            `json:"version"`
		Summary     string            `json:"summary"`
		HomePage    string            `json:"home_page"`
		ProjectURL  string            `json:"project_url"`
		ProjectURLs map[string]string `json:"project_urls"`
	} `json:"info"`
	Releases map[string][]struct {
		UploadTime string `json:"upload_time_iso_8601"`
	} `json:"releases"`
}

// FetchRecent collects project names from both RSS feeds and normalizes up
// to limit of them. Individual lookup failures are skipped with a warning.
func (s *PyPISource) FetchRecent(ctx context.Context, limit int) ([]model.Candidate, error) {
	if limit <= 0 {
		limit = s.pol.Sources.PyPI.Limit
	}

	seen := make(map[string]struct{})
	var names []string
	for _, feedURL := range []string{s.pol.Sources.PyPI.RSSPackages, s.pol.Sources.PyPI.RSSUpdates} {
		feedNames, err := s.fetchRSS(ctx, feedURL, limit/2)
		if err != nil {
			slog.Warn("sources: pypi rss feed failed", "url", feedURL, "error", err)
			continue
		}
		for _, n := range feedNames {
			if _, ok := seen[n]; !ok {
				seen[n] = struct{}{}
				names = append(names, n)
			}
		}
	}
	if len(names) > perFeedDetailLimit {
		names = names[:perFeedDetailLimit]
	}

	out := make([]model.Candidate, 0, len(names))
	for _, name := range names {
		c, err := s.fetchOne(ctx, name)
		if err != nil {
			slog.Warn("sources: skipping pypi package", "name", name, "error", err)
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// fetchRSS returns up to limit package names from one feed. Item titles have
// the form "package-name version".
func (s *PyPISource) fetchRSS(ctx context.Context, url string, limit int) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.pol.Network.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	var doc rss
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse rss: %w", err)
	}

	var names []string
	for _, item := range doc.Channel.Items {
		if limit > 0 && len(names) >= limit {
			break
		}
		name, _, _ := strings.Cut(item.Title, " ")
		if name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// fetchOne resolves one project name to a candidate via the JSON API.
func (s *PyPISource) fetchOne(ctx context.Context, name string) (model.Candidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.pol.Network.PyPIRegistry+"/pypi/"+name+"/json", nil)
	if err != nil {
		return model.Candidate{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.pol.Network.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return model.Candidate{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.Candidate{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var doc pypiDoc
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return model.Candidate{}, fmt.Errorf("decode project document: %w", err)
	}
	if doc.Info.Name == "" {
		return model.Candidate{}, fmt.Errorf("project document has no name")
	}

	c := model.Candidate{
		Ecosystem:   model.EcosystemPyPI,
		Name:        doc.Info.Name,
		Version:     doc.Info.Version,
		Description: doc.Info.Summary,
		Homepage:    doc.Info.HomePage,
		// The JSON API does not expose a maintainer list.
		MaintainersCount: 1,
	}
	if c.Homepage == "" {
		c.Homepage = doc.Info.ProjectURL
	}
	for _, key := range repoURLKeys {
		if u, ok := doc.Info.ProjectURLs[key]; ok && u != "" {
			c.Repository = u
			break
		}
	}
	c.CreatedAt = earliestUpload(doc.Releases)

	return c, nil
}

// earliestUpload finds the oldest upload timestamp across all releases,
// which stands in for the project's creation time.
func earliestUpload(releases map[string][]struct {
	UploadTime string `json:"upload_time_iso_8601"`
}) time.Time {
	var earliest time.Time
	for _, files := range releases {
		for _, f := range files {
			t, err := time.Parse(time.RFC3339, f.UploadTime)
			if err != nil {
				continue
			}
			if earliest.IsZero() || t.Before(earliest) {
				earliest = t
			}
		}
	}
	return earliest
}
