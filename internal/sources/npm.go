package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/phantomscan/phantomscan/internal/model"
	"github.com/phantomscan/phantomscan/internal/policy"
)

// NPMSource reads the npm replication changes feed and resolves each changed
// package to a candidate via its packument.
type NPMSource struct {
	pol    *policy.Policy
	client *http.Client
	now    func() time.Time
}

// NewNPM creates the npm source from the policy's sources block.
func NewNPM(pol *policy.Policy) *NPMSource {
	return &NPMSource{
		pol:    pol,
		client: newHTTPClient(pol),
		now:    time.Now,
	}
}

func (s *NPMSource) Ecosystem() model.Ecosystem { return model.EcosystemNPM }

// changesDoc is the replication feed response shape.
type changesDoc struct {
	Results []struct {
		ID string `json:"id"`
	} `json:"results"`
}

// packument is the subset of the npm package document a candidate needs.
type packument struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Homepage    string            `json:"homepage"`
	DistTags    map[string]string `json:"dist-tags"`
	Time        map[string]string `json:"time"`

	Repository  json.RawMessage `json:"repository"`
	Maintainers []struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"maintainers"`

	Versions map[string]struct {
		Scripts map[string]string `json:"scripts"`
	} `json:"versions"`
}

// FetchRecent lists recently changed packages and normalizes up to limit of
// them. Individual packument failures are skipped with a warning.
func (s *NPMSource) FetchRecent(ctx context.Context, limit int) ([]model.Candidate, error) {
	if limit <= 0 {
		limit = s.pol.Sources.NPM.Limit
	}

	u := fmt.Sprintf("%s?descending=true&limit=%d", s.pol.Sources.NPM.ChangesFeed, limit)
	var changes changesDoc
	if err := s.getJSON(ctx, u, &changes); err != nil {
		return nil, fmt.Errorf("sources: npm changes feed: %w", err)
	}

	names := make([]string, 0, len(changes.Results))
	for _, ch := range changes.Results {
		// Design documents and similar internal ids start with an underscore.
		if ch.ID != "" && !strings.HasPrefix(ch.ID, "_") {
			names = append(names, ch.ID)
		}
	}
	if len(names) > perFeedDetailLimit {
		names = names[:perFeedDetailLimit]
	}

	out := make([]model.Candidate, 0, len(names))
	for _, name := range names {
		c, err := s.fetchOne(ctx, name)
		if err != nil {
			slog.Warn("sources: skipping npm package", "name", name, "error", err)
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// fetchOne resolves one package name to a candidate via its packument.
func (s *NPMSource) fetchOne(ctx context.Context, name string) (model.Candidate, error) {
	var doc packument
	u := s.pol.Network.NPMRegistry + "/" + name
	if err := s.getJSON(ctx, u, &doc); err != nil {
		return model.Candidate{}, err
	}
	if doc.Name == "" {
		return model.Candidate{}, fmt.Errorf("packument has no name")
	}

	c := model.Candidate{
		Ecosystem:        model.EcosystemNPM,
		Name:             doc.Name,
		Version:          doc.DistTags["latest"],
		Homepage:         doc.Homepage,
		Repository:       repositoryURL(doc.Repository),
		Description:      doc.Description,
		MaintainersCount: len(doc.Maintainers),
	}

	if created := doc.Time["created"]; created != "" {
		if t, err := time.Parse(time.RFC3339, created); err == nil {
			c.CreatedAt = t
			age := int(s.now().Sub(t).Hours() / 24)
			c.MaintainerAgeDays = &age
		}
	}

	if v, ok := doc.Versions[c.Version]; ok && len(v.Scripts) > 0 {
		c.Scripts = v.Scripts
	}

	disposable := false
	for _, m := range doc.Maintainers {
		if disposableEmail(m.Email, s.pol.Heuristics.DisposableEmailDomains) {
			disposable = true
			break
		}
	}
	c.DisposableEmail = &disposable

	return c, nil
}

// repositoryURL handles the packument's two repository encodings: a bare
// string or an object with a url field.
func repositoryURL(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.URL
	}
	return ""
}

func (s *NPMSource) getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.pol.Network.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
