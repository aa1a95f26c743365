package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/phantomscan/phantomscan/internal/model"
	"github.com/phantomscan/phantomscan/internal/policy"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func offlinePolicy() *policy.Policy {
	pol := policy.Default()
	pol.Network.Offline = true
	pol.Heuristics.CanonicalPackages = map[string][]string{
		"pypi": {"requests"},
	}
	return pol
}

// onlinePolicy points every endpoint at the test server and enables no
// enrichment clients; tests opt individual ones back in.
func onlinePolicy(baseURL string) *policy.Policy {
	pol := policy.Default()
	pol.Network.NPMRegistry = baseURL
	pol.Network.PyPIRegistry = baseURL
	pol.Network.NPMDownloadsAPI = baseURL
	pol.Network.RegistryTimeout = time.Second
	pol.Network.GlobalDeadline = 5 * time.Second
	pol.Enrich.GithubAPI = baseURL
	pol.Enrich.OSVAPI = baseURL
	pol.Enrich.Timeout = time.Second
	pol.Enrich.RepoFacts = false
	pol.Enrich.Plagiarism = false
	pol.Enrich.Downloads = false
	pol.Enrich.Versions = false
	pol.Enrich.Provenance = false
	pol.Enrich.ContentScan = false
	pol.Enrich.Dependents = false
	pol.Enrich.OSV = false
	return pol
}

func TestEvaluateInvalidCandidate(t *testing.T) {
	o := New(offlinePolicy(), testNow)

	// No name, no ecosystem, unknown ecosystem.
	tests := []model.Candidate{
		{Ecosystem: model.EcosystemPyPI},
		{Name: "pkg"},
		{Name: "pkg", Ecosystem: "cargo"},
	}
	for _, c := range tests {
		if _, err := o.Evaluate(context.Background(), c); !errors.Is(err, ErrInvalidCandidate) {
			t.Errorf("Evaluate(%+v) err = %v, want ErrInvalidCandidate", c, err)
		}
	}
}

func TestEvaluateOffline(t *testing.T) {
	o := New(offlinePolicy(), testNow)

	sc, err := o.Evaluate(context.Background(), model.Candidate{
		Ecosystem:        model.EcosystemPyPI,
		Name:             "requests2",
		CreatedAt:        testNow,
		MaintainersCount: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if sc.Existence.Reason != model.ExistenceOffline {
		t.Errorf("existence = %+v, want offline", sc.Existence)
	}
	// name 0.6*0.25 + newness 0.15 + repo 0.10 + maintainer 0.10 = 0.5
	if sc.Score < 0.499 || sc.Score > 0.501 {
		t.Errorf("score = %v, want 0.5", sc.Score)
	}
	if sc.RiskLevel != "medium" {
		t.Errorf("risk = %q, want medium", sc.RiskLevel)
	}
}

func TestEvaluateOnlineConfirmed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	pol := onlinePolicy(srv.URL)
	pol.Enrich.Provenance = true
	o := New(pol, testNow)

	sc, err := o.Evaluate(context.Background(), model.Candidate{
		Ecosystem: model.EcosystemPyPI, Name: "some-pkg",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !sc.Existence.Exists || sc.Existence.Reason != model.ExistenceConfirmed {
		t.Errorf("existence = %+v, want confirmed", sc.Existence)
	}
	// PyPI provenance is the fixed neutral value.
	if sc.Breakdown.ProvenanceRisk != 0.5 {
		t.Errorf("provenance subscore = %v, want 0.5", sc.Breakdown.ProvenanceRisk)
	}
}

// A failing enrichment source degrades its own slot and nothing else.
func TestEvaluateEnrichmentFailureIsSoft(t *testing.T) {
	registrySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer registrySrv.Close()
	brokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer brokenSrv.Close()

	pol := onlinePolicy(registrySrv.URL)
	pol.Network.NPMDownloadsAPI = brokenSrv.URL
	pol.Enrich.Downloads = true
	o := New(pol, testNow)

	sc, err := o.Evaluate(context.Background(), model.Candidate{
		Ecosystem: model.EcosystemNPM, Name: "some-pkg", CreatedAt: testNow,
	})
	if err != nil {
		t.Fatalf("soft failure surfaced as error: %v", err)
	}
	if !sc.Existence.Exists {
		t.Errorf("existence = %+v, want confirmed", sc.Existence)
	}
	if sc.Breakdown.DownloadAnomaly != 0 {
		t.Errorf("download subscore = %v, want degraded default 0", sc.Breakdown.DownloadAnomaly)
	}
}

func TestEvaluateOverload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	pol := onlinePolicy(srv.URL)
	pol.Network.GlobalDeadline = 50 * time.Millisecond
	pol.Enrich.Downloads = true
	o := New(pol, testNow)

	_, err := o.Evaluate(context.Background(), model.Candidate{
		Ecosystem: model.EcosystemNPM, Name: "slow-pkg",
	})
	if !errors.Is(err, ErrOverload) {
		t.Errorf("err = %v, want ErrOverload", err)
	}
}

func TestEvaluateParentCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := New(onlinePolicy(srv.URL), testNow)
	_, err := o.Evaluate(ctx, model.Candidate{Ecosystem: model.EcosystemPyPI, Name: "pkg"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestEvaluateAllSkipsInvalid(t *testing.T) {
	o := New(offlinePolicy(), testNow)

	out, err := o.EvaluateAll(context.Background(), []model.Candidate{
		{Ecosystem: model.EcosystemPyPI, Name: "good-pkg"},
		{Ecosystem: model.EcosystemPyPI}, // invalid: skipped, not fatal
		{Ecosystem: model.EcosystemNPM, Name: "other-pkg"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Errorf("scored %d candidates, want 2", len(out))
	}
}
