package corpus

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeCorpus(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.yml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMatch(t *testing.T) {
	path := writeCorpus(t, `
exact:
  - huggingface-cli
  - OpenAI-API
patterns:
  - '^gpt[0-9]*-(api|sdk)$'
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Size() != 3 {
		t.Errorf("size = %d, want 3", c.Size())
	}

	tests := []struct {
		name    string
		wantHit bool
	}{
		{"huggingface-cli", true},
		{"HUGGINGFACE-CLI", true}, // exact list is case-insensitive
		{"openai-api", true},      // stored lowercased
		{"gpt4-sdk", true},
		{"GPT4-API", true}, // patterns compile case-insensitive
		{"gpt4-sdk-extra", false},
		{"requests", false},
	}
	for _, tt := range tests {
		hit, reason := c.Match(tt.name)
		if hit != tt.wantHit {
			t.Errorf("Match(%q) = %v, want %v", tt.name, hit, tt.wantHit)
		}
		if hit && reason == "" {
			t.Errorf("Match(%q) hit with empty reason", tt.name)
		}
	}
}

func TestLoadMissingFileYieldsEmpty(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Size() != 0 {
		t.Errorf("size = %d, want 0", c.Size())
	}
	if hit, _ := c.Match("anything"); hit {
		t.Error("empty corpus matched a name")
	}
}

func TestLoadSkipsInvalidPattern(t *testing.T) {
	path := writeCorpus(t, `
patterns:
  - '[unclosed'
  - '^valid-name$'
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Size() != 1 {
		t.Errorf("size = %d, want 1 (invalid pattern skipped)", c.Size())
	}
	if hit, _ := c.Match("valid-name"); !hit {
		t.Error("surviving pattern did not match")
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := writeCorpus(t, "exact: [unterminated\n")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "corpus:") {
		t.Errorf("error = %v, want corpus-prefixed", err)
	}
}

func TestEmpty(t *testing.T) {
	c := Empty()
	if hit, _ := c.Match("huggingface-cli"); hit {
		t.Error("Empty() matched a name")
	}
}
