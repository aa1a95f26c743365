package corpus

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Corpus holds known-hallucinated package names: exact matches (stored
// lowercased) and compiled regex patterns.
type Corpus struct {
	exact    map[string]struct{}
	patterns []*regexp.Regexp
}

// corpusFile mirrors the YAML layout of hallucinations.yml.
type corpusFile struct {
	Exact    []string `yaml:"exact"`
	Patterns []string `yaml:"patterns"`
}

// Empty returns a corpus that matches nothing.
func Empty() *Corpus {
	return &Corpus{exact: make(map[string]struct{})}
}

// Load reads and compiles the corpus file at path. A missing file yields an
// empty corpus rather than an error — the signal degrades gracefully.
// Invalid regex patterns are skipped with a warning.
func Load(path string) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Empty(), nil
		}
		return nil, fmt.Errorf("corpus: read file: %w", err)
	}

	var f corpusFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("corpus: parse yaml: %w", err)
	}

	c := Empty()
	for _, name := range f.Exact {
		c.exact[strings.ToLower(name)] = struct{}{}
	}
	for _, expr := range f.Patterns {
		re, err := regexp.Compile("(?i)" + expr)
		if err != nil {
			slog.Warn("corpus: skipping invalid pattern", "pattern", expr, "err", err)
			continue
		}
		c.patterns = append(c.patterns, re)
	}
	return c, nil
}

// Match reports whether name is a known hallucination and, if so, a
// human-readable reason.
func (c *Corpus) Match(name string) (bool, string) {
	if _, ok := c.exact[strings.ToLower(name)]; ok {
		return true, fmt.Sprintf("Known hallucinated package name: %q", name)
	}
	for _, re := range c.patterns {
		if re.MatchString(name) {
			return true, fmt.Sprintf("Matches hallucination pattern: %s", strings.TrimPrefix(re.String(), "(?i)"))
		}
	}
	return false, ""
}

// Size returns the number of exact entries plus patterns, for diagnostics.
func (c *Corpus) Size() int {
	return len(c.exact) + len(c.patterns)
}
