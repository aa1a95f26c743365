package sources

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/phantomscan/phantomscan/internal/model"
	"github.com/phantomscan/phantomscan/internal/policy"
)

// perFeedDetailLimit caps how many per-package metadata fetches one
// FetchRecent call performs, so a busy registry feed cannot turn a fetch
// into hundreds of requests.
const perFeedDetailLimit = 50

// Source normalizes one registry's "recently published" stream into
// candidates.
type Source interface {
	// Ecosystem names the registry this source reads.
	Ecosystem() model.Ecosystem

	// FetchRecent returns up to limit recently published candidates.
	FetchRecent(ctx context.Context, limit int) ([]model.Candidate, error)
}

// All returns the configured sources.
func All(pol *policy.Policy) []Source {
	return []Source{
		NewNPM(pol),
		NewPyPI(pol),
	}
}

// LoadJSONL reads candidates from an offline seed file, one JSON candidate
// per line. Unparseable lines are skipped with a warning.
func LoadJSONL(path string, limit int) ([]model.Candidate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sources: open seed file: %w", err)
	}
	defer f.Close()

	var out []model.Candidate
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() && (limit <= 0 || len(out) < limit) {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var c model.Candidate
		if err := json.Unmarshal(sc.Bytes(), &c); err != nil {
			slog.Warn("sources: skipping unparseable seed line", "path", path, "line", line, "error", err)
			continue
		}
		if c.Name == "" || !c.Ecosystem.Valid() {
			slog.Warn("sources: skipping incomplete seed candidate", "path", path, "line", line)
			continue
		}
		out = append(out, c)
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("sources: read seed file: %w", err)
	}
	return out, nil
}

// newHTTPClient builds the shared client for one source.
func newHTTPClient(pol *policy.Policy) *http.Client {
	return &http.Client{Timeout: pol.Sources.NPM.Timeout}
}

// disposableEmail reports whether the address uses a flagged throwaway
// domain.
func disposableEmail(email string, domains []string) bool {
	if email == "" {
		return false
	}
	lower := strings.ToLower(email)
	for _, d := range domains {
		if d != "" && strings.Contains(lower, strings.ToLower(d)) {
			return true
		}
	}
	return false
}
