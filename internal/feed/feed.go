package feed

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/phantomscan/phantomscan/internal/model"
	"github.com/phantomscan/phantomscan/internal/policy"
)

// Route splits scored candidates between the primary feed and the watchlist.
// In strict mode only registry-confirmed candidates reach the feed; every
// other existence reason routes to the watchlist regardless of score. In
// non-strict mode everything reaches the feed and an unconfirmed existence
// outcome becomes one more reason on the entry.
func Route(scored []model.ScoredCandidate, pol *policy.Policy, now time.Time) ([]model.ScoredCandidate, []model.WatchlistEntry) {
	var feed []model.ScoredCandidate
	var watchlist []model.WatchlistEntry

	for _, sc := range scored {
		if sc.Existence.Reason == model.ExistenceConfirmed {
			feed = append(feed, sc)
			continue
		}
		if pol.Feed.Strict {
			watchlist = append(watchlist, model.WatchlistEntry{
				Ecosystem:   sc.Candidate.Ecosystem,
				Name:        sc.Candidate.Name,
				Reason:      sc.Existence.Reason,
				FirstSeenAt: now,
			})
			continue
		}
		sc.Breakdown.Reasons = append(sc.Breakdown.Reasons,
			fmt.Sprintf("Registry existence unconfirmed (%s)", sc.Existence.Reason))
		feed = append(feed, sc)
	}
	return feed, watchlist
}

// TopN filters entries below the policy's minimum score and keeps the top N
// by score descending, breaking ties by name ascending so output is stable.
func TopN(entries []model.ScoredCandidate, pol *policy.Policy) []model.ScoredCandidate {
	kept := make([]model.ScoredCandidate, 0, len(entries))
	for _, e := range entries {
		if e.Score >= pol.Feed.MinScore {
			kept = append(kept, e)
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		return kept[i].Candidate.Name < kept[j].Candidate.Name
	})
	if len(kept) > pol.Feed.TopN {
		kept = kept[:pol.Feed.TopN]
	}
	return kept
}

// WriteJSON writes the feed entries as indented JSON.
func WriteJSON(w io.Writer, entries []model.ScoredCandidate) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if entries == nil {
		entries = []model.ScoredCandidate{}
	}
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("feed: encode json: %w", err)
	}
	return nil
}

// WriteWatchlistJSON writes the watchlist as indented JSON.
func WriteWatchlistJSON(w io.Writer, entries []model.WatchlistEntry) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if entries == nil {
		entries = []model.WatchlistEntry{}
	}
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("feed: encode watchlist json: %w", err)
	}
	return nil
}

// WriteMarkdown renders the feed as a human-readable report.
func WriteMarkdown(w io.Writer, entries []model.ScoredCandidate, date string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# Suspicious Package Feed (%s)\n\n", date)
	fmt.Fprintf(&b, "Total candidates: %d\n\n", len(entries))

	if len(entries) == 0 {
		b.WriteString("No candidates met the reporting threshold.\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	b.WriteString("| Rank | Package | Ecosystem | Version | Score | Risk |\n")
	b.WriteString("|------|---------|-----------|---------|-------|------|\n")
	for i, e := range entries {
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %.3f | %s |\n",
			i+1, e.Candidate.Name, e.Candidate.Ecosystem,
			orDash(e.Candidate.Version), e.Score, e.RiskLevel)
	}
	b.WriteString("\n## Details\n")

	for i, e := range entries {
		fmt.Fprintf(&b, "\n### %d. %s (%s)\n\n", i+1, e.Candidate.Name, e.Candidate.Ecosystem)
		fmt.Fprintf(&b, "- Score: %.3f (%s risk)\n", e.Score, e.RiskLevel)
		if e.Candidate.Version != "" {
			fmt.Fprintf(&b, "- Version: %s\n", e.Candidate.Version)
		}
		if e.Candidate.Repository != "" {
			fmt.Fprintf(&b, "- Repository: %s\n", e.Candidate.Repository)
		}
		fmt.Fprintf(&b, "- Registry existence: %s\n", e.Existence.Reason)
		if len(e.Breakdown.Reasons) > 0 {
			b.WriteString("- Reasons:\n")
			for _, r := range e.Breakdown.Reasons {
				fmt.Fprintf(&b, "  - %s\n", r)
			}
		}
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("feed: write markdown: %w", err)
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
