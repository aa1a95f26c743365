// Package suggest proposes safer canonical alternatives for near-miss names.
//
// A user deceived by a typosquat usually wanted a specific well-known
// package. Alternatives are the canonical names within the Jaro-Winkler
// similarity threshold of the suspect name, best match first.
package suggest

import (
	"sort"
	"strings"

	"github.com/xrash/smetrics"

	"github.com/phantomscan/phantomscan/internal/model"
	"github.com/phantomscan/phantomscan/internal/policy"
)

// MaxAlternatives bounds the suggestion list.
const MaxAlternatives = 5

// jaroWinkler tuning: standard boost threshold and prefix length.
const (
	jwBoostThreshold = 0.7
	jwPrefixSize     = 4
)

// Alternative is one suggested canonical package with its similarity to the
// suspect name.
type Alternative struct {
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
}

// Alternatives returns up to MaxAlternatives canonical packages whose
// Jaro-Winkler similarity to name meets the policy threshold (inclusive).
// Results sort by similarity descending, ties alphabetically. An exact match
// is never suggested back.
func Alternatives(name string, eco model.Ecosystem, pol *policy.Policy) []Alternative {
	if name == "" {
		return nil
	}
	canonical := pol.Heuristics.CanonicalPackages[string(eco)]
	if len(canonical) == 0 {
		return nil
	}

	lower := strings.ToLower(name)
	var out []Alternative
	for _, c := range canonical {
		cl := strings.ToLower(c)
		if cl == lower {
			continue
		}
		sim := smetrics.JaroWinkler(lower, cl, jwBoostThreshold, jwPrefixSize)
		if sim >= pol.Heuristics.SuggestionThreshold {
			out = append(out, Alternative{Name: c, Similarity: sim})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > MaxAlternatives {
		out = out[:MaxAlternatives]
	}
	return out
}
