package signals

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/xrash/smetrics"

	"github.com/phantomscan/phantomscan/internal/model"
	"github.com/phantomscan/phantomscan/internal/policy"
)

// Detector ceilings for the three name heuristics. Brand-prefix impersonation
// outranks a generic trope suffix; a close canonical near-miss can reach 0.9.
const (
	brandPrefixScore = 0.8
	tropeSuffixScore = 0.6
	nearMissCeiling  = 0.9
)

// NameSuspicion scores suspicious naming patterns: canonical near-misses,
// brand-prefix impersonation, and trope suffixes (including a trailing
// digit). The three detectors combine by maximum, not sum, so one
// coincidental name is not penalized twice.
func NameSuspicion(c model.Candidate, pol *policy.Policy, _ time.Time) model.Signal {
	sig := model.Signal{Name: model.SignalNameSuspicion}
	name := strings.ToLower(c.Name)

	for _, prefix := range pol.Heuristics.SuspiciousPrefixes {
		if strings.HasPrefix(name, strings.ToLower(prefix)) {
			sig.Value = max(sig.Value, brandPrefixScore)
			sig.Reasons = append(sig.Reasons, fmt.Sprintf("Contains brand prefix %q", prefix))
		}
	}

	for _, suffix := range pol.Heuristics.SuspiciousSuffixes {
		if strings.HasSuffix(name, strings.ToLower(suffix)) {
			sig.Value = max(sig.Value, tropeSuffixScore)
			sig.Reasons = append(sig.Reasons, fmt.Sprintf("Contains trope suffix %q", suffix))
		}
	}
	if r := []rune(name); len(r) > 1 && unicode.IsDigit(r[len(r)-1]) {
		sig.Value = max(sig.Value, tropeSuffixScore)
		sig.Reasons = append(sig.Reasons, "Trailing digit in package name")
	}

	window := pol.Heuristics.FuzzyWindow
	for _, canonical := range pol.Heuristics.CanonicalPackages[string(c.Ecosystem)] {
		distance := distancePct(name, strings.ToLower(canonical))
		if distance > 0 && distance <= window {
			nearMiss := (1 - float64(distance)/float64(window)) * nearMissCeiling
			if nearMiss > sig.Value {
				sig.Value = nearMiss
			}
			sig.Reasons = append(sig.Reasons,
				fmt.Sprintf("Very similar to %q (distance %d)", canonical, distance))
		}
	}

	sig.Value = clamp01(sig.Value)
	return sig
}

// distancePct converts the Wagner-Fischer edit distance between a and b
// into a 0–100 distance (100 - similarity ratio). 0 means identical.
func distancePct(a, b string) int {
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 0
	}
	d := smetrics.WagnerFischer(a, b, 1, 1, 2)
	pct := 100 * d / (len(a) + len(b))
	if d > 0 && pct == 0 {
		pct = 1 // a nonzero distance never rounds to identical
	}
	return pct
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
