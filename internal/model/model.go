package model

import "time"

// Ecosystem identifies the package registry a candidate came from.
type Ecosystem string

const (
	EcosystemPyPI Ecosystem = "pypi"
	EcosystemNPM  Ecosystem = "npm"
)

// Valid reports whether e is a known ecosystem.
func (e Ecosystem) Valid() bool {
	return e == EcosystemPyPI || e == EcosystemNPM
}

// Candidate is an immutable snapshot of one package version under evaluation.
// Name and Ecosystem are always present; every other field is optional and
// its absence means "unknown" — never "safe" or "risky".
type Candidate struct {
	Ecosystem Ecosystem `json:"ecosystem"`
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`

	Homepage   string `json:"homepage,omitempty"`
	Repository string `json:"repository,omitempty"`

	MaintainersCount int `json:"maintainers_count"`

	// Scripts holds lifecycle script names mapped to their commands (npm).
	// Nil when the manifest carried no scripts block.
	Scripts map[string]string `json:"scripts,omitempty"`

	// Description is the registry-listed summary / readme excerpt.
	Description string `json:"description,omitempty"`

	// DisposableEmail is the maintainer email domain classification.
	// Nil means the classification was not attempted.
	DisposableEmail *bool `json:"disposable_email,omitempty"`

	// MaintainerAgeDays is a hint of the youngest maintainer account's age.
	// Nil means unknown.
	MaintainerAgeDays *int `json:"maintainer_age_days,omitempty"`
}

// Canonical signal names. Every subscore the aggregator knows about is one
// of these twelve; enrichment clients may additionally emit advisory signals
// (e.g. "osv", "dependents") which carry reasons but no default weight.
const (
	SignalNameSuspicion    = "name_suspicion"
	SignalNewness          = "newness"
	SignalRepoMissing      = "repo_missing"
	SignalMaintainerRep    = "maintainer_reputation"
	SignalScriptRisk       = "script_risk"
	SignalHallucination    = "known_hallucination"
	SignalContentRisk      = "content_risk"
	SignalProvenanceRisk   = "provenance_risk"
	SignalRepoAsymmetry    = "repo_asymmetry"
	SignalDownloadAnomaly  = "download_anomaly"
	SignalVersionFlip      = "version_flip"
	SignalReadmePlagiarism = "readme_plagiarism"
)

// SignalOrder is the canonical ordering of the twelve signals. Reason lists
// follow this order (then insertion order within a signal) so output is
// deterministic and diffable across runs.
var SignalOrder = []string{
	SignalNameSuspicion,
	SignalNewness,
	SignalRepoMissing,
	SignalMaintainerRep,
	SignalScriptRisk,
	SignalHallucination,
	SignalContentRisk,
	SignalProvenanceRisk,
	SignalRepoAsymmetry,
	SignalDownloadAnomaly,
	SignalVersionFlip,
	SignalReadmePlagiarism,
}

// Signal is one named subscore in [0,1] plus zero or more human-readable
// reason strings explaining the value.
type Signal struct {
	Name    string   `json:"name"`
	Value   float64  `json:"value"`
	Reasons []string `json:"reasons,omitempty"`
}

// ExistenceReason classifies the outcome of a registry existence check.
type ExistenceReason string

const (
	ExistenceConfirmed ExistenceReason = "confirmed"
	ExistenceNotFound  ExistenceReason = "not-found"
	ExistenceTimeout   ExistenceReason = "timeout"
	ExistenceOffline   ExistenceReason = "offline"
	ExistenceError     ExistenceReason = "error"
)

// ExistenceResult is the outcome of the registry existence gate.
// Exactly one reason is always set; Confirmed is the only reason that
// implies Exists.
type ExistenceResult struct {
	Exists bool            `json:"exists"`
	Reason ExistenceReason `json:"reason"`
}

// ScoreBreakdown holds the twelve subscores plus the computed weighted total.
// It is constructed once per (candidate, policy, as-of time) by the
// aggregator and never mutated afterwards.
type ScoreBreakdown struct {
	NameSuspicion    float64 `json:"name_suspicion"`
	Newness          float64 `json:"newness"`
	RepoMissing      float64 `json:"repo_missing"`
	MaintainerRep    float64 `json:"maintainer_reputation"`
	ScriptRisk       float64 `json:"script_risk"`
	Hallucination    float64 `json:"known_hallucination"`
	ContentRisk      float64 `json:"content_risk"`
	ProvenanceRisk   float64 `json:"provenance_risk"`
	RepoAsymmetry    float64 `json:"repo_asymmetry"`
	DownloadAnomaly  float64 `json:"download_anomaly"`
	VersionFlip      float64 `json:"version_flip"`
	ReadmePlagiarism float64 `json:"readme_plagiarism"`

	Total float64 `json:"total"`

	// Reasons is the concatenation of all non-empty per-signal reasons,
	// ordered by signal priority then insertion order.
	Reasons []string `json:"reasons,omitempty"`
}

// Value returns the subscore for the given canonical signal name.
// Unknown names return 0.
func (b ScoreBreakdown) Value(name string) float64 {
	switch name {
	case SignalNameSuspicion:
		return b.NameSuspicion
	case SignalNewness:
		return b.Newness
	case SignalRepoMissing:
		return b.RepoMissing
	case SignalMaintainerRep:
		return b.MaintainerRep
	case SignalScriptRisk:
		return b.ScriptRisk
	case SignalHallucination:
		return b.Hallucination
	case SignalContentRisk:
		return b.ContentRisk
	case SignalProvenanceRisk:
		return b.ProvenanceRisk
	case SignalRepoAsymmetry:
		return b.RepoAsymmetry
	case SignalDownloadAnomaly:
		return b.DownloadAnomaly
	case SignalVersionFlip:
		return b.VersionFlip
	case SignalReadmePlagiarism:
		return b.ReadmePlagiarism
	}
	return 0
}

// ScoredCandidate is a candidate together with its completed evaluation.
type ScoredCandidate struct {
	Candidate Candidate       `json:"candidate"`
	Score     float64         `json:"score"`
	Breakdown ScoreBreakdown  `json:"breakdown"`
	Existence ExistenceResult `json:"existence"`
	RiskLevel string          `json:"risk_level"`
	ScoredAt  time.Time       `json:"scored_at"`
}

// WatchlistEntry records a candidate excluded from the primary feed because
// its registry existence could not be confirmed.
type WatchlistEntry struct {
	Ecosystem   Ecosystem       `json:"ecosystem"`
	Name        string          `json:"name"`
	Reason      ExistenceReason `json:"reason"`
	FirstSeenAt time.Time       `json:"first_seen_at"`
}
