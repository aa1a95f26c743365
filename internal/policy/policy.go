package policy

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/phantomscan/phantomscan/internal/corpus"
	"github.com/phantomscan/phantomscan/internal/model"
)

// Default values applied when fields are absent from the policy file.
const (
	DefaultNewPackageDays       = 30
	DefaultFuzzyWindow          = 15
	DefaultMaintainerAgeDays    = 14
	DefaultVersionFlipWindow    = 30 * 24 * time.Hour
	DefaultDepIncreaseThreshold = 8
	DefaultReadmeSimilarity     = 0.85
	DefaultSuggestionThreshold  = 0.92
	DefaultDownloadSpikeRatio   = 5.0

	DefaultEnrichTimeout   = 5 * time.Second
	DefaultRegistryTimeout = 4 * time.Second
	DefaultGlobalDeadline  = 8 * time.Second

	DefaultTopN     = 50
	DefaultMinScore = 0.0

	DefaultHighRisk   = 0.7
	DefaultMediumRisk = 0.4

	DefaultHTTPPort          = 8080
	DefaultStoreTTL          = 24 * time.Hour
	DefaultBroadcastInterval = 5 * time.Second

	DefaultUserAgent = "phantomscan/0.2 (security research)"
)

// DefaultWeights is the weight per signal applied when the policy file has
// no weights block at all. They sum to 1.0, though nothing enforces that —
// the total is always the literal weighted sum.
var DefaultWeights = map[string]float64{
	model.SignalNameSuspicion:    0.25,
	model.SignalNewness:          0.15,
	model.SignalRepoMissing:      0.10,
	model.SignalMaintainerRep:    0.10,
	model.SignalScriptRisk:       0.10,
	model.SignalHallucination:    0.10,
	model.SignalContentRisk:      0.05,
	model.SignalProvenanceRisk:   0.03,
	model.SignalRepoAsymmetry:    0.04,
	model.SignalDownloadAnomaly:  0.03,
	model.SignalVersionFlip:      0.03,
	model.SignalReadmePlagiarism: 0.02,
}

// Policy is the immutable configuration governing one scoring run.
type Policy struct {
	// Weights maps signal name to its contribution weight. Signals missing
	// from a present weights block contribute 0 — see package doc.
	Weights map[string]float64 `yaml:"weights"`

	// Priorities orders per-signal reasons in the final reasons list.
	// Lower sorts first. Signals without an entry use their position in
	// model.SignalOrder.
	Priorities map[string]int `yaml:"priorities"`

	Heuristics Heuristics   `yaml:"heuristics"`
	Enrich     EnrichConfig `yaml:"enrichment"`
	Network    Network      `yaml:"network"`
	Feed       FeedConfig   `yaml:"feed"`
	Sources    Sources      `yaml:"sources"`
	Server     ServerConfig `yaml:"server"`
	Ship       ShipConfig   `yaml:"ship"`

	// Hallucinations is loaded from Heuristics.CorpusFile at Load time.
	// An absent corpus file yields an empty (never-matching) corpus.
	Hallucinations *corpus.Corpus `yaml:"-"`
}

// Heuristics holds the thresholds and corpora used by the signal calculators.
type Heuristics struct {
	// NewPackageDays is the newness decay window in days.
	NewPackageDays int `yaml:"new_package_days"`

	// FuzzyWindow is the edit-distance window (as a percent-style distance,
	// 100 - similarity ratio) inside which a name counts as a near-miss of
	// a canonical package.
	FuzzyWindow int `yaml:"fuzzy_window"`

	// MaintainerAgeDays is the account-age threshold below which a
	// maintainer account counts as suspiciously young.
	MaintainerAgeDays int `yaml:"maintainer_age_days"`

	// VersionFlipWindow is the rolling span within which consecutive
	// releases are compared for sudden manifest changes.
	VersionFlipWindow time.Duration `yaml:"version_flip_window"`

	// DepIncreaseThreshold triggers version-flip when the dependency count
	// grows by at least this much between releases in the window.
	DepIncreaseThreshold int `yaml:"dep_increase_threshold"`

	// ReadmeSimilarity is the 5-gram Jaccard threshold at or above which
	// readme plagiarism registers as suspicious.
	ReadmeSimilarity float64 `yaml:"readme_similarity"`

	// SuggestionThreshold is the minimum Jaro-Winkler similarity for a
	// canonical name to be suggested as a safer alternative.
	SuggestionThreshold float64 `yaml:"suggestion_threshold"`

	// DownloadSpikeRatio is the velocity multiple over baseline that
	// counts as a download spike.
	DownloadSpikeRatio float64 `yaml:"download_spike_ratio"`

	// SuspiciousPrefixes are impersonated organization names.
	SuspiciousPrefixes []string `yaml:"suspicious_prefixes"`

	// SuspiciousSuffixes are generic tool-ish markers (cli, sdk, utils...).
	SuspiciousSuffixes []string `yaml:"suspicious_suffixes"`

	// DisposableEmailDomains flag maintainer emails from throwaway providers.
	DisposableEmailDomains []string `yaml:"disposable_email_domains"`

	// CanonicalPackages maps ecosystem to its known-good name list, used
	// both for near-miss detection and for alternative suggestions.
	CanonicalPackages map[string][]string `yaml:"canonical_packages"`

	// CorpusFile points at the known-hallucination corpus YAML.
	CorpusFile string `yaml:"corpus_file"`
}

// EnrichConfig toggles and tunes the enrichment clients.
type EnrichConfig struct {
	RepoFacts   bool `yaml:"repo_facts"`
	Downloads   bool `yaml:"downloads"`
	Versions    bool `yaml:"versions"`
	Provenance  bool `yaml:"provenance"`
	ContentScan bool `yaml:"content_scan"`
	Plagiarism  bool `yaml:"plagiarism"`
	Dependents  bool `yaml:"dependents"`
	OSV         bool `yaml:"osv"`

	// Timeout is the per-client sub-deadline.
	Timeout time.Duration `yaml:"timeout"`

	// GithubAPI is the base URL of the repository facts API.
	GithubAPI string `yaml:"github_api"`

	// LibrariesIOAPI is the base URL of the dependents lookup API.
	LibrariesIOAPI string `yaml:"libraries_io_api"`

	// OSVAPI is the base URL of the vulnerability lookup API.
	OSVAPI string `yaml:"osv_api"`

	// GithubTokenEnv / LibrariesIOKeyEnv name the environment variables
	// holding the respective API credentials. Empty means unauthenticated.
	GithubTokenEnv    string `yaml:"github_token_env"`
	LibrariesIOKeyEnv string `yaml:"libraries_io_key_env"`
}

// GithubToken returns the repository API token resolved from the environment.
func (e EnrichConfig) GithubToken() string {
	if e.GithubTokenEnv == "" {
		return ""
	}
	return os.Getenv(e.GithubTokenEnv)
}

// LibrariesIOKey returns the dependents API key resolved from the environment.
func (e EnrichConfig) LibrariesIOKey() string {
	if e.LibrariesIOKeyEnv == "" {
		return ""
	}
	return os.Getenv(e.LibrariesIOKeyEnv)
}

// Network holds transport-level settings shared by every outbound call.
type Network struct {
	// Offline disables every outbound call. Enrichment signals take their
	// documented defaults and the existence gate classifies "offline".
	Offline bool `yaml:"offline"`

	UserAgent string `yaml:"user_agent"`

	// RegistryTimeout bounds a single existence-gate call.
	RegistryTimeout time.Duration `yaml:"registry_timeout"`

	// GlobalDeadline bounds the entire scoring operation for one candidate.
	GlobalDeadline time.Duration `yaml:"global_deadline"`

	NPMRegistry     string `yaml:"npm_registry"`
	PyPIRegistry    string `yaml:"pypi_registry"`
	NPMDownloadsAPI string `yaml:"npm_downloads_api"`
}

// FeedConfig governs routing and top-N feed generation.
type FeedConfig struct {
	// Strict admits only registry-confirmed candidates to the primary feed.
	Strict bool `yaml:"strict"`

	TopN     int     `yaml:"top_n"`
	MinScore float64 `yaml:"min_score"`

	// HighRisk / MediumRisk map a total score to a triage risk level.
	HighRisk   float64 `yaml:"high_risk"`
	MediumRisk float64 `yaml:"medium_risk"`
}

// Sources configures the registry source normalizers.
type Sources struct {
	NPM  NPMSource  `yaml:"npm"`
	PyPI PyPISource `yaml:"pypi"`
}

// NPMSource configures the npm changes-feed normalizer.
type NPMSource struct {
	ChangesFeed string        `yaml:"changes_feed"`
	Limit       int           `yaml:"limit"`
	Timeout     time.Duration `yaml:"timeout"`
}

// PyPISource configures the PyPI RSS normalizer.
type PyPISource struct {
	RSSPackages string        `yaml:"rss_packages"`
	RSSUpdates  string        `yaml:"rss_updates"`
	Limit       int           `yaml:"limit"`
	Timeout     time.Duration `yaml:"timeout"`
}

// ServerConfig holds radar-server settings.
type ServerConfig struct {
	HTTPPort int `yaml:"http_port"`

	// StoreTTL is how long a scored candidate stays live in the store.
	StoreTTL time.Duration `yaml:"store_ttl"`

	// BroadcastInterval controls how often the WebSocket hub pushes the
	// current feed to connected clients.
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`

	// APIKeyEnv names the environment variable holding the expected API
	// key for mutating endpoints. Empty disables auth.
	APIKeyEnv string `yaml:"api_key_env"`

	Alerts AlertsConfig `yaml:"alerts"`
}

// APIKey returns the server API key resolved from the environment.
func (s ServerConfig) APIKey() string {
	if s.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(s.APIKeyEnv)
}

// ShipConfig configures forwarding of scored results from a standalone
// radar run to a central radar-server ingest endpoint.
type ShipConfig struct {
	// Endpoint is the full ingest URL. Empty disables shipping.
	Endpoint string `yaml:"endpoint"`

	// BufferSize is the in-memory queue depth; the oldest batch is evicted
	// when full.
	BufferSize int `yaml:"buffer_size"`

	// Timeout bounds one delivery attempt.
	Timeout time.Duration `yaml:"timeout"`

	// APIKeyEnv names the environment variable holding the ingest API key.
	APIKeyEnv string `yaml:"api_key_env"`
}

// APIKey returns the ingest API key resolved from the environment.
func (s ShipConfig) APIKey() string {
	if s.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(s.APIKeyEnv)
}

// AlertsConfig holds alerting rules and webhook targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines a threshold-based alert on scored candidates.
type AlertRule struct {
	Name string `yaml:"name"`

	// Condition is an expression like "score > 0.8" or
	// "signal:script_risk > 0.9".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for the same package for this duration.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: slack | teams | http.
	Type string `yaml:"type"`

	// URLEnv names the environment variable holding the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// WeightFor returns the configured weight for a signal, 0 when absent.
func (p *Policy) WeightFor(signal string) float64 {
	return p.Weights[signal]
}

// PriorityFor returns the reason-ordering priority for a signal. Signals
// without a configured priority use their index in model.SignalOrder;
// unknown (advisory) signals sort after all canonical ones.
func (p *Policy) PriorityFor(signal string) int {
	if pr, ok := p.Priorities[signal]; ok {
		return pr
	}
	for i, name := range model.SignalOrder {
		if name == signal {
			return i
		}
	}
	return len(model.SignalOrder)
}

// Load reads and parses the YAML policy file at path.
// Missing optional fields are filled with documented defaults; the
// hallucination corpus referenced by the file is loaded alongside.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read file: %w", err)
	}

	pol := defaults()
	if err := yaml.Unmarshal(data, pol); err != nil {
		return nil, fmt.Errorf("policy: parse yaml: %w", err)
	}
	finish(pol)

	if err := validate(pol); err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}

	if pol.Heuristics.CorpusFile != "" {
		c, err := corpus.Load(pol.Heuristics.CorpusFile)
		if err != nil {
			return nil, fmt.Errorf("policy: %w", err)
		}
		pol.Hallucinations = c
	}
	if pol.Hallucinations == nil {
		pol.Hallucinations = corpus.Empty()
	}

	return pol, nil
}

// Default returns a Policy built entirely from defaults, with the default
// weight table and an empty hallucination corpus. Used by tests and by
// callers that have no policy file.
func Default() *Policy {
	pol := defaults()
	finish(pol)
	pol.Hallucinations = corpus.Empty()
	return pol
}

// defaults returns a Policy pre-populated with default values for every
// field except Weights, which must stay empty until we know whether the
// file carries its own weights block (merging would break the literal-sum
// contract for omitted signals).
func defaults() *Policy {
	return &Policy{
		Heuristics: Heuristics{
			NewPackageDays:       DefaultNewPackageDays,
			FuzzyWindow:          DefaultFuzzyWindow,
			MaintainerAgeDays:    DefaultMaintainerAgeDays,
			VersionFlipWindow:    DefaultVersionFlipWindow,
			DepIncreaseThreshold: DefaultDepIncreaseThreshold,
			ReadmeSimilarity:     DefaultReadmeSimilarity,
			SuggestionThreshold:  DefaultSuggestionThreshold,
			DownloadSpikeRatio:   DefaultDownloadSpikeRatio,
		},
		Enrich: EnrichConfig{
			RepoFacts:      true,
			Downloads:      true,
			Versions:       true,
			Provenance:     true,
			Plagiarism:     true,
			Timeout:        DefaultEnrichTimeout,
			GithubAPI:      "https://api.github.com",
			LibrariesIOAPI: "https://libraries.io/api",
			OSVAPI:         "https://api.osv.dev",
		},
		Network: Network{
			UserAgent:       DefaultUserAgent,
			RegistryTimeout: DefaultRegistryTimeout,
			GlobalDeadline:  DefaultGlobalDeadline,
			NPMRegistry:     "https://registry.npmjs.org",
			PyPIRegistry:    "https://pypi.org",
			NPMDownloadsAPI: "https://api.npmjs.org",
		},
		Feed: FeedConfig{
			Strict:     true,
			TopN:       DefaultTopN,
			MinScore:   DefaultMinScore,
			HighRisk:   DefaultHighRisk,
			MediumRisk: DefaultMediumRisk,
		},
		Sources: Sources{
			NPM: NPMSource{
				ChangesFeed: "https://replicate.npmjs.com/_changes",
				Limit:       400,
				Timeout:     10 * time.Second,
			},
			PyPI: PyPISource{
				RSSPackages: "https://pypi.org/rss/packages.xml",
				RSSUpdates:  "https://pypi.org/rss/updates.xml",
				Limit:       400,
				Timeout:     10 * time.Second,
			},
		},
		Server: ServerConfig{
			HTTPPort:          DefaultHTTPPort,
			StoreTTL:          DefaultStoreTTL,
			BroadcastInterval: DefaultBroadcastInterval,
		},
		Ship: ShipConfig{
			BufferSize: 256,
			Timeout:    10 * time.Second,
		},
	}
}

// finish applies the defaults that depend on what the file provided.
func finish(pol *Policy) {
	if len(pol.Weights) == 0 {
		// Copy, never alias: a caller mutating its policy's weights must
		// not corrupt the default table for later loads.
		pol.Weights = make(map[string]float64, len(DefaultWeights))
		for name, w := range DefaultWeights {
			pol.Weights[name] = w
		}
	}
}

// validate checks structural constraints. It rejects only values that would
// make scoring meaningless — absence is always acceptable.
func validate(pol *Policy) error {
	for name, w := range pol.Weights {
		if w < 0 {
			return fmt.Errorf("weights.%s must not be negative", name)
		}
	}
	if pol.Heuristics.NewPackageDays <= 0 {
		return fmt.Errorf("heuristics.new_package_days must be positive")
	}
	if pol.Heuristics.FuzzyWindow <= 0 {
		return fmt.Errorf("heuristics.fuzzy_window must be positive")
	}
	if t := pol.Heuristics.ReadmeSimilarity; t <= 0 || t > 1 {
		return fmt.Errorf("heuristics.readme_similarity must be in (0,1]")
	}
	if t := pol.Heuristics.SuggestionThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("heuristics.suggestion_threshold must be in (0,1]")
	}
	if pol.Enrich.Timeout <= 0 {
		return fmt.Errorf("enrichment.timeout must be positive")
	}
	if pol.Network.RegistryTimeout <= 0 {
		return fmt.Errorf("network.registry_timeout must be positive")
	}
	if pol.Network.GlobalDeadline <= 0 {
		return fmt.Errorf("network.global_deadline must be positive")
	}
	if pol.Feed.TopN <= 0 {
		return fmt.Errorf("feed.top_n must be positive")
	}
	for i, rule := range pol.Server.Alerts.Rules {
		if rule.Name == "" {
			return fmt.Errorf("server.alerts.rules[%d]: name is required", i)
		}
		if rule.Condition == "" {
			return fmt.Errorf("server.alerts.rules[%d] %q: condition is required", i, rule.Name)
		}
		switch rule.Severity {
		case "critical", "warning", "info", "":
		default:
			return fmt.Errorf("server.alerts.rules[%d] %q: unknown severity %q", i, rule.Name, rule.Severity)
		}
	}
	return nil
}
