package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/phantomscan/phantomscan/internal/feed"
	"github.com/phantomscan/phantomscan/internal/model"
	"github.com/phantomscan/phantomscan/internal/orchestrator"
	"github.com/phantomscan/phantomscan/internal/policy"
	"github.com/phantomscan/phantomscan/internal/store"
	"github.com/phantomscan/phantomscan/internal/suggest"
)

// maxIngestBody bounds one ingest request body.
const maxIngestBody = 4 << 20

// Handler is the HTTP handler for all /api/v1/* endpoints plus /metrics.
// It reads scoring state from the store and returns JSON responses.
type Handler struct {
	store *store.Store
	pol   func() *policy.Policy
	mux   *http.ServeMux

	// onScored, when set, is invoked after each ingest stores new results.
	onScored func([]model.ScoredCandidate)
}

// New creates a Handler wired to the given store and registers all routes.
// pol returns the current policy; it is a function so hot-reloads take effect
// without rebuilding the handler. onScored may be nil.
func New(st *store.Store, pol func() *policy.Policy, onScored func([]model.ScoredCandidate)) http.Handler {
	h := &Handler{store: st, pol: pol, onScored: onScored, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/feed", h.feed)
	h.mux.HandleFunc("/api/v1/candidates", h.listCandidates)
	h.mux.HandleFunc("/api/v1/candidates/", h.getCandidate) // subtree — extracts {ecosystem}/{name}
	h.mux.HandleFunc("/api/v1/watchlist", h.watchlist)
	h.mux.HandleFunc("/api/v1/suggest", h.suggest)
	h.mux.HandleFunc("/api/v1/ingest", h.ingest)
	h.mux.Handle("/metrics", promhttp.Handler())

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health — state counts across the live store.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	entries := h.store.List()
	resp := HealthResponse{
		State:          "ok",
		CandidateCount: len(entries),
		WatchlistCount: len(h.store.Watchlist()),
	}
	for _, e := range entries {
		switch e.RiskLevel {
		case "high":
			resp.HighCount++
		case "medium":
			resp.MediumCount++
		default:
			resp.LowCount++
		}
	}
	jsonResp(w, http.StatusOK, resp)
}

// feed returns GET /api/v1/feed — the current top-N feed.
func (h *Handler) feed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	entries := feed.TopN(h.store.List(), h.pol())
	if entries == nil {
		entries = []model.ScoredCandidate{}
	}
	jsonResp(w, http.StatusOK, FeedResponse{
		Entries:     entries,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// listCandidates returns GET /api/v1/candidates — every live scored entry.
func (h *Handler) listCandidates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	entries := h.store.List()
	if entries == nil {
		entries = []model.ScoredCandidate{}
	}
	jsonResp(w, http.StatusOK, entries)
}

// getCandidate returns GET /api/v1/candidates/{ecosystem}/{name}.
func (h *Handler) getCandidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/candidates/")
	eco, name, ok := strings.Cut(rest, "/")
	if !ok || name == "" {
		jsonErr(w, http.StatusBadRequest, "expected /api/v1/candidates/{ecosystem}/{name}")
		return
	}
	if !model.Ecosystem(eco).Valid() {
		jsonErr(w, http.StatusBadRequest, "unknown ecosystem")
		return
	}

	e, found := h.store.Get(model.Ecosystem(eco), name)
	if !found {
		jsonErr(w, http.StatusNotFound, "candidate not found")
		return
	}
	jsonResp(w, http.StatusOK, e.Scored)
}

// watchlist returns GET /api/v1/watchlist — unconfirmed candidates.
func (h *Handler) watchlist(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	entries := h.store.Watchlist()
	if entries == nil {
		entries = []model.WatchlistEntry{}
	}
	jsonResp(w, http.StatusOK, entries)
}

// suggest returns GET /api/v1/suggest?ecosystem=pypi&name=requests2 —
// canonical near-miss alternatives for a suspect name.
func (h *Handler) suggest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	eco := model.Ecosystem(r.URL.Query().Get("ecosystem"))
	name := r.URL.Query().Get("name")
	if name == "" || !eco.Valid() {
		jsonErr(w, http.StatusBadRequest, "ecosystem and name query parameters are required")
		return
	}

	alts := suggest.Alternatives(name, eco, h.pol())
	if alts == nil {
		alts = []suggest.Alternative{}
	}
	jsonResp(w, http.StatusOK, SuggestResponse{
		Name:         name,
		Ecosystem:    eco,
		Alternatives: alts,
	})
}

// ingest handles POST /api/v1/ingest — scores a batch of candidates and
// stores the results. Requires the API key when one is configured.
func (h *Handler) ingest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	pol := h.pol()
	if !h.authorized(r, pol) {
		jsonErr(w, http.StatusUnauthorized, "invalid or missing API key")
		return
	}

	var req IngestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxIngestBody)).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Candidates) == 0 {
		jsonErr(w, http.StatusBadRequest, "no candidates provided")
		return
	}

	now := time.Now().UTC()
	orch := orchestrator.New(pol, now)

	var resp IngestResponse
	var stored []model.ScoredCandidate
	for _, c := range req.Candidates {
		sc, err := orch.Evaluate(r.Context(), c)
		if errors.Is(err, orchestrator.ErrInvalidCandidate) {
			resp.Skipped++
			continue
		}
		if errors.Is(err, orchestrator.ErrOverload) {
			evaluationOverloads.Inc()
			jsonErr(w, http.StatusServiceUnavailable, "evaluation deadline exceeded")
			return
		}
		if err != nil {
			jsonErr(w, http.StatusServiceUnavailable, "evaluation aborted")
			return
		}

		if pol.Feed.Strict && sc.Existence.Reason != model.ExistenceConfirmed {
			h.store.Watch(model.WatchlistEntry{
				Ecosystem:   c.Ecosystem,
				Name:        c.Name,
				Reason:      sc.Existence.Reason,
				FirstSeenAt: now,
			})
			candidatesWatchlisted.WithLabelValues(string(sc.Existence.Reason)).Inc()
			resp.Watchlisted++
			continue
		}

		h.store.Put(sc)
		stored = append(stored, sc)
		candidatesScored.WithLabelValues(string(c.Ecosystem), sc.RiskLevel).Inc()
		scoreDistribution.Observe(sc.Score)
		resp.Scored++
	}

	if h.onScored != nil && len(stored) > 0 {
		h.onScored(stored)
	}
	jsonResp(w, http.StatusOK, resp)
}

// authorized checks the X-API-Key header against the configured key.
// An unset key disables auth.
func (h *Handler) authorized(r *http.Request, pol *policy.Policy) bool {
	want := pol.Server.APIKey()
	if want == "" {
		return true
	}
	got := r.Header.Get("X-API-Key")
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
