package api

import (
	"github.com/phantomscan/phantomscan/internal/model"
	"github.com/phantomscan/phantomscan/internal/suggest"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	State          string `json:"state"`
	CandidateCount int    `json:"candidate_count"`
	HighCount      int    `json:"high_count"`
	MediumCount    int    `json:"medium_count"`
	LowCount       int    `json:"low_count"`
	WatchlistCount int    `json:"watchlist_count"`
}

// FeedResponse is the payload for GET /api/v1/feed.
type FeedResponse struct {
	Entries     []model.ScoredCandidate `json:"entries"`
	GeneratedAt string                  `json:"generated_at"` // RFC3339
}

// IngestRequest is the body for POST /api/v1/ingest.
type IngestRequest struct {
	Candidates []model.Candidate `json:"candidates"`
}

// IngestResponse reports what one ingest call produced.
type IngestResponse struct {
	Scored      int `json:"scored"`
	Watchlisted int `json:"watchlisted"`
	Skipped     int `json:"skipped"`
}

// SuggestResponse is the payload for GET /api/v1/suggest.
type SuggestResponse struct {
	Name         string                `json:"name"`
	Ecosystem    model.Ecosystem       `json:"ecosystem"`
	Alternatives []suggest.Alternative `json:"alternatives"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
