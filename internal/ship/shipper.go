package ship

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/phantomscan/phantomscan/internal/model"
	"github.com/phantomscan/phantomscan/internal/policy"
)

const (
	backoffInitial    = 1 * time.Second
	backoffMax        = 60 * time.Second
	backoffMultiplier = 2.0
)

// batch is one queued delivery.
type batch struct {
	Candidates []model.Candidate `json:"candidates"`
}

// Shipper buffers scored results and forwards their candidates to a central
// radar-server ingest endpoint. Ship() is non-blocking; when the buffer is
// full the oldest batch is evicted. Run() must be called in a goroutine to
// drain the buffer with backoff on failure.
type Shipper struct {
	cfg    policy.ShipConfig
	buf    chan *batch
	client *http.Client
}

// New creates a Shipper using the given ship config.
func New(cfg policy.ShipConfig) *Shipper {
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}
	return &Shipper{
		cfg:    cfg,
		buf:    make(chan *batch, size),
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Ship enqueues the candidates behind a batch of scored results.
// If the buffer is full the oldest entry is evicted to make room.
func (s *Shipper) Ship(scored []model.ScoredCandidate) {
	if len(scored) == 0 {
		return
	}
	cands := make([]model.Candidate, len(scored))
	for i, sc := range scored {
		cands[i] = sc.Candidate
	}
	b := &batch{Candidates: cands}
	select {
	case s.buf <- b:
	default:
		// Buffer full — drop the oldest batch, keep the newest.
		select {
		case <-s.buf:
			slog.Warn("ship: buffer full, evicted oldest batch",
				"buffer_cap", cap(s.buf))
		default:
		}
		s.buf <- b
	}
}

// Send delivers the candidates behind scored in one synchronous call,
// bypassing the buffer. One-shot runs use this instead of Run.
func (s *Shipper) Send(ctx context.Context, scored []model.ScoredCandidate) error {
	if len(scored) == 0 {
		return nil
	}
	cands := make([]model.Candidate, len(scored))
	for i, sc := range scored {
		cands[i] = sc.Candidate
	}
	return s.deliver(ctx, &batch{Candidates: cands})
}

// Run drains the buffer, delivering batches to the ingest endpoint.
// Failed deliveries retry with truncated exponential backoff.
// Run blocks until ctx is cancelled.
func (s *Shipper) Run(ctx context.Context) {
	bo := newBackoff()

	for {
		select {
		case <-ctx.Done():
			return

		case b := <-s.buf:
			for {
				err := s.deliver(ctx, b)
				if err == nil {
					bo.reset()
					break
				}
				if permanent(err) {
					slog.Error("ship: permanent delivery error, discarding batch",
						"size", len(b.Candidates), "err", err)
					break
				}

				wait := bo.next()
				slog.Warn("ship: delivery failed, will retry",
					"endpoint", s.cfg.Endpoint, "err", err, "retry_in", wait)
				select {
				case <-ctx.Done():
					return
				case <-time.After(wait):
				}
			}
		}
	}
}

// deliver sends one batch to the ingest endpoint.
func (s *Shipper) deliver(ctx context.Context, b *batch) error {
	body, err := json.Marshal(b)
	if err != nil {
		return &permanentError{fmt.Errorf("ship: encode batch: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return &permanentError{fmt.Errorf("ship: build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if key := s.cfg.APIKey(); key != "" {
		req.Header.Set("X-API-Key", key)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("ship: post: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		slog.Debug("ship: batch delivered", "size", len(b.Candidates))
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// The batch itself was rejected; retrying cannot help.
		return &permanentError{fmt.Errorf("ship: server rejected batch: status %d", resp.StatusCode)}
	default:
		return fmt.Errorf("ship: server error: status %d", resp.StatusCode)
	}
}

// permanentError marks a delivery failure that must not be retried.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) bool {
	_, ok := err.(*permanentError)
	return ok
}

// backoff implements truncated exponential backoff with jitter.
type backoff struct {
	current time.Duration
}

func newBackoff() *backoff {
	return &backoff{current: backoffInitial}
}

// next returns the current backoff duration and advances the internal state.
func (b *backoff) next() time.Duration {
	d := b.current
	// Apply ±25 % jitter.
	jitter := time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	d += jitter
	if d < 0 {
		d = 0
	}

	// Advance for next call.
	b.current = time.Duration(float64(b.current) * backoffMultiplier)
	if b.current > backoffMax {
		b.current = backoffMax
	}
	return d
}

func (b *backoff) reset() {
	b.current = backoffInitial
}
