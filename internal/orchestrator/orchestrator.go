package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/phantomscan/phantomscan/internal/enrich"
	"github.com/phantomscan/phantomscan/internal/model"
	"github.com/phantomscan/phantomscan/internal/policy"
	"github.com/phantomscan/phantomscan/internal/registry"
	"github.com/phantomscan/phantomscan/internal/scorer"
	"github.com/phantomscan/phantomscan/internal/signals"
)

// Sentinel errors callers branch on.
var (
	// ErrInvalidCandidate means the candidate is missing a name or names an
	// unknown ecosystem. Nothing was evaluated.
	ErrInvalidCandidate = errors.New("orchestrator: invalid candidate")

	// ErrOverload means the global deadline elapsed before every signal slot
	// settled. A partial score is never returned in its place.
	ErrOverload = errors.New("orchestrator: global deadline exceeded")
)

// Orchestrator runs the complete evaluation of one candidate: local signal
// calculators, the registry existence gate, and the enrichment fan-out, then
// hands the assembled signal set to the scorer.
type Orchestrator struct {
	pol     *policy.Policy
	gate    *registry.Gate
	clients []enrich.Client
	now     time.Time
}

// New builds an Orchestrator for one scoring run. now anchors every age and
// timestamp computation so a run is reproducible.
func New(pol *policy.Policy, now time.Time) *Orchestrator {
	o := &Orchestrator{
		pol:  pol,
		gate: registry.New(pol),
		now:  now,
	}
	if !pol.Network.Offline {
		o.clients = enrich.New(pol, now)
	}
	return o
}

// Evaluate scores one candidate. Local signals always compute; enrichment
// slots fill concurrently under the global deadline, each degrading to its
// default on failure. The existence gate runs alongside enrichment. The only
// error outcomes are an invalid candidate, an exceeded global deadline, and
// cancellation of the caller's context.
func (o *Orchestrator) Evaluate(ctx context.Context, c model.Candidate) (model.ScoredCandidate, error) {
	if c.Name == "" || !c.Ecosystem.Valid() {
		return model.ScoredCandidate{}, ErrInvalidCandidate
	}

	local := signals.Local()
	sigs := make([]model.Signal, len(local)+len(o.clients))
	for i, calc := range local {
		sigs[i] = calc(c, o.pol, o.now)
	}

	if o.pol.Network.Offline {
		existence := o.gate.Check(ctx, c)
		return scorer.Score(c, sigs, existence, o.pol, o.now), nil
	}

	runCtx, cancel := context.WithTimeout(ctx, o.pol.Network.GlobalDeadline)
	defer cancel()

	var existence model.ExistenceResult
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		existence = o.gate.Check(gctx, c)
		return nil
	})

	// Each client owns one pre-assigned slot, so concurrent completion
	// order never changes the assembled signal set.
	for i, client := range o.clients {
		slot := len(local) + i
		client := client
		g.Go(func() error {
			sig, err := client.Fetch(gctx, c)
			if err != nil {
				slog.Warn("orchestrator: enrichment degraded to default",
					"signal", client.Signal(),
					"ecosystem", c.Ecosystem, "name", c.Name,
					"error", err)
				sigs[slot] = enrich.Default(client.Signal())
				return nil
			}
			sigs[slot] = sig
			return nil
		})
	}
	_ = g.Wait()

	if err := runCtx.Err(); err != nil {
		if parentErr := ctx.Err(); parentErr != nil {
			return model.ScoredCandidate{}, parentErr
		}
		return model.ScoredCandidate{}, ErrOverload
	}

	return scorer.Score(c, sigs, existence, o.pol, o.now), nil
}

// EvaluateAll scores a batch sequentially, skipping invalid candidates with
// a warning. An overload or cancellation aborts the batch.
func (o *Orchestrator) EvaluateAll(ctx context.Context, cands []model.Candidate) ([]model.ScoredCandidate, error) {
	out := make([]model.ScoredCandidate, 0, len(cands))
	for _, c := range cands {
		sc, err := o.Evaluate(ctx, c)
		if errors.Is(err, ErrInvalidCandidate) {
			slog.Warn("orchestrator: skipping invalid candidate",
				"ecosystem", c.Ecosystem, "name", c.Name)
			continue
		}
		if err != nil {
			return out, err
		}
		out = append(out, sc)
	}
	return out, nil
}
