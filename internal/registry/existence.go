package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/phantomscan/phantomscan/internal/model"
	"github.com/phantomscan/phantomscan/internal/policy"
)

// Gate performs registry existence checks. Build one per scoring run with
// New; it is safe for concurrent use.
type Gate struct {
	pol    *policy.Policy
	client *http.Client
}

// New returns a Gate using the policy's registry endpoints and timeout.
func New(pol *policy.Policy) *Gate {
	return &Gate{
		pol: pol,
		client: &http.Client{
			Timeout: pol.Network.RegistryTimeout,
		},
	}
}

// Check classifies whether the candidate exists in its registry.
// Exactly one reason is always set. One immediate retry is made on a
// transient transport error; not-found and timeout are never retried.
func (g *Gate) Check(ctx context.Context, c model.Candidate) model.ExistenceResult {
	if g.pol.Network.Offline {
		return model.ExistenceResult{Reason: model.ExistenceOffline}
	}

	res, retryable := g.checkOnce(ctx, c)
	if retryable {
		slog.Debug("registry: transient failure, retrying once",
			"ecosystem", c.Ecosystem, "name", c.Name)
		res, _ = g.checkOnce(ctx, c)
	}
	return res
}

// checkOnce performs one classification attempt. The second return value
// reports whether the failure was a transient transport error worth one
// immediate retry.
func (g *Gate) checkOnce(ctx context.Context, c model.Candidate) (model.ExistenceResult, bool) {
	callCtx, cancel := context.WithTimeout(ctx, g.pol.Network.RegistryTimeout)
	defer cancel()

	var status int
	var err error
	switch c.Ecosystem {
	case model.EcosystemNPM:
		status, err = g.checkNPM(callCtx, c.Name)
	case model.EcosystemPyPI:
		status, err = g.checkPyPI(callCtx, c.Name, c.Version)
	default:
		return model.ExistenceResult{Reason: model.ExistenceError}, false
	}

	if err != nil {
		if isTimeout(err) {
			return model.ExistenceResult{Reason: model.ExistenceTimeout}, false
		}
		return model.ExistenceResult{Reason: model.ExistenceError}, true
	}

	switch {
	case status == http.StatusOK:
		return model.ExistenceResult{Exists: true, Reason: model.ExistenceConfirmed}, false
	case status == http.StatusNotFound:
		return model.ExistenceResult{Reason: model.ExistenceNotFound}, false
	default:
		return model.ExistenceResult{Reason: model.ExistenceError}, false
	}
}

// checkNPM asks the npm registry for the packument. HEAD is tried first for
// efficiency with a GET fallback for endpoints that reject HEAD.
func (g *Gate) checkNPM(ctx context.Context, name string) (int, error) {
	url := g.pol.Network.NPMRegistry + "/" + name

	status, err := g.do(ctx, http.MethodHead, url)
	if err != nil {
		return 0, err
	}
	if status == http.StatusOK || status == http.StatusNotFound {
		return status, nil
	}
	return g.do(ctx, http.MethodGet, url)
}

// checkPyPI asks the PyPI JSON API for the project document, version-scoped
// when the candidate names a version.
func (g *Gate) checkPyPI(ctx context.Context, name, version string) (int, error) {
	url := g.pol.Network.PyPIRegistry + "/pypi/" + name + "/json"
	if version != "" {
		url = g.pol.Network.PyPIRegistry + "/pypi/" + name + "/" + version + "/json"
	}
	return g.do(ctx, http.MethodGet, url)
}

func (g *Gate) do(ctx context.Context, method, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, fmt.Errorf("registry: build request: %w", err)
	}
	req.Header.Set("User-Agent", g.pol.Network.UserAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// isTimeout reports whether err represents an elapsed deadline rather than
// a connection-level failure.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
