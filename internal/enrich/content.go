package enrich

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/phantomscan/phantomscan/internal/analysis"
	"github.com/phantomscan/phantomscan/internal/model"
	"github.com/phantomscan/phantomscan/internal/policy"
)

// Content-scan scoring. Every tenth pattern hit saturates the score; a
// structural mismatch between distribution forms floors it at mismatchFloor.
const (
	hitsToSaturate = 10.0
	mismatchFloor  = 0.5

	maxArtifactBytes = 64 << 20
)

// contentClient fills the content-risk slot: it downloads the release
// artifacts, unpacks them into a temp directory, pattern-scans the source,
// and diffs the source distribution against the built one. Only PyPI
// publishes the per-release artifact list this needs.
type contentClient struct {
	pol    *policy.Policy
	client *http.Client
}

// pypiRelease is the subset of the project document carrying artifact URLs.
type pypiRelease struct {
	URLs []pypiArtifact `json:"urls"`
}

type pypiArtifact struct {
	URL         string `json:"url"`
	PackageType string `json:"packagetype"`
}

func (c *contentClient) Signal() string { return model.SignalContentRisk }

func (c *contentClient) Fetch(ctx context.Context, cand model.Candidate) (model.Signal, error) {
	sig := Default(model.SignalContentRisk)
	if cand.Ecosystem != model.EcosystemPyPI {
		return sig, nil
	}

	var rel pypiRelease
	u := fmt.Sprintf("%s/pypi/%s/json", c.pol.Network.PyPIRegistry, cand.Name)
	if cand.Version != "" {
		u = fmt.Sprintf("%s/pypi/%s/%s/json", c.pol.Network.PyPIRegistry, cand.Name, cand.Version)
	}
	if err := getJSON(ctx, c.client, u, &rel); err != nil {
		if NotFound(err) {
			return sig, nil
		}
		return sig, err
	}

	sdistURL, wheelURL := pickArtifacts(rel.URLs)
	if sdistURL == "" && wheelURL == "" {
		return sig, nil
	}

	workDir, err := os.MkdirTemp("", "phantomscan-artifact-")
	if err != nil {
		return sig, fmt.Errorf("enrich: temp dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	var hits int
	var reasons []string
	var sdistFiles, wheelFiles []string

	if sdistURL != "" {
		dir := workDir + "/sdist"
		if err := c.fetchAndUnpack(ctx, sdistURL, dir); err == nil {
			h, r, serr := analysis.ScanDir(dir)
			if serr == nil {
				hits += h
				reasons = append(reasons, r...)
			}
			sdistFiles, _ = analysis.ListFiles(dir)
		}
	}
	if wheelURL != "" {
		dir := workDir + "/wheel"
		if err := c.fetchAndUnpack(ctx, wheelURL, dir); err == nil {
			h, r, serr := analysis.ScanDir(dir)
			if serr == nil {
				hits += h
				reasons = append(reasons, r...)
			}
			wheelFiles, _ = analysis.ListFiles(dir)
		}
	}

	sig.Value = min(float64(hits)/hitsToSaturate, 1.0)
	sig.Reasons = append(sig.Reasons, reasons...)

	if len(sdistFiles) > 0 && len(wheelFiles) > 0 {
		if diff := analysis.StructuralDiff(sdistFiles, wheelFiles); len(diff) > 0 {
			sig.Value = max(sig.Value, mismatchFloor)
			sig.Reasons = append(sig.Reasons,
				fmt.Sprintf("Source and built distributions disagree on %d code files", len(diff)))
			sig.Reasons = append(sig.Reasons, diff...)
		}
	}
	return sig, nil
}

// fetchAndUnpack downloads one artifact and extracts it under dst, choosing
// the unpacker from the URL's extension.
func (c *contentClient) fetchAndUnpack(ctx context.Context, url, dst string) error {
	data, err := getBody(ctx, c.client, url, maxArtifactBytes)
	if err != nil {
		return err
	}
	switch {
	case strings.HasSuffix(url, ".tar.gz"), strings.HasSuffix(url, ".tgz"):
		return analysis.UnpackTarGz(bytes.NewReader(data), dst)
	case strings.HasSuffix(url, ".whl"), strings.HasSuffix(url, ".zip"):
		return analysis.UnpackZip(data, dst)
	default:
		return fmt.Errorf("enrich: unsupported artifact format: %s", url)
	}
}

// pickArtifacts selects one source distribution and one wheel from the
// release artifact list.
func pickArtifacts(urls []pypiArtifact) (sdist, wheel string) {
	for _, a := range urls {
		switch a.PackageType {
		case "sdist":
			if sdist == "" {
				sdist = a.URL
			}
		case "bdist_wheel":
			if wheel == "" {
				wheel = a.URL
			}
		}
	}
	return sdist, wheel
}
