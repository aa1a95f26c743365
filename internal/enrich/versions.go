package enrich

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/phantomscan/phantomscan/internal/model"
	"github.com/phantomscan/phantomscan/internal/policy"
)

// Version-flip scores and the overall cap.
const (
	flipNewScripts  = 0.5
	flipDepIncrease = 0.6
	flipCap         = 0.7
)

// versionsClient fills the version-flip slot by comparing the latest release
// against the most recent previous release inside the rolling window.
// Only PyPI publishes per-version metadata this check needs.
type versionsClient struct {
	pol    *policy.Policy
	client *http.Client
}

// pypiProject is the subset of the PyPI project document we read.
type pypiProject struct {
	Info     pypiInfo                `json:"info"`
	Releases map[string][]pypiUpload `json:"releases"`
}

type pypiInfo struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	RequiresDist []string          `json:"requires_dist"`
	ProjectURLs  map[string]string `json:"project_urls"`
	EntryPoints  string            `json:"entry_points"`
}

type pypiUpload struct {
	UploadTime string `json:"upload_time_iso_8601"`
}

func (c *versionsClient) Signal() string { return model.SignalVersionFlip }

func (c *versionsClient) Fetch(ctx context.Context, cand model.Candidate) (model.Signal, error) {
	sig := Default(model.SignalVersionFlip)
	if cand.Ecosystem != model.EcosystemPyPI {
		return sig, nil
	}

	var cur pypiProject
	u := fmt.Sprintf("%s/pypi/%s/json", c.pol.Network.PyPIRegistry, cand.Name)
	if err := getJSON(ctx, c.client, u, &cur); err != nil {
		if NotFound(err) {
			return sig, nil
		}
		return sig, err
	}

	curVersion := cur.Info.Version
	curUpload, ok := uploadTime(cur.Releases[curVersion])
	if curVersion == "" || !ok {
		// Without timestamps there is no window to compare inside.
		return sig, nil
	}

	prevVersion, found := previousRelease(cur.Releases, curVersion, curUpload, c.pol.Heuristics.VersionFlipWindow)
	if !found {
		return sig, nil
	}

	var prev pypiProject
	pu := fmt.Sprintf("%s/pypi/%s/%s/json", c.pol.Network.PyPIRegistry, cand.Name, prevVersion)
	if err := getJSON(ctx, c.client, pu, &prev); err != nil {
		if NotFound(err) {
			return sig, nil
		}
		return sig, err
	}

	if hasConsoleScripts(cur.Info.EntryPoints) && !hasConsoleScripts(prev.Info.EntryPoints) {
		sig.Value = max(sig.Value, flipNewScripts)
		sig.Reasons = append(sig.Reasons,
			fmt.Sprintf("New console_scripts added in v%s", curVersion))
	}

	if inc := len(cur.Info.RequiresDist) - len(prev.Info.RequiresDist); inc >= c.pol.Heuristics.DepIncreaseThreshold {
		sig.Value = max(sig.Value, flipDepIncrease)
		sig.Reasons = append(sig.Reasons,
			fmt.Sprintf("Version flip: +%d dependencies in %s vs %s", inc, curVersion, prevVersion))
	}

	if urlKeysAdded(cur.Info.ProjectURLs, prev.Info.ProjectURLs) {
		sig.Reasons = append(sig.Reasons, "New documentation/project URLs added in latest version")
	}

	sig.Value = min(sig.Value, flipCap)
	return sig, nil
}

// previousRelease finds the most recent release older than curUpload but
// still inside the window. Versions are visited in reverse lexical order,
// matching how the registry lists them.
func previousRelease(releases map[string][]pypiUpload, curVersion string, curUpload time.Time, window time.Duration) (string, bool) {
	versions := make([]string, 0, len(releases))
	for v := range releases {
		if v != curVersion {
			versions = append(versions, v)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(versions)))

	windowStart := curUpload.Add(-window)
	for _, v := range versions {
		t, ok := uploadTime(releases[v])
		if !ok {
			continue
		}
		if t.Before(curUpload) && !t.Before(windowStart) {
			return v, true
		}
	}
	return "", false
}

func uploadTime(uploads []pypiUpload) (time.Time, bool) {
	if len(uploads) == 0 || uploads[0].UploadTime == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, uploads[0].UploadTime)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func hasConsoleScripts(entryPoints string) bool {
	return strings.Contains(entryPoints, "console_scripts")
}

func urlKeysAdded(cur, prev map[string]string) bool {
	if len(cur) == 0 {
		return false
	}
	for k := range cur {
		if _, ok := prev[k]; !ok {
			return true
		}
	}
	return false
}
