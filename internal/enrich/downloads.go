package enrich

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/phantomscan/phantomscan/internal/model"
	"github.com/phantomscan/phantomscan/internal/policy"
)

// downloadsClient fills the download-anomaly slot from weekly download
// statistics. Only npm exposes a point API for this; other ecosystems keep
// the default.
type downloadsClient struct {
	pol    *policy.Policy
	client *http.Client
	now    time.Time
}

// downloadPoint is the npm downloads API response shape.
type downloadPoint struct {
	Downloads int64  `json:"downloads"`
	Package   string `json:"package"`
}

func (c *downloadsClient) Signal() string { return model.SignalDownloadAnomaly }

func (c *downloadsClient) Fetch(ctx context.Context, cand model.Candidate) (model.Signal, error) {
	sig := Default(model.SignalDownloadAnomaly)
	if cand.Ecosystem != model.EcosystemNPM {
		return sig, nil
	}

	var point downloadPoint
	u := fmt.Sprintf("%s/downloads/point/last-week/%s", c.pol.Network.NPMDownloadsAPI, cand.Name)
	if err := getJSON(ctx, c.client, u, &point); err != nil {
		if NotFound(err) {
			return sig, nil // no download history yet
		}
		return sig, err
	}

	ageDays := -1
	if !cand.CreatedAt.IsZero() {
		ageDays = int(c.now.Sub(cand.CreatedAt).Hours() / 24)
	}

	sig.Value = anomalyValue(point.Downloads, ageDays)
	if sig.Value > 0 {
		sig.Reasons = append(sig.Reasons,
			fmt.Sprintf("%d downloads last week for a %d-day-old package", point.Downloads, ageDays))
	}

	if baseline := baselineDownloads(ageDays); baseline > 0 {
		ratio := float64(point.Downloads) / float64(baseline)
		if ratio >= c.pol.Heuristics.DownloadSpikeRatio {
			sig.Value = max(sig.Value, 0.5)
			sig.Reasons = append(sig.Reasons,
				fmt.Sprintf("Download spike: %.1fx expected baseline", ratio))
		}
	}
	return sig, nil
}

// anomalyValue scores downloads against package age. Heavy traffic into a
// brand-new package suggests bot-driven inflation; the same traffic into an
// established package is normal.
func anomalyValue(downloads int64, ageDays int) float64 {
	if downloads <= 0 || ageDays < 0 {
		return 0
	}
	switch {
	case ageDays < 7:
		if downloads > 1_000 {
			return min(1.0, float64(downloads)/10_000)
		}
	case ageDays < 30:
		if downloads > 10_000 {
			return min(1.0, float64(downloads-10_000)/50_000)
		}
	}
	return 0
}

// baselineDownloads is the rough expected weekly volume for a package of the
// given age. Unknown age yields no baseline.
func baselineDownloads(ageDays int) int64 {
	switch {
	case ageDays < 0:
		return 0
	case ageDays < 7:
		return 100
	case ageDays < 30:
		return 500
	case ageDays < 90:
		return 2_000
	case ageDays < 365:
		return 5_000
	default:
		return 10_000
	}
}
