package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/phantomscan/phantomscan/internal/feed"
	"github.com/phantomscan/phantomscan/internal/model"
	"github.com/phantomscan/phantomscan/internal/orchestrator"
	"github.com/phantomscan/phantomscan/internal/ship"
	"github.com/phantomscan/phantomscan/internal/sources"
)

func newScoreCmd(opts *rootOptions) *cobra.Command {
	var inDir, outDir string
	var strict bool
	var strictSet bool
	var doShip bool

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score fetched candidates and route them to the feed or watchlist",
		RunE: func(cmd *cobra.Command, args []string) error {
			pol, err := opts.loadPolicy()
			if err != nil {
				return err
			}
			if strictSet {
				pol.Feed.Strict = strict
			}

			var cands []model.Candidate
			for _, eco := range []model.Ecosystem{model.EcosystemNPM, model.EcosystemPyPI} {
				path := filepath.Join(inDir, string(eco)+".jsonl")
				loaded, err := sources.LoadJSONL(path, 0)
				if err != nil {
					if errors.Is(err, os.ErrNotExist) {
						continue
					}
					return err
				}
				cands = append(cands, loaded...)
			}
			if len(cands) == 0 {
				return fmt.Errorf("no candidates found under %s; run `radar fetch` first", inDir)
			}

			now := time.Now().UTC()
			orch := orchestrator.New(pol, now)

			bar := progressbar.NewOptions(len(cands),
				progressbar.OptionSetDescription("scoring"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionClearOnFinish(),
			)

			var scored []model.ScoredCandidate
			for _, c := range cands {
				sc, err := orch.Evaluate(cmd.Context(), c)
				bar.Add(1) //nolint:errcheck
				if errors.Is(err, orchestrator.ErrInvalidCandidate) {
					slog.Warn("skipping invalid candidate", "ecosystem", c.Ecosystem, "name", c.Name)
					continue
				}
				if err != nil {
					return err
				}
				scored = append(scored, sc)
			}

			feedEntries, watchlist := feed.Route(scored, pol, now)

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
			if err := writeJSON(filepath.Join(outDir, "scored.json"), feedEntries); err != nil {
				return err
			}
			if err := writeJSON(filepath.Join(outDir, "watchlist.json"), watchlist); err != nil {
				return err
			}
			slog.Info("scoring complete",
				"scored", len(feedEntries), "watchlisted", len(watchlist), "out", outDir)

			if doShip {
				if pol.Ship.Endpoint == "" {
					return fmt.Errorf("--ship requires ship.endpoint in the policy")
				}
				if err := ship.New(pol.Ship).Send(cmd.Context(), feedEntries); err != nil {
					return fmt.Errorf("ship results: %w", err)
				}
				slog.Info("results shipped", "endpoint", pol.Ship.Endpoint, "count", len(feedEntries))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&inDir, "in", "data/raw", "directory holding raw candidate JSONL files")
	cmd.Flags().StringVar(&outDir, "out", "data/processed", "directory for scored output")
	cmd.Flags().BoolVar(&strict, "strict", true, "route unconfirmed candidates to the watchlist")
	cmd.Flags().BoolVar(&doShip, "ship", false, "forward scored results to the configured ingest endpoint")
	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		strictSet = cmd.Flags().Changed("strict")
	}
	return cmd
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
