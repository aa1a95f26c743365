package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/phantomscan/phantomscan/internal/feed"
	"github.com/phantomscan/phantomscan/internal/model"
)

func newFeedCmd(opts *rootOptions) *cobra.Command {
	var inDir, outDir string
	var topN int

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Generate the top-N feed report from scored candidates",
		RunE: func(cmd *cobra.Command, args []string) error {
			pol, err := opts.loadPolicy()
			if err != nil {
				return err
			}
			if topN > 0 {
				pol.Feed.TopN = topN
			}

			scoredPath := filepath.Join(inDir, "scored.json")
			data, err := os.ReadFile(scoredPath)
			if err != nil {
				return fmt.Errorf("read %s (run `radar score` first): %w", scoredPath, err)
			}
			var scored []model.ScoredCandidate
			if err := json.Unmarshal(data, &scored); err != nil {
				return fmt.Errorf("parse %s: %w", scoredPath, err)
			}

			entries := feed.TopN(scored, pol)

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}

			jsonFile, err := os.Create(filepath.Join(outDir, "topN.json"))
			if err != nil {
				return fmt.Errorf("create feed json: %w", err)
			}
			defer jsonFile.Close()
			if err := feed.WriteJSON(jsonFile, entries); err != nil {
				return err
			}

			mdFile, err := os.Create(filepath.Join(outDir, "feed.md"))
			if err != nil {
				return fmt.Errorf("create feed markdown: %w", err)
			}
			defer mdFile.Close()
			date := time.Now().UTC().Format("2006-01-02")
			if err := feed.WriteMarkdown(mdFile, entries, date); err != nil {
				return err
			}

			slog.Info("feed generated", "entries", len(entries), "out", outDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&inDir, "in", "data/processed", "directory holding scored.json")
	cmd.Flags().StringVar(&outDir, "out", "data/feeds", "directory for the generated feed")
	cmd.Flags().IntVar(&topN, "top", 0, "override the policy's top-N (0 keeps the policy value)")
	return cmd
}
