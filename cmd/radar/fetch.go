package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/phantomscan/phantomscan/internal/model"
	"github.com/phantomscan/phantomscan/internal/sources"
)

func newFetchCmd(opts *rootOptions) *cobra.Command {
	var outDir string
	var limit int

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch recently published candidates from the registry feeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			pol, err := opts.loadPolicy()
			if err != nil {
				return err
			}
			if pol.Network.Offline {
				return fmt.Errorf("fetch requires network access; offline mode is enabled")
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}

			for _, src := range sources.All(pol) {
				cands, err := src.FetchRecent(cmd.Context(), limit)
				if err != nil {
					slog.Error("fetch failed", "ecosystem", src.Ecosystem(), "err", err)
					continue
				}
				path := filepath.Join(outDir, string(src.Ecosystem())+".jsonl")
				if err := writeJSONL(path, cands); err != nil {
					return err
				}
				slog.Info("fetched candidates",
					"ecosystem", src.Ecosystem(), "count", len(cands), "path", path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "out", "data/raw", "directory for raw candidate JSONL files")
	cmd.Flags().IntVar(&limit, "limit", 0, "max candidates per ecosystem (0 uses the policy limit)")
	return cmd
}

// writeJSONL writes one candidate per line.
func writeJSONL(path string, cands []model.Candidate) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, c := range cands {
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return nil
}
