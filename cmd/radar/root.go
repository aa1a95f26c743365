package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/phantomscan/phantomscan/internal/policy"
)

// version is stamped at build time via -ldflags.
var version = "dev"

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	policyPath string
	offline    bool
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "radar",
		Short:         "Score newly published npm and PyPI packages for supply-chain risk",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if opts.verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(logger)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.policyPath, "policy", "config/policy.yaml", "path to the policy file")
	cmd.PersistentFlags().BoolVar(&opts.offline, "offline", false, "disable all outbound network calls")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newFetchCmd(opts),
		newScoreCmd(opts),
		newFeedCmd(opts),
		newSuggestCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// loadPolicy reads the configured policy file, falling back to built-in
// defaults when the file does not exist. The --offline flag overrides the
// file's network setting.
func (o *rootOptions) loadPolicy() (*policy.Policy, error) {
	pol, err := policy.Load(o.policyPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		slog.Warn("policy file not found, using defaults", "path", o.policyPath)
		pol = policy.Default()
	}
	if o.offline {
		pol.Network.Offline = true
	}
	return pol, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the radar version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "radar %s\n", version)
		},
	}
}
