package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phantomscan/phantomscan/internal/model"
	"github.com/phantomscan/phantomscan/internal/suggest"
)

func newSuggestCmd(opts *rootOptions) *cobra.Command {
	var ecosystem string

	cmd := &cobra.Command{
		Use:   "suggest <name>",
		Short: "Suggest canonical packages a suspect name may be imitating",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pol, err := opts.loadPolicy()
			if err != nil {
				return err
			}
			eco := model.Ecosystem(ecosystem)
			if !eco.Valid() {
				return fmt.Errorf("unknown ecosystem %q (expected pypi or npm)", ecosystem)
			}

			alts := suggest.Alternatives(args[0], eco, pol)
			if len(alts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No similar canonical packages found")
				return nil
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(alts)
		},
	}

	cmd.Flags().StringVar(&ecosystem, "ecosystem", "pypi", "package ecosystem (pypi or npm)")
	return cmd
}
