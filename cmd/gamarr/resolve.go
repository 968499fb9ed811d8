// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/autobrr/gamarr/internal/providers"
	"github.com/autobrr/gamarr/internal/services/resolver"
)

type resolvedName struct {
	Name       string                        `json:"name"`
	Candidates []providers.CandidateMetadata `json:"candidates"`
}

func newResolveCommand(a *app) *cobra.Command {
	var (
		limit int
		best  bool
		quiet bool
	)

	cmd := &cobra.Command{
		Use:   "resolve <name>...",
		Short: "Resolve free-text game names against the metadata provider",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var progress resolver.ProgressFunc
			if !quiet {
				progress = func(completed, total int, sample []string) {
					fmt.Fprintf(cmd.ErrOrStderr(), "resolved %d/%d (%s)\n", completed, total, strings.Join(sample, ", "))
				}
			}

			result, err := a.resolver().ResolveBatch(cmd.Context(), args, limit, progress)
			if err != nil {
				return err
			}

			resolved := make([]resolvedName, 0, len(args))
			for _, name := range args {
				candidates := result[name]
				if best {
					if match, ok := resolver.BestMatch(name, candidates); ok {
						candidates = []providers.CandidateMetadata{match}
					} else {
						candidates = nil
					}
				}
				if candidates == nil {
					candidates = []providers.CandidateMetadata{}
				}
				resolved = append(resolved, resolvedName{Name: name, Candidates: candidates})
			}

			return render(cmd, a.output(), resolved, func() tableView {
				tv := tableView{
					headers: []string{"Name", "ID", "Title", "Year", "Developer"},
					aligns:  []columnAlignment{alignLeft, alignRight, alignLeft, alignRight, alignLeft},
				}
				for _, r := range resolved {
					if len(r.Candidates) == 0 {
						tv.rows = append(tv.rows, []string{r.Name, "-", "(no match)", "-", "-"})
						continue
					}
					for _, c := range r.Candidates {
						tv.rows = append(tv.rows, []string{r.Name, c.ExternalID, c.Title, formatYear(c.ReleaseYear), orDash(c.Developer)})
					}
				}
				return tv
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", resolver.DefaultPerNameLimit, "Maximum candidates per name")
	cmd.Flags().BoolVar(&best, "best", false, "Only show the best match per name")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output")

	return cmd
}
