// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/autobrr/gamarr/internal/services/search"
)

func newSearchCommand(a *app) *cobra.Command {
	var item search.Item

	cmd := &cobra.Command{
		Use:   "search <title>",
		Short: "Search the indexer for releases of a game and rank them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item.Title = strings.Join(args, " ")

			svc, err := a.search()
			if err != nil {
				return err
			}
			result, err := svc.SearchForItem(cmd.Context(), item)
			if err != nil {
				return err
			}

			return render(cmd, a.output(), result, func() tableView {
				tv := tableView{
					headers: []string{"Score", "Conf", "Title", "Platform", "Group", "Size", "Seeders", "Age", "Grab"},
					aligns:  []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
				}
				for _, r := range result.Releases {
					tv.rows = append(tv.rows, []string{
						strconv.Itoa(r.Score),
						string(r.Confidence),
						r.Title,
						orDash(string(r.Platform)),
						orDash(r.Group),
						formatBytes(r.Size),
						strconv.Itoa(r.Seeders),
						formatAge(r.PublishedAt),
						yesNo(r.AutoGrab),
					})
				}
				return tv
			})
		},
	}

	cmd.Flags().IntVar(&item.Year, "year", 0, "Release year of the game")
	cmd.Flags().StringVar(&item.Platform, "platform", "", "Wanted platform (pc, ps5, switch, ...)")
	cmd.Flags().StringVar(&item.ExternalID, "external-id", "", "Metadata provider ID, used for the ownership check")

	return cmd
}
