// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/autobrr/gamarr/internal/cache"
)

func newFeedsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feeds",
		Short: "Show cached discovery feeds",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "popular",
		Short: "Popular games from the metadata provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.feeds()
			if err != nil {
				return err
			}
			games, status, err := svc.PopularGames(cmd.Context())
			if err != nil {
				return err
			}
			logStatus(status)

			return render(cmd, a.output(), games, func() tableView {
				tv := tableView{
					headers: []string{"ID", "Title", "Year", "Rating", "Genres"},
					aligns:  []columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignLeft},
				}
				for _, g := range games {
					rating := "-"
					if g.Rating > 0 {
						rating = strconv.FormatFloat(g.Rating, 'f', 1, 64)
					}
					tv.rows = append(tv.rows, []string{g.ExternalID, g.Title, formatYear(g.ReleaseYear), rating, orDash(strings.Join(g.Genres, ", "))})
				}
				return tv
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "top [query]",
		Short: "Best seeded releases from the indexer",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.feeds()
			if err != nil {
				return err
			}
			releases, status, err := svc.TopReleases(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			logStatus(status)

			return render(cmd, a.output(), releases, func() tableView {
				tv := tableView{
					headers: []string{"Title", "Indexer", "Size", "Seeders", "Age"},
					aligns:  []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				}
				for _, r := range releases {
					tv.rows = append(tv.rows, []string{r.Title, orDash(r.Indexer), formatBytes(r.Size), strconv.Itoa(r.Seeders), formatAge(r.PublishedAt)})
				}
				return tv
			})
		},
	})

	return cmd
}

func logStatus(status cache.Status) {
	if status == cache.StatusStale {
		log.Warn().Msg("Provider refresh failed, serving stale data")
		return
	}
	log.Debug().Stringer("status", status).Msg("Feed loaded")
}
