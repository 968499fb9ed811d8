// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/autobrr/gamarr/internal/cache"
)

type cacheChange struct {
	Action  string `json:"action"`
	Removed int64  `json:"removed"`
}

func newCacheCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the provider response cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show cache entry counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.providerCache()
			if err != nil {
				return err
			}
			stats, err := c.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd, a.output(), stats, func() tableView {
				return tableView{
					headers: []string{"Entries", "Expired", "Size"},
					aligns:  []columnAlignment{alignRight, alignRight, alignRight},
					rows:    [][]string{{strconv.Itoa(stats.Entries), strconv.Itoa(stats.Expired), formatBytes(stats.Bytes)}},
				}
			})
		},
	})

	cmd.AddCommand(newCacheChangeCommand(a, "prune", "Delete expired entries", func(cmd *cobra.Command, c *cache.Cache) (int64, error) {
		return c.DeleteExpired(cmd.Context())
	}))
	cmd.AddCommand(newCacheChangeCommand(a, "flush", "Delete every entry", func(cmd *cobra.Command, c *cache.Cache) (int64, error) {
		return c.Flush(cmd.Context())
	}))

	return cmd
}

func newCacheChangeCommand(a *app, action, short string, fn func(*cobra.Command, *cache.Cache) (int64, error)) *cobra.Command {
	return &cobra.Command{
		Use:   action,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.providerCache()
			if err != nil {
				return err
			}
			removed, err := fn(cmd, c)
			if err != nil {
				return err
			}
			change := cacheChange{Action: action, Removed: removed}
			return render(cmd, a.output(), change, func() tableView {
				return tableView{
					headers: []string{"Action", "Removed"},
					aligns:  []columnAlignment{alignLeft, alignRight},
					rows:    [][]string{{action, strconv.FormatInt(removed, 10)}},
				}
			})
		},
	}
}
