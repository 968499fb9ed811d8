// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/autobrr/gamarr/internal/models"
)

type importSummary struct {
	Fetched int `json:"fetched"`
	Written int `json:"written"`
	Added   int `json:"added"`
}

func newCollectionCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "collection",
		Aliases: []string{"library"},
		Short:   "Manage the owned games collection",
	}

	cmd.AddCommand(newCollectionAddCommand(a))
	cmd.AddCommand(newCollectionListCommand(a))
	cmd.AddCommand(newCollectionRemoveCommand(a))
	cmd.AddCommand(newCollectionImportSteamCommand(a))

	return cmd
}

func newCollectionAddCommand(a *app) *cobra.Command {
	item := models.CollectionItem{Provider: "manual"}

	cmd := &cobra.Command{
		Use:   "add <external-id> <title>",
		Short: "Mark a game as owned",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			item.ExternalID = args[0]
			item.Title = strings.Join(args[1:], " ")

			store, err := a.collection()
			if err != nil {
				return err
			}
			added, err := store.Add(cmd.Context(), item)
			if err != nil {
				if errors.Is(err, models.ErrCollectionItemExists) {
					return fmt.Errorf("%s is already in the collection", item.ExternalID)
				}
				return err
			}
			return renderCollection(cmd, a.output(), []*models.CollectionItem{added})
		},
	}

	cmd.Flags().StringVar(&item.Provider, "provider", item.Provider, "Provider the external id belongs to")
	cmd.Flags().StringVar(&item.Platform, "platform", "", "Platform the game is owned on")
	cmd.Flags().IntVar(&item.ReleaseYear, "year", 0, "Release year")

	return cmd
}

func newCollectionListCommand(a *app) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List owned games",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.collection()
			if err != nil {
				return err
			}
			var items []*models.CollectionItem
			if title != "" {
				items, err = store.FindByTitle(cmd.Context(), title)
			} else {
				items, err = store.List(cmd.Context())
			}
			if err != nil {
				return err
			}
			if items == nil {
				items = []*models.CollectionItem{}
			}
			return renderCollection(cmd, a.output(), items)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Only show items whose normalized title matches")

	return cmd
}

func newCollectionRemoveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <external-id>",
		Aliases: []string{"rm"},
		Short:   "Remove a game from the collection",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.collection()
			if err != nil {
				return err
			}
			if err := store.Delete(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, models.ErrCollectionItemNotFound) {
					return fmt.Errorf("%s is not in the collection", args[0])
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	}
}

func newCollectionImportSteamCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import-steam",
		Short: "Import owned games from the configured Steam account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.collection()
			if err != nil {
				return err
			}
			library, err := a.steam().Library(cmd.Context())
			if err != nil {
				return errors.Wrap(err, "fetch steam library")
			}

			existing, err := store.FindAllIDs(cmd.Context())
			if err != nil {
				return err
			}

			added := 0
			items := make([]models.CollectionItem, 0, len(library))
			for _, game := range library {
				if _, ok := existing[game.ExternalID]; !ok {
					added++
				}
				items = append(items, models.CollectionItem{
					ExternalID:  game.ExternalID,
					Provider:    game.Provider,
					Title:       game.Title,
					Platform:    "pc",
					ReleaseYear: game.ReleaseYear,
				})
			}

			written, err := store.Upsert(cmd.Context(), items)
			if err != nil {
				return err
			}
			log.Info().Int("fetched", len(library)).Int("written", written).Int("added", added).Msg("Steam library imported")

			summary := importSummary{Fetched: len(library), Written: written, Added: added}
			return render(cmd, a.output(), summary, func() tableView {
				return tableView{
					headers: []string{"Fetched", "Written", "Added"},
					aligns:  []columnAlignment{alignRight, alignRight, alignRight},
					rows:    [][]string{{fmt.Sprint(summary.Fetched), fmt.Sprint(summary.Written), fmt.Sprint(summary.Added)}},
				}
			})
		},
	}
}

func renderCollection(cmd *cobra.Command, format string, items []*models.CollectionItem) error {
	return render(cmd, format, items, func() tableView {
		tv := tableView{
			headers: []string{"ID", "Title", "Provider", "Platform", "Year", "Added"},
			aligns:  []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
		}
		for _, item := range items {
			tv.rows = append(tv.rows, []string{
				item.ExternalID,
				item.Title,
				item.Provider,
				orDash(item.Platform),
				formatYear(item.ReleaseYear),
				formatAge(item.AddedAt),
			})
		}
		return tv
	})
}
