// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "gamarr",
		Short:         "Game metadata and release resolver",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutput(a.outputFlag); err != nil {
				return err
			}
			if shouldSkipConfig(cmd) {
				return nil
			}
			return a.setup()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configFlag, "config-dir", "", "Configuration directory or config.toml path")
	rootCmd.PersistentFlags().StringVarP(&a.outputFlag, "output", "o", outputTable, "Output format: table, json or yaml")

	rootCmd.AddCommand(newResolveCommand(a))
	rootCmd.AddCommand(newSearchCommand(a))
	rootCmd.AddCommand(newFeedsCommand(a))
	rootCmd.AddCommand(newCacheCommand(a))
	rootCmd.AddCommand(newCollectionCommand(a))
	rootCmd.AddCommand(newConfigCommand(a))
	rootCmd.AddCommand(newServeCommand(a))
	rootCmd.AddCommand(newVersionCommand(a))

	return rootCmd
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
