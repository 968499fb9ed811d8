// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or update the configuration file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format := a.output()
			if format == outputTable {
				format = outputYAML
			}
			return render(cmd, format, a.cfg.Current().Redacted(), nil)
		},
	})

	cmd.AddCommand(newConfigLogCommand(a))

	return cmd
}

func newConfigLogCommand(a *app) *cobra.Command {
	var (
		level      string
		path       string
		maxSize    int
		maxBackups int
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Update log settings in config.toml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cur := a.cfg.Current()
			if !cmd.Flags().Changed("level") {
				level = cur.LogLevel
			}
			if !cmd.Flags().Changed("path") {
				path = cur.LogPath
			}
			if !cmd.Flags().Changed("max-size") {
				maxSize = cur.LogMaxSize
			}
			if !cmd.Flags().Changed("max-backups") {
				maxBackups = cur.LogMaxBackups
			}

			if err := a.cfg.UpdateLogSettings(level, path, maxSize, maxBackups); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated log settings in %s\n", a.cfg.ConfigPath())
			return nil
		},
	}

	cmd.Flags().StringVar(&level, "level", "", "Log level: TRACE, DEBUG, INFO, WARN, ERROR")
	cmd.Flags().StringVar(&path, "path", "", "Log file path, empty for stderr only")
	cmd.Flags().IntVar(&maxSize, "max-size", 0, "Maximum log file size in MB")
	cmd.Flags().IntVar(&maxBackups, "max-backups", 0, "Rotated log files to keep")

	return cmd
}
