// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/autobrr/gamarr/internal/buildinfo"
	"github.com/autobrr/gamarr/pkg/version"
)

type versionInfo struct {
	buildinfo.Info
	Latest     string `json:"latest,omitempty"`
	ReleaseURL string `json:"releaseUrl,omitempty"`
}

func newVersionCommand(a *app) *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versionInfo{Info: buildinfo.Current()}

			if check {
				checker := version.NewChecker("autobrr", "gamarr", buildinfo.UserAgent)
				newer, release, err := checker.CheckNewVersion(cmd.Context(), info.Version)
				if err != nil {
					return err
				}
				if newer {
					info.Latest = release.TagName
					info.ReleaseURL = release.HTMLURL
				}
			}

			if a.output() != outputTable {
				return render(cmd, a.output(), info, nil)
			}

			out := cmd.OutOrStdout()
			fmt.Fprint(out, info.Info.String())
			switch {
			case info.Latest != "":
				fmt.Fprintf(out, "Update available: %s (%s)\n", info.Latest, info.ReleaseURL)
			case check:
				fmt.Fprintln(out, "No update available")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Check GitHub for a newer release")

	return cmd
}
