// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WayGate Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/waygate/waygate/internal/region"
)

type versionReport struct {
	ResVersion    string `yaml:"res_version"`
	ClientVersion string `yaml:"client_version"`
}

// NewVersionsCmd creates the versions subcommand.
func NewVersionsCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "versions",
		Short: "Fetch the current resource and client versions",
		Long: `Fetch the current resource and client versions of the selected region,
or of every region with --all. With --all the first failing region stops
the run.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			regions := []region.Region{a.cfg.Region()}
			if all {
				if err := a.registry.LoadAllVersionConfig(cmd.Context()); err != nil {
					return err
				}
				regions = region.All()
			} else if err := a.registry.LoadVersionConfig(cmd.Context(), regions[0]); err != nil {
				return err
			}

			out := make(map[string]versionReport, len(regions))
			for _, rg := range regions {
				v, _ := a.registry.Version(rg)
				out[string(rg)] = versionReport{ResVersion: v.ResVersion, ClientVersion: v.ClientVersion}
			}
			return writeYAML(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "fetch every region")
	return cmd
}
