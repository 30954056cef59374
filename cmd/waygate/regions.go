// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WayGate Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/waygate/waygate/internal/region"
	"github.com/waygate/waygate/pkg/errutil"
)

// regionReport describes one region for the regions command.
type regionReport struct {
	Region         string            `yaml:"region"`
	Family         string            `yaml:"family"`
	Channel        int               `yaml:"channel,omitempty"`
	NetworkVersion string            `yaml:"network_version"`
	NetworkConfig  string            `yaml:"network_config"`
	Passport       string            `yaml:"passport,omitempty"`
	Endpoints      map[string]string `yaml:"endpoints,omitempty"`
	EndpointsError string            `yaml:"endpoints_error,omitempty"`
}

// NewRegionsCmd creates the regions subcommand.
func NewRegionsCmd() *cobra.Command {
	var load bool

	cmd := &cobra.Command{
		Use:   "regions",
		Short: "List regions and their endpoint tables",
		Long: `List every supported region with its provider family, channel and
protocol version. With --load the remote network configuration is fetched
and each region's endpoint table is printed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			reports := make([]regionReport, 0, len(region.All()))
			for _, rg := range region.All() {
				r := regionReport{
					Region:         string(rg),
					Family:         string(rg.Family()),
					NetworkVersion: rg.NetworkProtocolVersion(),
					NetworkConfig:  rg.NetworkConfigURL(),
					Passport:       rg.PassportURL(),
				}
				if override := a.cfg.NetworkConfig[string(rg)]; override != "" {
					r.NetworkConfig = override
				}
				if override := a.cfg.PassportURL(rg); override != "" {
					r.Passport = override
				}
				if channel, err := rg.ChannelCode(); err == nil {
					r.Channel = channel
				}
				if load {
					if err := a.registry.LoadNetworkConfig(cmd.Context(), rg); err != nil {
						errutil.LogErrorContext(cmd.Context(), a.logger, "network config load failed", err)
						r.EndpointsError = errutil.Code(err)
					}
					r.Endpoints = a.registry.Endpoints(rg)
				}
				reports = append(reports, r)
			}
			return writeYAML(cmd.OutOrStdout(), reports)
		},
	}

	cmd.Flags().BoolVar(&load, "load", false, "fetch and print each region's endpoint table")
	return cmd
}
