// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WayGate Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/waygate/waygate/internal/config"
)

// NewRootCmd creates the root command for the WayGate CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "waygate",
		Short: "WayGate - game session login gateway",
		Long: `WayGate trades a player's identity proof (an emailed one-time code,
a saved channel token or a guest device) for a game session through the
regional identity providers, and serves the same handshake over HTTP.`,
		SilenceUsage: true,
	}

	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewCodeCmd())
	cmd.AddCommand(NewLoginCmd())
	cmd.AddCommand(NewGuestCmd())
	cmd.AddCommand(NewCallCmd())
	cmd.AddCommand(NewRegionsCmd())
	cmd.AddCommand(NewVersionsCmd())
	cmd.AddCommand(NewServeCmd())

	return cmd
}
