// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WayGate Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/waygate/waygate/internal/backend"
	"github.com/waygate/waygate/internal/config"
	"github.com/waygate/waygate/internal/logging"
	"github.com/waygate/waygate/internal/provider"
	"github.com/waygate/waygate/internal/region"
)

// app is the wiring shared by every command.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	registry   *backend.Registry
	dispatcher *backend.Dispatcher
	deps       provider.Deps
}

// newApp loads config, sets up logging and builds the registry,
// dispatcher and provider dependencies.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger := logging.SetDefault(logging.Options{
		Service: "waygate",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   logging.ParseLevel(cfg.Log.Level),
		Output:  cmd.ErrOrStderr(),
	})

	reg := backend.NewRegistry(append(cfg.RegistryOptions(), backend.WithLogger(logger))...)
	dispatcher, err := backend.NewDispatcher(reg)
	if err != nil {
		return nil, err
	}
	signer, err := cfg.PayloadSigner()
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:        cfg,
		logger:     logger,
		registry:   reg,
		dispatcher: dispatcher,
		deps: provider.Deps{
			Dispatcher: dispatcher,
			Versions:   reg,
			Signer:     signer,
			Logger:     logger,
		},
	}, nil
}

// provider creates a fresh provider for rg with its configured passport URL.
func (a *app) provider(rg region.Region) (provider.AuthProvider, error) {
	deps := a.deps
	deps.PassportURL = a.cfg.PassportURL(rg)
	return provider.New(deps, rg)
}

// fromToken logs in with a saved channel token.
func (a *app) fromToken(cmd *cobra.Command, rg region.Region, ct provider.ChannelToken) (provider.AuthProvider, error) {
	deps := a.deps
	deps.PassportURL = a.cfg.PassportURL(rg)
	return provider.FromToken(cmd.Context(), deps, rg, ct.UID, ct.Token)
}
