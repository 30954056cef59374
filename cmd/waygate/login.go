// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WayGate Contributors

package main

import (
	"fmt"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/waygate/waygate/internal/provider"
)

// loginConfig holds flags for the login command.
type loginConfig struct {
	email      string
	code       string
	channelUID string
	token      string
	saved      bool
	save       bool
}

// NewCodeCmd creates the code subcommand.
func NewCodeCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "code",
		Short: "Email a one-time login code",
		Long: `Ask the region's identity provider to email a one-time login code.
The provider's response is printed as received.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			p, err := a.provider(a.cfg.Region())
			if err != nil {
				return err
			}
			raw, err := p.RequestCode(cmd.Context(), email)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(raw))
			return err
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email address")
	return cmd
}

// NewLoginCmd creates the login subcommand.
func NewLoginCmd() *cobra.Command {
	cfg := &loginConfig{}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Establish a game session",
		Long: `Establish a game session with an emailed code (--email, --code),
a known channel token (--channel-uid, --token) or the token saved by an
earlier --save (--saved).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogin(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.email, "email", "", "account email address")
	cmd.Flags().StringVar(&cfg.code, "code", "", "one-time code from the email")
	cmd.Flags().StringVar(&cfg.channelUID, "channel-uid", "", "channel account uid")
	cmd.Flags().StringVar(&cfg.token, "token", "", "channel account token")
	cmd.Flags().BoolVar(&cfg.saved, "saved", false, "log in with the saved channel token")
	cmd.Flags().BoolVar(&cfg.save, "save", false, "save the channel token for later --saved logins")
	cmd.MarkFlagsMutuallyExclusive("saved", "email")
	cmd.MarkFlagsMutuallyExclusive("saved", "channel-uid")
	cmd.MarkFlagsMutuallyExclusive("email", "channel-uid")
	cmd.MarkFlagsRequiredTogether("channel-uid", "token")

	return cmd
}

func runLogin(cmd *cobra.Command, cfg *loginConfig) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	rg := a.cfg.Region()
	store, err := defaultCredentialStore()
	if err != nil {
		return err
	}

	var (
		p  provider.AuthProvider
		ct provider.ChannelToken
	)
	switch {
	case cfg.saved:
		ct, err = store.Get(rg)
		if err != nil {
			return err
		}
		p, err = a.fromToken(cmd, rg, ct)
	case cfg.channelUID != "":
		ct = provider.ChannelToken{UID: cfg.channelUID, Token: cfg.token}
		p, err = a.fromToken(cmd, rg, ct)
	case cfg.email != "":
		p, err = a.provider(rg)
		if err == nil {
			ct, err = p.LoginWithCode(cmd.Context(), cfg.email, cfg.code)
		}
	default:
		return oops.Code(provider.CodeMissingEmail).
			Errorf("one of --email, --channel-uid or --saved is required")
	}
	if err != nil {
		return err
	}

	a.logger.InfoContext(cmd.Context(), "session established",
		"region", string(rg),
		"account_id", p.Session().AccountID(),
	)
	if cfg.save {
		if err := store.Put(rg, ct); err != nil {
			return err
		}
	}
	return writeYAML(cmd.OutOrStdout(), reportFor(p, ct))
}

// NewGuestCmd creates the guest subcommand.
func NewGuestCmd() *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "guest",
		Short: "Create a guest account and establish a session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			rg := a.cfg.Region()
			p, err := a.provider(rg)
			if err != nil {
				return err
			}
			ct, err := p.LoginAsGuest(cmd.Context())
			if err != nil {
				return err
			}
			if save {
				store, err := defaultCredentialStore()
				if err != nil {
					return err
				}
				if err := store.Put(rg, ct); err != nil {
					return err
				}
			}
			return writeYAML(cmd.OutOrStdout(), reportFor(p, ct))
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "save the guest channel token for later --saved logins")
	return cmd
}
