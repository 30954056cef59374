// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WayGate Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/waygate/waygate/internal/backend"
	"github.com/waygate/waygate/internal/gateway"
	"github.com/waygate/waygate/internal/provider"
	"github.com/waygate/waygate/internal/session"
	"github.com/waygate/waygate/pkg/errutil"
)

// Error codes for the call command.
const (
	CodeCallBadBody    = "CALL_BAD_BODY"
	CodeCallHTTPStatus = "CALL_HTTP_STATUS"
)

type callConfig struct {
	body       string
	channelUID string
	token      string
	sign       bool
}

// NewCallCmd creates the call subcommand.
func NewCallCmd() *cobra.Command {
	cfg := &callConfig{}

	cmd := &cobra.Command{
		Use:   "call <path>",
		Short: "Call a game-server path with an established session",
		Long: `Log in with the saved channel token (or --channel-uid and --token),
then send one request to the given game-server path and print the response
body. A --body makes the request a POST.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd, cfg, args[0])
		},
	}

	cmd.Flags().StringVar(&cfg.body, "body", "", "JSON request body")
	cmd.Flags().StringVar(&cfg.channelUID, "channel-uid", "", "channel account uid")
	cmd.Flags().StringVar(&cfg.token, "token", "", "channel account token")
	cmd.Flags().BoolVar(&cfg.sign, "sign", false, "attach uid, secret and seqnum headers")
	cmd.MarkFlagsRequiredTogether("channel-uid", "token")

	return cmd
}

func runCall(cmd *cobra.Command, cfg *callConfig, path string) error {
	var opts []backend.RequestOption
	if cfg.body != "" {
		if !json.Valid([]byte(cfg.body)) {
			return oops.Code(CodeCallBadBody).Errorf("--body is not valid JSON")
		}
		opts = append(opts, backend.WithBody(json.RawMessage(cfg.body)))
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	rg := a.cfg.Region()

	ct := provider.ChannelToken{UID: cfg.channelUID, Token: cfg.token}
	if ct.UID == "" {
		store, err := defaultCredentialStore()
		if err != nil {
			return err
		}
		ct, err = store.Get(rg)
		if errutil.HasCode(err, provider.CodeMissingToken) {
			return oops.Code(provider.CodeMissingToken).
				Hint("run `waygate guest --save` or `waygate login --save` first").
				Wrap(err)
		}
		if err != nil {
			return err
		}
	}

	p, err := a.fromToken(cmd, rg, ct)
	if err != nil {
		return err
	}

	var signer session.Signer = session.NopSigner{}
	if cfg.sign {
		signer = session.HeaderSigner{}
	}
	gw, err := gateway.New(a.dispatcher, gateway.WithSigner(signer))
	if err != nil {
		return err
	}

	opts = append(opts, backend.WithRegion(rg))
	resp, err := gw.Dispatch(cmd.Context(), path, p.Session(), opts...)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return oops.Code(backend.CodeTransport).With("path", path).Wrap(err)
	}
	if _, err := fmt.Fprintln(cmd.OutOrStdout(), string(raw)); err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return oops.Code(CodeCallHTTPStatus).
			With("path", path).
			With("status", resp.StatusCode).
			Errorf("game server returned %s", resp.Status)
	}
	return nil
}
