// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WayGate Contributors

// Package gateway issues authenticated calls against the game server.
package gateway

import (
	"context"
	"net/http"

	"github.com/samber/oops"

	"github.com/waygate/waygate/internal/backend"
	"github.com/waygate/waygate/internal/session"
)

// CodeNotAuthenticated is returned when a call is attempted without an
// account id on the session.
const CodeNotAuthenticated = "SESSION_NOT_AUTHENTICATED"

// Dispatcher is the subset of backend.Dispatcher the gateway needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, service string, opts ...backend.RequestOption) (*http.Response, error)
}

// Gateway wraps a Dispatcher, requiring an authenticated session.
type Gateway struct {
	dispatcher Dispatcher
	signer     session.Signer
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithSigner sets the signing strategy. Defaults to session.NopSigner.
func WithSigner(s session.Signer) Option {
	return func(g *Gateway) {
		if s != nil {
			g.signer = s
		}
	}
}

// New creates a Gateway.
func New(d Dispatcher, opts ...Option) (*Gateway, error) {
	if d == nil {
		return nil, oops.Code("GATEWAY_NIL_DISPATCHER").Errorf("dispatcher is required")
	}
	g := &Gateway{dispatcher: d, signer: session.NopSigner{}}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Dispatch sends a request to path on the game server. It fails before any
// network activity when sess has no account id; the secret is not required.
func (g *Gateway) Dispatch(ctx context.Context, path string, sess *session.Session, opts ...backend.RequestOption) (*http.Response, error) {
	if sess == nil || !sess.Authenticated() {
		return nil, oops.Code(CodeNotAuthenticated).
			With("path", path).
			Errorf("not authenticated")
	}

	signed := make(http.Header)
	g.signer.Sign(signed, sess)

	all := make([]backend.RequestOption, 0, len(opts)+len(signed)+1)
	all = append(all, opts...)
	for k, vs := range signed {
		for _, v := range vs {
			all = append(all, backend.WithHeader(k, v))
		}
	}
	all = append(all, backend.WithPath(path))

	return g.dispatcher.Dispatch(ctx, backend.ServiceGame, all...)
}
