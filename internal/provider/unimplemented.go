// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WayGate Contributors

package provider

import (
	"context"
	"encoding/json"

	"github.com/waygate/waygate/internal/device"
	"github.com/waygate/waygate/internal/region"
	"github.com/waygate/waygate/internal/session"
)

// Unimplemented stands in for families with no handshake yet. Every
// operation fails with CodeNotImplemented.
type Unimplemented struct {
	region  region.Region
	session *session.Session
}

// NewUnimplemented returns the placeholder provider for rg.
func NewUnimplemented(rg region.Region) *Unimplemented {
	return &Unimplemented{region: rg, session: session.New()}
}

func (u *Unimplemented) fail(op string) error {
	return errNotImplemented(string(u.region.Family()), op)
}

// Family implements AuthProvider.
func (u *Unimplemented) Family() region.Family { return u.region.Family() }

// Region implements AuthProvider.
func (u *Unimplemented) Region() region.Region { return u.region }

// State implements AuthProvider.
func (u *Unimplemented) State() State { return StateUnauthenticated }

// Session implements AuthProvider.
func (u *Unimplemented) Session() *session.Session { return u.session }

// Device implements AuthProvider.
func (u *Unimplemented) Device() device.Identity { return device.Identity{} }

// RequestCode implements AuthProvider.
func (u *Unimplemented) RequestCode(context.Context, string) (json.RawMessage, error) {
	return nil, u.fail("RequestCode")
}

// SubmitCode implements AuthProvider.
func (u *Unimplemented) SubmitCode(context.Context, string, string) (ProviderIdentity, error) {
	return ProviderIdentity{}, u.fail("SubmitCode")
}

// ChannelLogin implements AuthProvider.
func (u *Unimplemented) ChannelLogin(context.Context, string, ProviderIdentity) (ChannelToken, error) {
	return ChannelToken{}, u.fail("ChannelLogin")
}

// AccessToken implements AuthProvider.
func (u *Unimplemented) AccessToken(context.Context, ChannelToken) (string, error) {
	return "", u.fail("AccessToken")
}

// U8Token implements AuthProvider.
func (u *Unimplemented) U8Token(context.Context, string, string) (U8Token, error) {
	return U8Token{}, u.fail("U8Token")
}

// EstablishSecret implements AuthProvider.
func (u *Unimplemented) EstablishSecret(context.Context, U8Token) (string, error) {
	return "", u.fail("EstablishSecret")
}

// LoginWithToken implements AuthProvider.
func (u *Unimplemented) LoginWithToken(context.Context, ChannelToken) error {
	return u.fail("LoginWithToken")
}

// LoginWithCode implements AuthProvider.
func (u *Unimplemented) LoginWithCode(context.Context, string, string) (ChannelToken, error) {
	return ChannelToken{}, u.fail("LoginWithCode")
}

// LoginAsGuest implements AuthProvider.
func (u *Unimplemented) LoginAsGuest(context.Context) (ChannelToken, error) {
	return ChannelToken{}, u.fail("LoginAsGuest")
}
