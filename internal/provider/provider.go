// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WayGate Contributors

package provider

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/samber/oops"

	"github.com/waygate/waygate/internal/backend"
	"github.com/waygate/waygate/internal/device"
	"github.com/waygate/waygate/internal/region"
	"github.com/waygate/waygate/internal/session"
)

// ProviderIdentity identifies the user at the identity-provider level.
type ProviderIdentity struct {
	UID   string
	Token string
}

// ChannelToken identifies the user's game account. It is the only
// intermediate value handed back to callers.
type ChannelToken struct {
	UID   string `json:"channelUid"`
	Token string `json:"token"`
}

// U8Token binds the channel account to the game title.
type U8Token struct {
	UID   string
	Token string
}

// AuthProvider is one regional identity-provider family.
type AuthProvider interface {
	Family() region.Family
	Region() region.Region
	State() State
	Session() *session.Session
	Device() device.Identity

	RequestCode(ctx context.Context, email string) (json.RawMessage, error)
	SubmitCode(ctx context.Context, email, code string) (ProviderIdentity, error)
	ChannelLogin(ctx context.Context, email string, id ProviderIdentity) (ChannelToken, error)
	AccessToken(ctx context.Context, ct ChannelToken) (string, error)
	U8Token(ctx context.Context, channelUID, accessToken string) (U8Token, error)
	EstablishSecret(ctx context.Context, tok U8Token) (string, error)

	// LoginWithToken runs AccessToken, U8Token and EstablishSecret.
	LoginWithToken(ctx context.Context, ct ChannelToken) error
	// LoginWithCode runs SubmitCode through EstablishSecret.
	LoginWithCode(ctx context.Context, email, code string) (ChannelToken, error)
	// LoginAsGuest creates a guest account and logs it in.
	LoginAsGuest(ctx context.Context) (ChannelToken, error)
}

// Dispatcher is the subset of backend.Dispatcher used by providers.
type Dispatcher interface {
	Dispatch(ctx context.Context, service string, opts ...backend.RequestOption) (*http.Response, error)
}

// VersionSource supplies per-region version info, loading it on demand.
type VersionSource interface {
	Version(rg region.Region) (backend.VersionInfo, bool)
	LoadVersionConfig(ctx context.Context, rg region.Region) error
}

// Deps are the collaborators shared by providers.
type Deps struct {
	Dispatcher Dispatcher
	Versions   VersionSource

	// Signer signs the u8 token request. Nil means unsigned.
	Signer PayloadSigner
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Device, when set, replaces the freshly generated device identity.
	Device *device.Identity
	// PassportURL, when set, replaces the region's passport base URL.
	PassportURL string
}

func (d Deps) validate() error {
	if d.Dispatcher == nil {
		return oops.Code(CodeNilDependency).Errorf("dispatcher is required")
	}
	if d.Versions == nil {
		return oops.Code(CodeNilDependency).Errorf("version source is required")
	}
	return nil
}

func (d Deps) identity() (device.Identity, error) {
	if d.Device != nil {
		return *d.Device, nil
	}
	return device.New(nil)
}

// New returns the provider for rg's family. Families without an
// implementation get an Unimplemented provider.
func New(deps Deps, rg region.Region) (AuthProvider, error) {
	if err := rg.Validate(); err != nil {
		return nil, err
	}
	switch rg.Family() {
	case region.FamilyPassport:
		return NewPassport(deps, rg)
	default:
		return NewUnimplemented(rg), nil
	}
}

// FromToken creates the provider for rg and logs in with an already known
// channel uid/token pair.
func FromToken(ctx context.Context, deps Deps, rg region.Region, channelUID, token string) (AuthProvider, error) {
	if channelUID == "" {
		return nil, errMissing(CodeMissingToken, "channelUid")
	}
	if token == "" {
		return nil, errMissing(CodeMissingToken, "token")
	}
	p, err := New(deps, rg)
	if err != nil {
		return nil, err
	}
	if err := p.LoginWithToken(ctx, ChannelToken{UID: channelUID, Token: token}); err != nil {
		return nil, err
	}
	return p, nil
}
