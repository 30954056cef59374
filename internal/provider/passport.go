// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WayGate Contributors

package provider

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/waygate/waygate/internal/backend"
	"github.com/waygate/waygate/internal/device"
	"github.com/waygate/waygate/internal/region"
	"github.com/waygate/waygate/internal/session"
)

var tracer = otel.Tracer("waygate/provider")

// Passport endpoint paths, relative to the region's passport base URL.
const (
	PathAuthRequest = "/account/yostar_auth_request"
	PathAuthSubmit  = "/account/yostar_auth_submit"
	PathCreateLogin = "/user/yostar_createlogin"
	PathUserLogin   = "/user/login"
	PathGuestCreate = "/user/create"

	// PathU8Token is relative to the u8 service.
	PathU8Token = "user/v1/getToken"
	// PathGameLogin is relative to the gs service.
	PathGameLogin = "account/login"
)

const (
	clientPlatform  = "android"
	authLang        = "en"
	storeChannel    = "googleplay"
	u8AppID         = "1"
	u8Platform      = 1
	createNewNever  = "0"
	extensionTypeV1 = 1
)

// Passport is the provider for the en/jp/kr passport family.
type Passport struct {
	region      region.Region
	passportURL string
	dispatcher  Dispatcher
	versions    VersionSource
	signer      PayloadSigner
	logger      *slog.Logger
	device      device.Identity
	session     *session.Session

	mu    sync.Mutex
	state State
}

// NewPassport creates a passport provider for rg with a fresh session and
// a device identity fixed for its lifetime.
func NewPassport(deps Deps, rg region.Region) (*Passport, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if err := rg.Validate(); err != nil {
		return nil, err
	}
	if rg.Family() != region.FamilyPassport {
		return nil, oops.Code(region.CodeUnknownRegion).
			With("region", rg).
			With("family", rg.Family()).
			Errorf("region %s is not served by the passport family", rg)
	}

	id, err := deps.identity()
	if err != nil {
		return nil, err
	}

	p := &Passport{
		region:      rg,
		passportURL: rg.PassportURL(),
		dispatcher:  deps.Dispatcher,
		versions:    deps.Versions,
		signer:      deps.Signer,
		logger:      deps.Logger,
		device:      id,
		session:     session.New(),
	}
	if deps.PassportURL != "" {
		p.passportURL = deps.PassportURL
	}
	if p.signer == nil {
		p.signer = NopPayloadSigner{}
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.logger = p.logger.With("family", string(region.FamilyPassport), "region", string(rg))
	return p, nil
}

// Family implements AuthProvider.
func (p *Passport) Family() region.Family { return region.FamilyPassport }

// Region implements AuthProvider.
func (p *Passport) Region() region.Region { return p.region }

// Session implements AuthProvider.
func (p *Passport) Session() *session.Session { return p.session }

// Device implements AuthProvider.
func (p *Passport) Device() device.Identity { return p.device }

// State implements AuthProvider.
func (p *Passport) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Passport) advance(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// step wraps one exchange with a span, a metric and a debug log line.
func (p *Passport) step(ctx context.Context, name string, fn func(ctx context.Context) error) (err error) {
	ctx, span := tracer.Start(ctx, "provider."+name)
	span.SetAttributes(
		attribute.String("provider.family", string(region.FamilyPassport)),
		attribute.String("provider.region", string(p.region)),
	)
	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		recordStep(string(region.FamilyPassport), name, err, elapsed)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			p.logger.DebugContext(ctx, "handshake step failed", "step", name, "error", err, "duration", elapsed)
		} else {
			p.logger.DebugContext(ctx, "handshake step complete", "step", name, "duration", elapsed)
		}
		span.End()
	}()
	return fn(ctx)
}

// post sends body to target, a service name or the passport base URL, and
// decodes the outcome.
func (p *Passport) post(ctx context.Context, step, target, path string, body any, required ...string) (outcome, error) {
	resp, err := p.dispatcher.Dispatch(ctx, target,
		backend.WithPath(path),
		backend.WithBody(body),
		backend.WithRegion(p.region),
	)
	if err != nil {
		return outcome{}, err
	}
	return decode(step, resp, required...)
}

// RequestCode asks the passport service to email a one-time code. The
// response is returned as received.
func (p *Passport) RequestCode(ctx context.Context, email string) (json.RawMessage, error) {
	if email == "" {
		return nil, errMissing(CodeMissingEmail, "email")
	}
	var raw json.RawMessage
	err := p.step(ctx, StepRequestCode, func(ctx context.Context) error {
		out, err := p.post(ctx, StepRequestCode, p.passportURL, PathAuthRequest, map[string]string{
			"platform": clientPlatform,
			"account":  email,
			"authlang": authLang,
		})
		if err != nil {
			return err
		}
		raw = json.RawMessage(out.raw)
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.advance(StateCodeRequested)
	return raw, nil
}

// SubmitCode exchanges the emailed code for the provider identity.
func (p *Passport) SubmitCode(ctx context.Context, email, code string) (ProviderIdentity, error) {
	if email == "" {
		return ProviderIdentity{}, errMissing(CodeMissingEmail, "email")
	}
	if code == "" {
		return ProviderIdentity{}, errMissing(CodeMissingCode, "code")
	}
	var id ProviderIdentity
	err := p.step(ctx, StepSubmitCode, func(ctx context.Context) error {
		out, err := p.post(ctx, StepSubmitCode, p.passportURL, PathAuthSubmit, map[string]string{
			"account": email,
			"code":    code,
		}, "yostar_uid", "yostar_token")
		if err != nil {
			return err
		}
		id = ProviderIdentity{UID: out.str("yostar_uid"), Token: out.str("yostar_token")}
		return nil
	})
	if err != nil {
		return ProviderIdentity{}, err
	}
	p.advance(StateProviderIdentityObtained)
	return id, nil
}

// ChannelLogin trades the provider identity for the channel account. It
// never creates a new account.
func (p *Passport) ChannelLogin(ctx context.Context, email string, id ProviderIdentity) (ChannelToken, error) {
	var ct ChannelToken
	err := p.step(ctx, StepChannelLogin, func(ctx context.Context) error {
		out, err := p.post(ctx, StepChannelLogin, p.passportURL, PathCreateLogin, map[string]string{
			"yostar_token":    id.Token,
			"deviceId":        p.device.DeviceID,
			"channelId":       storeChannel,
			"yostar_uid":      id.UID,
			"createNew":       createNewNever,
			"yostar_username": email,
		}, "uid", "token")
		if err != nil {
			return err
		}
		ct = ChannelToken{UID: out.str("uid"), Token: out.str("token")}
		return nil
	})
	if err != nil {
		return ChannelToken{}, err
	}
	p.advance(StateChannelTokenObtained)
	return ct, nil
}

// AccessToken logs the channel account in and returns its access token.
func (p *Passport) AccessToken(ctx context.Context, ct ChannelToken) (string, error) {
	var token string
	err := p.step(ctx, StepAccessToken, func(ctx context.Context) error {
		out, err := p.post(ctx, StepAccessToken, p.passportURL, PathUserLogin, map[string]string{
			"platform": clientPlatform,
			"uid":      ct.UID,
			"token":    ct.Token,
			"deviceId": p.device.DeviceID,
		}, "accessToken")
		if err != nil {
			return err
		}
		token = out.str("accessToken")
		return nil
	})
	if err != nil {
		return "", err
	}
	p.advance(StateAccessTokenObtained)
	return token, nil
}

// U8Token binds the channel account to the game and records the game
// account id on the session.
func (p *Passport) U8Token(ctx context.Context, channelUID, accessToken string) (U8Token, error) {
	channel, err := p.region.ChannelCode()
	if err != nil {
		return U8Token{}, err
	}
	extension, err := Extension(channel, channelUID, accessToken)
	if err != nil {
		return U8Token{}, err
	}
	channelID := strconv.Itoa(channel)

	fields := []Field{
		{Key: "appId", Value: u8AppID},
		{Key: "channelId", Value: channelID},
		{Key: "deviceId", Value: p.device.DeviceID},
		{Key: "deviceId2", Value: p.device.DeviceID2},
		{Key: "deviceId3", Value: p.device.DeviceID3},
		{Key: "extension", Value: extension},
		{Key: "platform", Value: strconv.Itoa(u8Platform)},
		{Key: "subChannel", Value: channelID},
		{Key: "worldId", Value: channelID},
	}
	body := map[string]any{
		"appId":      u8AppID,
		"platform":   u8Platform,
		"channelId":  channelID,
		"subChannel": channelID,
		"worldId":    channelID,
		"extension":  extension,
		"deviceId":   p.device.DeviceID,
		"deviceId2":  p.device.DeviceID2,
		"deviceId3":  p.device.DeviceID3,
	}
	if sign := p.signer.Sign(fields); sign != "" {
		body["sign"] = sign
	}

	var tok U8Token
	err = p.step(ctx, StepU8Token, func(ctx context.Context) error {
		out, err := p.post(ctx, StepU8Token, backend.ServiceU8, PathU8Token, body, "uid", "token")
		if err != nil {
			return err
		}
		tok = U8Token{UID: out.str("uid"), Token: out.str("token")}
		return nil
	})
	if err != nil {
		return U8Token{}, err
	}
	p.session.SetAccountID(tok.UID)
	p.advance(StateU8TokenObtained)
	return tok, nil
}

// EstablishSecret logs into the game server and records the session
// secret. Version info is loaded once if the registry has none.
func (p *Passport) EstablishSecret(ctx context.Context, tok U8Token) (string, error) {
	var secret string
	err := p.step(ctx, StepEstablishSecret, func(ctx context.Context) error {
		v, err := p.version(ctx)
		if err != nil {
			return err
		}
		out, err := p.post(ctx, StepEstablishSecret, backend.ServiceGame, PathGameLogin, map[string]any{
			"networkVersion": p.region.NetworkProtocolVersion(),
			"uid":            tok.UID,
			"token":          tok.Token,
			"assetsVersion":  v.ResVersion,
			"clientVersion":  v.ClientVersion,
			"platform":       u8Platform,
			"deviceId":       p.device.DeviceID,
			"deviceId2":      p.device.DeviceID2,
			"deviceId3":      p.device.DeviceID3,
		}, "secret")
		if err != nil {
			return err
		}
		secret = out.str("secret")
		return nil
	})
	if err != nil {
		return "", err
	}
	p.session.SetSecret(secret)
	p.advance(StateSessionEstablished)
	return secret, nil
}

func (p *Passport) version(ctx context.Context) (backend.VersionInfo, error) {
	if v, ok := p.versions.Version(p.region); ok && v.Complete() {
		return v, nil
	}
	if err := p.versions.LoadVersionConfig(ctx, p.region); err != nil {
		return backend.VersionInfo{}, err
	}
	v, ok := p.versions.Version(p.region)
	if !ok || !v.Complete() {
		return backend.VersionInfo{}, oops.Code(CodeVersionMissing).
			With("region", p.region).
			Errorf("no version info for region %s", p.region)
	}
	return v, nil
}

// LoginWithToken runs the last three steps from a known channel token.
func (p *Passport) LoginWithToken(ctx context.Context, ct ChannelToken) error {
	if ct.UID == "" {
		return errMissing(CodeMissingToken, "channelUid")
	}
	if ct.Token == "" {
		return errMissing(CodeMissingToken, "token")
	}
	access, err := p.AccessToken(ctx, ct)
	if err != nil {
		return err
	}
	tok, err := p.U8Token(ctx, ct.UID, access)
	if err != nil {
		return err
	}
	_, err = p.EstablishSecret(ctx, tok)
	return err
}

// LoginWithCode runs the handshake from an emailed code and returns the
// channel token so callers can log in again without a code.
func (p *Passport) LoginWithCode(ctx context.Context, email, code string) (ChannelToken, error) {
	id, err := p.SubmitCode(ctx, email, code)
	if err != nil {
		return ChannelToken{}, err
	}
	ct, err := p.ChannelLogin(ctx, email, id)
	if err != nil {
		return ChannelToken{}, err
	}
	if err := p.LoginWithToken(ctx, ct); err != nil {
		return ChannelToken{}, err
	}
	return ct, nil
}

// LoginAsGuest creates a guest channel account bound to the device and
// logs it in.
func (p *Passport) LoginAsGuest(ctx context.Context) (ChannelToken, error) {
	var ct ChannelToken
	err := p.step(ctx, StepGuestCreate, func(ctx context.Context) error {
		out, err := p.post(ctx, StepGuestCreate, p.passportURL, PathGuestCreate, map[string]string{
			"deviceId": p.device.DeviceID,
		}, "uid", "token")
		if err != nil {
			return err
		}
		ct = ChannelToken{UID: out.str("uid"), Token: out.str("token")}
		return nil
	})
	if err != nil {
		return ChannelToken{}, err
	}
	p.advance(StateChannelTokenObtained)
	if err := p.LoginWithToken(ctx, ct); err != nil {
		return ChannelToken{}, err
	}
	return ct, nil
}

// Extension builds the u8 extension payload for channel, serialized as a
// JSON string.
func Extension(channel int, uid, accessToken string) (string, error) {
	var payload any
	switch channel {
	case 1, 2:
		payload = struct {
			UID         string `json:"uid"`
			AccessToken string `json:"access_token"`
		}{uid, accessToken}
	case 3:
		payload = struct {
			Type  int    `json:"type"`
			UID   string `json:"uid"`
			Token string `json:"token"`
		}{extensionTypeV1, uid, accessToken}
	default:
		return "", oops.Code(region.CodeUnsupportedChannel).
			With("channel", channel).
			Errorf("no extension format for channel %d", channel)
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", oops.Code(CodeMalformed).With("step", StepU8Token).Wrap(err)
	}
	return string(b), nil
}
