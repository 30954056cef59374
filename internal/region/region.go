// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WayGate Contributors

// Package region describes the game's operating territories and the
// constants that differ between them.
package region

import (
	"strings"

	"github.com/samber/oops"
)

// Error codes for region lookups.
const (
	CodeNoRegion           = "CONFIG_NO_REGION"
	CodeUnknownRegion      = "CONFIG_UNKNOWN_REGION"
	CodeUnsupportedChannel = "CONFIG_UNSUPPORTED_CHANNEL"
)

// Region identifies one operating territory of the backend.
type Region string

// Known regions.
const (
	CN   Region = "cn"
	Bili Region = "bili"
	EN   Region = "en"
	JP   Region = "jp"
	KR   Region = "kr"
	TW   Region = "tw"
)

// Family identifies the identity-provider family serving a region.
type Family string

// Provider families.
const (
	FamilyHypergryph Family = "hypergryph"
	FamilyBilibili   Family = "bilibili"
	FamilyPassport   Family = "passport"
	FamilyTXWY       Family = "txwy"
)

type profile struct {
	family          Family
	networkConfig   string
	passport        string
	channel         int // 0 means unsupported
	networkProtocol string
}

var profiles = map[Region]profile{
	CN: {
		family:          FamilyHypergryph,
		networkConfig:   "https://ak-conf.hypergryph.com/config/prod/official/network_config",
		passport:        "https://as.hypergryph.com",
		channel:         1,
		networkProtocol: "5",
	},
	Bili: {
		family:          FamilyBilibili,
		networkConfig:   "https://ak-conf.hypergryph.com/config/prod/b/network_config",
		channel:         2,
		networkProtocol: "5",
	},
	EN: {
		family:          FamilyPassport,
		networkConfig:   "https://ak-conf.arknights.global/config/prod/official/network_config",
		passport:        "https://passport.arknights.global",
		channel:         3,
		networkProtocol: "1",
	},
	JP: {
		family:          FamilyPassport,
		networkConfig:   "https://ak-conf.arknights.jp/config/prod/official/network_config",
		passport:        "https://passport.arknights.jp",
		channel:         3,
		networkProtocol: "1",
	},
	KR: {
		family:          FamilyPassport,
		networkConfig:   "https://ak-conf.arknights.kr/config/prod/official/network_config",
		passport:        "https://passport.arknights.kr",
		channel:         3,
		networkProtocol: "1",
	},
	TW: {
		family:          FamilyTXWY,
		networkConfig:   "https://ak-conf.txwy.tw/config/prod/official/network_config",
		networkProtocol: "5",
	},
}

// order is the fixed iteration order used by All.
var order = []Region{CN, Bili, EN, JP, KR, TW}

// All returns every known region in a fixed order.
func All() []Region {
	out := make([]Region, len(order))
	copy(out, order)
	return out
}

// Parse converts a string to a Region.
func Parse(s string) (Region, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", oops.Code(CodeNoRegion).Errorf("no region given")
	}
	r := Region(s)
	if !r.Known() {
		return "", oops.Code(CodeUnknownRegion).With("region", s).Errorf("unknown region %q", s)
	}
	return r, nil
}

// Known reports whether r is one of the known regions.
func (r Region) Known() bool {
	_, ok := profiles[r]
	return ok
}

// Validate returns a configuration error when r is empty or unknown.
func (r Region) Validate() error {
	if r == "" {
		return oops.Code(CodeNoRegion).Errorf("no region given")
	}
	if !r.Known() {
		return oops.Code(CodeUnknownRegion).With("region", string(r)).Errorf("unknown region %q", string(r))
	}
	return nil
}

func (r Region) String() string {
	return string(r)
}

// Family returns the identity-provider family for r.
func (r Region) Family() Family {
	return profiles[r].family
}

// NetworkConfigURL returns the remote configuration document URL for r.
func (r Region) NetworkConfigURL() string {
	return profiles[r].networkConfig
}

// PassportURL returns the identity-provider base URL for r. Empty when the
// region's family has no passport service.
func (r Region) PassportURL() string {
	return profiles[r].passport
}

// NetworkProtocolVersion returns the protocol version sent when establishing
// the session secret.
func (r Region) NetworkProtocolVersion() string {
	return profiles[r].networkProtocol
}

// ChannelCode returns the numeric distribution channel for r.
// Regions without a channel mapping are unsupported and return an error.
func (r Region) ChannelCode() (int, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}
	code := profiles[r].channel
	if code == 0 {
		return 0, oops.Code(CodeUnsupportedChannel).
			With("region", string(r)).
			Errorf("region %s has no supported channel", string(r))
	}
	return code, nil
}
