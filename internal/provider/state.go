// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WayGate Contributors

package provider

// State is the furthest handshake step a provider has completed.
type State int

// Handshake states, in order.
const (
	StateUnauthenticated State = iota
	StateCodeRequested
	StateProviderIdentityObtained
	StateChannelTokenObtained
	StateAccessTokenObtained
	StateU8TokenObtained
	StateSessionEstablished
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "Unauthenticated"
	case StateCodeRequested:
		return "CodeRequested"
	case StateProviderIdentityObtained:
		return "ProviderIdentityObtained"
	case StateChannelTokenObtained:
		return "ChannelTokenObtained"
	case StateAccessTokenObtained:
		return "AccessTokenObtained"
	case StateU8TokenObtained:
		return "U8TokenObtained"
	case StateSessionEstablished:
		return "SessionEstablished"
	default:
		return "Unknown"
	}
}
