// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WayGate Contributors

// Package provider implements the identity-proof to session-secret
// handshake for each regional identity-provider family.
//
// # Handshake
//
// The passport family runs six strictly sequential exchanges, each
// consuming the previous step's output:
//
//	RequestCode     email one-time code            (optional when the code is known)
//	SubmitCode      code -> provider uid/token
//	ChannelLogin    provider token -> channel uid/token (never creates accounts)
//	AccessToken     channel token -> access token
//	U8Token         access token -> game uid/u8 token   (sets Session.AccountID)
//	EstablishSecret u8 token -> session secret          (sets Session.Secret)
//
// A failed step leaves the session as it was; there is no rollback. Callers
// discard the provider and start over.
//
// Providers are created with New or FromToken. Families without an
// implementation yield an Unimplemented provider whose every operation
// fails with CodeNotImplemented.
package provider
