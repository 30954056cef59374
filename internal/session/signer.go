// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WayGate Contributors

package session

import (
	"net/http"
	"strconv"
)

// Header names attached by HeaderSigner.
const (
	HeaderUID    = "uid"
	HeaderSecret = "secret"
	HeaderSeq    = "seqnum"
)

// Signer attaches session credentials to an outbound game-server request.
type Signer interface {
	Sign(h http.Header, s *Session)
}

// NopSigner attaches nothing. Authenticated calls are sent unsigned.
type NopSigner struct{}

// Sign does nothing.
func (NopSigner) Sign(http.Header, *Session) {}

// HeaderSigner attaches uid, secret and a fresh sequence number. Each call
// consumes one sequence number.
type HeaderSigner struct{}

// Sign sets the uid, secret and seqnum headers.
func (HeaderSigner) Sign(h http.Header, s *Session) {
	snap := s.Snapshot()
	h.Set(HeaderUID, snap.AccountID)
	if snap.Secret != "" {
		h.Set(HeaderSecret, snap.Secret)
	}
	h.Set(HeaderSeq, strconv.Itoa(s.NextSeq()))
}
