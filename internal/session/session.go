// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WayGate Contributors

// Package session holds the authenticated identity of one player and the
// request-signing strategies that present it to the game server.
package session

import "sync"

// InitialSeq is the first sequence number of a new session.
const InitialSeq = 1

// Session is the mutable state of one player identity. AccountID is set once
// the token exchange succeeds, Secret once the session is established. The
// zero value is not usable; create sessions with New.
type Session struct {
	mu        sync.Mutex
	accountID string
	secret    string
	seq       int
}

// Snapshot is a point-in-time copy of a Session.
type Snapshot struct {
	AccountID string `json:"accountId"`
	Secret    string `json:"-"`
	Seq       int    `json:"seq"`
}

// New returns an unauthenticated session.
func New() *Session {
	return &Session{seq: InitialSeq}
}

// AccountID returns the game account id, or "" when unauthenticated.
func (s *Session) AccountID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accountID
}

// Secret returns the signing secret, or "" when not yet established.
func (s *Session) Secret() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.secret
}

// SetAccountID records the game account id.
func (s *Session) SetAccountID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accountID = id
}

// SetSecret records the signing secret.
func (s *Session) SetSecret(secret string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secret = secret
}

// Authenticated reports whether an account id is set.
func (s *Session) Authenticated() bool {
	return s.AccountID() != ""
}

// Established reports whether the signing secret is set.
func (s *Session) Established() bool {
	return s.Secret() != ""
}

// NextSeq returns the current sequence number and advances it.
func (s *Session) NextSeq() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.seq
	s.seq++
	return n
}

// Snapshot returns a consistent copy of the session fields.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{AccountID: s.accountID, Secret: s.secret, Seq: s.seq}
}
