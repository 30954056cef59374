// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WayGate Contributors

// Package device generates the synthetic hardware identifiers a client
// instance presents to the backend.
package device

import (
	"crypto/rand"
	"io"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// CarrierPrefix is the fixed two-digit code leading the numeric identifier.
const CarrierPrefix = "86"

// numericDigits is the number of random digits after CarrierPrefix.
const numericDigits = 13

// Identity is the identifier triple presented on every request of one
// client instance. The backend correlates handshake steps by it, so it is
// generated once and never regenerated.
type Identity struct {
	DeviceID  string `json:"deviceId"`
	DeviceID2 string `json:"deviceId2"`
	DeviceID3 string `json:"deviceId3"`
}

// New generates an Identity from the given random source. A nil source
// uses crypto/rand.
func New(random io.Reader) (Identity, error) {
	if random == nil {
		random = rand.Reader
	}

	first, err := uuid.NewRandomFromReader(random)
	if err != nil {
		return Identity{}, oops.Code("DEVICE_GENERATE_FAILED").With("field", "deviceId").Wrap(err)
	}
	numeric, err := numericID(random)
	if err != nil {
		return Identity{}, oops.Code("DEVICE_GENERATE_FAILED").With("field", "deviceId2").Wrap(err)
	}
	third, err := uuid.NewRandomFromReader(random)
	if err != nil {
		return Identity{}, oops.Code("DEVICE_GENERATE_FAILED").With("field", "deviceId3").Wrap(err)
	}

	return Identity{
		DeviceID:  compact(first),
		DeviceID2: numeric,
		DeviceID3: compact(third),
	}, nil
}

// MustNew is New with crypto/rand that panics on failure.
func MustNew() Identity {
	id, err := New(nil)
	if err != nil {
		panic(err)
	}
	return id
}

func compact(u uuid.UUID) string {
	return strings.ReplaceAll(u.String(), "-", "")
}

func numericID(random io.Reader) (string, error) {
	var b strings.Builder
	b.Grow(len(CarrierPrefix) + numericDigits)
	b.WriteString(CarrierPrefix)
	ten := big.NewInt(10)
	for range numericDigits {
		d, err := rand.Int(random, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}
