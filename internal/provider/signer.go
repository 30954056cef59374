// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WayGate Contributors

package provider

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // the u8 service verifies HMAC-SHA1
	"encoding/hex"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/samber/oops"
)

// Field is one key/value pair of a signed payload.
type Field struct {
	Key   string
	Value string
}

// PayloadSigner produces the sign field of a u8 token request from its
// fields in wire order.
type PayloadSigner interface {
	Sign(fields []Field) string
}

// NopPayloadSigner leaves the payload unsigned.
type NopPayloadSigner struct{}

// Sign returns the empty string, which omits the sign field.
func (NopPayloadSigner) Sign([]Field) string { return "" }

// HMACSigner signs the "&"-joined key=value list with HMAC-SHA1.
type HMACSigner struct {
	key []byte
}

// NewHMACSigner returns a signer using key. An empty key is rejected.
func NewHMACSigner(key string) (*HMACSigner, error) {
	if key == "" {
		return nil, oops.Code(CodeSignerConfig).Errorf("signing key is empty")
	}
	return &HMACSigner{key: []byte(key)}, nil
}

// Sign returns the lowercase hex digest.
func (s *HMACSigner) Sign(fields []Field) string {
	mac := hmac.New(sha1.New, s.key)
	mac.Write([]byte(canonical(fields))) //nolint:errcheck // hash writes never fail
	return hex.EncodeToString(mac.Sum(nil))
}

func canonical(fields []Field) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.Key + "=" + f.Value
	}
	return strings.Join(parts, "&")
}

// SigningEnv holds signing secrets read from the environment.
type SigningEnv struct {
	U8Key string `env:"WAYGATE_U8_SIGNING_KEY"`
}

// SignerFromEnv builds the payload signer from the environment. With no
// key set it returns NopPayloadSigner.
func SignerFromEnv() (PayloadSigner, error) {
	var cfg SigningEnv
	if err := env.Parse(&cfg); err != nil {
		return nil, oops.Code(CodeSignerConfig).Wrap(err)
	}
	if cfg.U8Key == "" {
		return NopPayloadSigner{}, nil
	}
	return NewHMACSigner(cfg.U8Key)
}
