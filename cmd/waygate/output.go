// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WayGate Contributors

package main

import (
	"io"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/waygate/waygate/internal/provider"
)

// sessionReport is printed after a successful login.
type sessionReport struct {
	Region     string `yaml:"region"`
	ChannelUID string `yaml:"channel_uid"`
	Token      string `yaml:"token"`
	AccountID  string `yaml:"account_id"`
	State      string `yaml:"state"`
}

func reportFor(p provider.AuthProvider, ct provider.ChannelToken) sessionReport {
	return sessionReport{
		Region:     string(p.Region()),
		ChannelUID: ct.UID,
		Token:      ct.Token,
		AccountID:  p.Session().AccountID(),
		State:      p.State().String(),
	}
}

// writeYAML encodes v to w as a YAML document.
func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return oops.Code("OUTPUT_ENCODE_FAILED").Wrap(err)
	}
	if err := enc.Close(); err != nil {
		return oops.Code("OUTPUT_ENCODE_FAILED").Wrap(err)
	}
	return nil
}
