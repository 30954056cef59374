// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WayGate Contributors

package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/waygate/waygate/internal/provider"
	"github.com/waygate/waygate/internal/region"
	"github.com/waygate/waygate/internal/xdg"
)

const credentialsFile = "credentials.yaml"

// savedToken is a channel token persisted between runs.
type savedToken struct {
	ChannelUID string `yaml:"channel_uid"`
	Token      string `yaml:"token"`
}

// credentialStore keeps one channel token per region in the XDG state dir.
type credentialStore struct {
	path string
}

func defaultCredentialStore() (*credentialStore, error) {
	dir, err := xdg.StateDir()
	if err != nil {
		return nil, err
	}
	return &credentialStore{path: filepath.Join(dir, credentialsFile)}, nil
}

func (s *credentialStore) load() (map[string]savedToken, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]savedToken{}, nil
	}
	if err != nil {
		return nil, oops.Code("CREDENTIALS_READ_FAILED").With("path", s.path).Wrap(err)
	}
	saved := map[string]savedToken{}
	if err := yaml.Unmarshal(data, &saved); err != nil {
		return nil, oops.Code("CREDENTIALS_READ_FAILED").With("path", s.path).Wrap(err)
	}
	return saved, nil
}

// Get returns the saved token for rg.
func (s *credentialStore) Get(rg region.Region) (provider.ChannelToken, error) {
	saved, err := s.load()
	if err != nil {
		return provider.ChannelToken{}, err
	}
	tok, ok := saved[string(rg)]
	if !ok {
		return provider.ChannelToken{}, oops.Code(provider.CodeMissingToken).
			With("region", rg).
			With("path", s.path).
			Errorf("no saved channel token for region %s", rg)
	}
	return provider.ChannelToken{UID: tok.ChannelUID, Token: tok.Token}, nil
}

// Put saves ct for rg, keeping other regions' tokens.
func (s *credentialStore) Put(rg region.Region, ct provider.ChannelToken) error {
	saved, err := s.load()
	if err != nil {
		return err
	}
	saved[string(rg)] = savedToken{ChannelUID: ct.UID, Token: ct.Token}

	data, err := yaml.Marshal(saved)
	if err != nil {
		return oops.Code("CREDENTIALS_WRITE_FAILED").Wrap(err)
	}
	if err := xdg.EnsureDir(filepath.Dir(s.path)); err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return oops.Code("CREDENTIALS_WRITE_FAILED").With("path", s.path).Wrap(err)
	}
	return nil
}
