// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WayGate Contributors

package provider_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/waygate/waygate/internal/backend"
	"github.com/waygate/waygate/internal/device"
	"github.com/waygate/waygate/internal/provider"
	"github.com/waygate/waygate/internal/region"
)

// call is one request observed by the fake upstream.
type call struct {
	Path string
	Body map[string]any
}

// upstream fakes the passport, u8 and gs services behind one server.
// Responses are keyed by path; unknown paths return 404.
type upstream struct {
	srv *httptest.Server

	mu        sync.Mutex
	calls     []call
	responses map[string]response
}

type response struct {
	status int
	body   any
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{responses: map[string]response{
		"/passport" + provider.PathAuthRequest: {http.StatusOK, map[string]any{"result": 0}},
		"/passport" + provider.PathAuthSubmit:  {http.StatusOK, map[string]any{"result": 0, "yostar_uid": "ys-1", "yostar_token": "ys-token"}},
		"/passport" + provider.PathCreateLogin: {http.StatusOK, map[string]any{"result": 0, "uid": "chan-1", "token": "chan-token"}},
		"/passport" + provider.PathUserLogin:   {http.StatusOK, map[string]any{"result": 0, "accessToken": "access-1"}},
		"/passport" + provider.PathGuestCreate: {http.StatusOK, map[string]any{"result": 0, "uid": "guest-1", "token": "guest-token"}},
		"/u8/" + provider.PathU8Token:          {http.StatusOK, map[string]any{"result": 0, "uid": "game-42", "token": "u8-token"}},
		"/gs/" + provider.PathGameLogin:        {http.StatusOK, map[string]any{"result": 0, "secret": "s3cr3t", "uid": "game-42"}},
	}}
	u.srv = httptest.NewServer(http.HandlerFunc(u.serve))
	t.Cleanup(u.srv.Close)

	network, err := json.Marshal(map[string]any{
		"funcVer": "V1",
		"configs": map[string]any{"V1": map[string]any{"network": map[string]string{
			backend.ServiceGame:    u.srv.URL + "/gs",
			backend.ServiceU8:      u.srv.URL + "/u8",
			backend.ServiceVersion: u.srv.URL + "/hv/{0}/version",
		}}},
	})
	require.NoError(t, err)
	u.responses["/config"] = response{http.StatusOK, map[string]string{"content": string(network)}}
	u.responses["/hv/Android/version"] = response{http.StatusOK, map[string]string{"resVersion": "res-9", "clientVersion": "9.9.9"}}
	return u
}

func (u *upstream) serve(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)

	u.mu.Lock()
	u.calls = append(u.calls, call{Path: r.URL.Path, Body: body})
	resp, ok := u.responses[r.URL.Path]
	u.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.status)
	if s, isString := resp.body.(string); isString {
		_, _ = io.WriteString(w, s)
		return
	}
	_ = json.NewEncoder(w).Encode(resp.body)
}

func (u *upstream) respond(path string, status int, body any) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.responses[path] = response{status, body}
}

func (u *upstream) paths() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]string, len(u.calls))
	for i, c := range u.calls {
		out[i] = c.Path
	}
	return out
}

func (u *upstream) bodyFor(t *testing.T, path string) map[string]any {
	t.Helper()
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, c := range u.calls {
		if c.Path == path {
			return c.Body
		}
	}
	require.Failf(t, "no request", "path %s was never called", path)
	return nil
}

// registry returns a registry pre-seeded with EN endpoints and versions so
// the handshake never reaches the public config hosts.
func (u *upstream) registry(withVersion bool) *backend.Registry {
	reg := backend.NewRegistry(
		backend.WithHTTPClient(u.srv.Client()),
		backend.WithConfigURL(region.EN, u.srv.URL+"/config"),
	)
	reg.SetEndpoints(region.EN, map[string]string{
		backend.ServiceGame: u.srv.URL + "/gs",
		backend.ServiceU8:   u.srv.URL + "/u8",
	})
	if withVersion {
		reg.SetVersion(region.EN, backend.VersionInfo{ResVersion: "res-1", ClientVersion: "2.1.41"})
	}
	return reg
}

func (u *upstream) deps(t *testing.T, reg *backend.Registry) provider.Deps {
	t.Helper()
	d, err := backend.NewDispatcher(reg)
	require.NoError(t, err)
	id := device.Identity{DeviceID: "dev1", DeviceID2: "860000000000001", DeviceID3: "dev3"}
	return provider.Deps{
		Dispatcher:  d,
		Versions:    reg,
		Device:      &id,
		PassportURL: u.srv.URL + "/passport",
	}
}
