// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WayGate Contributors

package backend_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/waygate/waygate/internal/backend"
	"github.com/waygate/waygate/internal/region"
)

// fakeBackend serves a network config document, the version meta-endpoint
// and echoes every other request.
type fakeBackend struct {
	srv *httptest.Server

	configHits  atomic.Int32
	versionHits atomic.Int32

	mu       sync.Mutex
	requests []*http.Request
	bodies   []string
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{}
	mux := http.NewServeMux()
	mux.HandleFunc("/config/network", func(w http.ResponseWriter, _ *http.Request) {
		fb.configHits.Add(1)
		inner, err := json.Marshal(map[string]any{
			"funcVer": "V053",
			"configs": map[string]any{
				"V052": map[string]any{"network": map[string]string{"gs": "https://stale.invalid"}},
				"V053": map[string]any{"network": map[string]string{
					"gs": fb.srv.URL + "/gs",
					"as": fb.srv.URL + "/as",
					"u8": fb.srv.URL + "/u8",
					"hv": fb.srv.URL + "/version/{0}/{0}",
				}},
			},
		})
		if err != nil {
			panic(err)
		}
		writeJSON(w, map[string]string{"content": string(inner)})
	})
	mux.HandleFunc("/version/", func(w http.ResponseWriter, _ *http.Request) {
		fb.versionHits.Add(1)
		writeJSON(w, map[string]string{"resVersion": "24-02-02-10-18-07-831840", "clientVersion": "2.1.41"})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		var body [512]byte
		n, _ := r.Body.Read(body[:])
		fb.mu.Lock()
		fb.requests = append(fb.requests, r)
		fb.bodies = append(fb.bodies, string(body[:n]))
		fb.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	fb.srv = httptest.NewServer(mux)
	t.Cleanup(fb.srv.Close)
	return fb
}

func (fb *fakeBackend) configURL() string {
	return fb.srv.URL + "/config/network"
}

func (fb *fakeBackend) last(t *testing.T) (*http.Request, string) {
	t.Helper()
	fb.mu.Lock()
	defer fb.mu.Unlock()
	require.NotEmpty(t, fb.requests, "no request reached the backend")
	i := len(fb.requests) - 1
	return fb.requests[i], fb.bodies[i]
}

func (fb *fakeBackend) registry(opts ...backend.RegistryOption) *backend.Registry {
	base := []backend.RegistryOption{
		backend.WithHTTPClient(fb.srv.Client()),
		backend.WithConfigURL(region.EN, fb.configURL()),
		backend.WithConfigURL(region.JP, fb.configURL()),
	}
	return backend.NewRegistry(append(base, opts...)...)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // test server
}
