// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WayGate Contributors

package backend_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waygate/waygate/internal/backend"
	"github.com/waygate/waygate/internal/region"
	"github.com/waygate/waygate/pkg/errutil"
)

func TestLoadNetworkConfig_PopulatesActiveVersionTable(t *testing.T) {
	fb := newFakeBackend(t)
	reg := fb.registry()

	require.False(t, reg.HasNetwork(region.EN))
	require.NoError(t, reg.LoadNetworkConfig(context.Background(), region.EN))

	gs, ok := reg.Endpoint(region.EN, backend.ServiceGame)
	require.True(t, ok)
	assert.Equal(t, fb.srv.URL+"/gs", gs, "must select the funcVer table, not a stale one")

	_, ok = reg.Endpoint(region.EN, backend.ServiceU8)
	assert.True(t, ok)
	assert.Len(t, reg.Endpoints(region.EN), 4)
}

func TestLoadNetworkConfig_IsNotMemoized(t *testing.T) {
	fb := newFakeBackend(t)
	reg := fb.registry()
	ctx := context.Background()

	require.NoError(t, reg.LoadNetworkConfig(ctx, region.EN))
	require.NoError(t, reg.LoadNetworkConfig(ctx, region.EN))

	assert.Equal(t, int32(2), fb.configHits.Load())
}

func TestLoadNetworkConfig_MergesAdditively(t *testing.T) {
	fb := newFakeBackend(t)
	reg := fb.registry()
	reg.SetEndpoints(region.EN, map[string]string{"extra": "https://extra.invalid", "gs": "https://old.invalid"})

	require.NoError(t, reg.LoadNetworkConfig(context.Background(), region.EN))

	extra, ok := reg.Endpoint(region.EN, "extra")
	require.True(t, ok, "merge must keep entries absent from the document")
	assert.Equal(t, "https://extra.invalid", extra)
	gs, _ := reg.Endpoint(region.EN, backend.ServiceGame)
	assert.Equal(t, fb.srv.URL+"/gs", gs)
}

func TestLoadNetworkConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		code    string
	}{
		{
			name: "non-2xx status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			code: backend.CodeFetchFailed,
		},
		{
			name: "content is not a string",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, map[string]any{"content": map[string]string{}})
			},
			code: backend.CodeMalformed,
		},
		{
			name: "content is not JSON",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, map[string]string{"content": "{not json"})
			},
			code: backend.CodeMalformed,
		},
		{
			name: "active version has no network table",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, map[string]string{"content": `{"funcVer":"V9","configs":{"V8":{"network":{}}}}`})
			},
			code: backend.CodeMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			reg := backend.NewRegistry(
				backend.WithHTTPClient(srv.Client()),
				backend.WithConfigURL(region.EN, srv.URL),
			)

			err := reg.LoadNetworkConfig(context.Background(), region.EN)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.code)
			assert.False(t, reg.HasNetwork(region.EN))
		})
	}
}

func TestLoadNetworkConfig_RejectsUnknownRegion(t *testing.T) {
	reg := backend.NewRegistry()

	err := reg.LoadNetworkConfig(context.Background(), region.Region("atlantis"))
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, region.CodeUnknownRegion)
}

func TestLoadNetworkConfig_FuncVerWithDots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]string{
			"content": `{"funcVer":"v2.1","configs":{"v2.1":{"network":{"gs":"https://gs.invalid","u8":"https://u8.invalid"}}}}`,
		})
	}))
	defer srv.Close()
	reg := backend.NewRegistry(backend.WithHTTPClient(srv.Client()), backend.WithConfigURL(region.KR, srv.URL))

	require.NoError(t, reg.LoadNetworkConfig(context.Background(), region.KR))

	gs, ok := reg.Endpoint(region.KR, backend.ServiceGame)
	require.True(t, ok)
	assert.Equal(t, "https://gs.invalid", gs)
}

func TestLoadAllNetworkConfig_VisitsEveryRegion(t *testing.T) {
	fb := newFakeBackend(t)
	opts := []backend.RegistryOption{backend.WithHTTPClient(fb.srv.Client())}
	for _, rg := range region.All() {
		opts = append(opts, backend.WithConfigURL(rg, fb.configURL()))
	}
	reg := backend.NewRegistry(opts...)

	require.NoError(t, reg.LoadAllNetworkConfig(context.Background()))

	for _, rg := range region.All() {
		_, ok := reg.Endpoint(rg, backend.ServiceGame)
		assert.True(t, ok, "region %s missing gs", rg)
		_, ok = reg.Endpoint(rg, backend.ServiceU8)
		assert.True(t, ok, "region %s missing u8", rg)
	}
	assert.Equal(t, int32(len(region.All())), fb.configHits.Load())
}

func TestLoadVersionConfig(t *testing.T) {
	fb := newFakeBackend(t)
	reg := fb.registry()
	ctx := context.Background()

	_, ok := reg.Version(region.EN)
	require.False(t, ok)

	require.NoError(t, reg.LoadVersionConfig(ctx, region.EN))

	v, ok := reg.Version(region.EN)
	require.True(t, ok)
	assert.Equal(t, "24-02-02-10-18-07-831840", v.ResVersion)
	assert.Equal(t, "2.1.41", v.ClientVersion)
	assert.True(t, v.Complete())

	// The version meta-service always refreshes the network table first.
	require.NoError(t, reg.LoadVersionConfig(ctx, region.EN))
	assert.Equal(t, int32(2), fb.configHits.Load())
	assert.Equal(t, int32(2), fb.versionHits.Load())
}

func TestLoadAllVersionConfig_StopsAtFirstFailure(t *testing.T) {
	fb := newFakeBackend(t)
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()
	reg := fb.registry(backend.WithConfigURL(region.CN, down.URL)) // CN comes first and fails

	err := reg.LoadAllVersionConfig(context.Background())
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, backend.CodeFetchFailed)
	assert.Equal(t, int32(0), fb.versionHits.Load())
	assert.Equal(t, int32(0), fb.configHits.Load())
}

func TestSetVersion_MergesNonEmptyFields(t *testing.T) {
	reg := backend.NewRegistry()
	reg.SetVersion(region.JP, backend.VersionInfo{ResVersion: "r1", ClientVersion: "c1"})
	reg.SetVersion(region.JP, backend.VersionInfo{ClientVersion: "c2"})

	v, ok := reg.Version(region.JP)
	require.True(t, ok)
	assert.Equal(t, backend.VersionInfo{ResVersion: "r1", ClientVersion: "c2"}, v)
}

func TestLoadNetworkConfig_ConcurrentLoadsSameRegion(t *testing.T) {
	fb := newFakeBackend(t)
	reg := fb.registry()
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- reg.LoadNetworkConfig(ctx, region.EN)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, fb.configHits.Load(), int32(workers))
	assert.Len(t, reg.Endpoints(region.EN), 4)
}

func TestEndpoints_ReturnsCopy(t *testing.T) {
	reg := backend.NewRegistry()
	reg.SetEndpoints(region.EN, map[string]string{"gs": "https://gs.invalid"})

	table := reg.Endpoints(region.EN)
	table["gs"] = "https://tampered.invalid"

	gs, _ := reg.Endpoint(region.EN, "gs")
	assert.Equal(t, "https://gs.invalid", gs)
}

func TestEndpointOverride_WinsWithoutSuppressingLoad(t *testing.T) {
	fb := newFakeBackend(t)
	reg := fb.registry(backend.WithEndpointOverride(region.EN, backend.ServiceGame, "https://pinned.invalid"))

	gs, err := reg.Resolve(context.Background(), region.EN, backend.ServiceGame)
	require.NoError(t, err)
	assert.Equal(t, "https://pinned.invalid", gs)
	assert.Equal(t, int32(1), fb.configHits.Load(), "the rest of the table still loads")

	u8, ok := reg.Endpoint(region.EN, backend.ServiceU8)
	require.True(t, ok)
	assert.Equal(t, fb.srv.URL+"/u8", u8)
	assert.Equal(t, "https://pinned.invalid", reg.Endpoints(region.EN)[backend.ServiceGame])
}

func TestLoadNetworkConfig_CancelledCallerDoesNotFailOthers(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var hits atomic.Int32
	var once sync.Once
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		once.Do(func() { close(entered) })
		<-release
		inner := `{"funcVer":"V1","configs":{"V1":{"network":{"gs":"https://gs.invalid"}}}}`
		writeJSON(w, map[string]string{"content": inner})
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() {
		select {
		case <-release:
		default:
			close(release)
		}
	})

	reg := backend.NewRegistry(
		backend.WithHTTPClient(srv.Client()),
		backend.WithConfigURL(region.EN, srv.URL),
	)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() { errA <- reg.LoadNetworkConfig(ctxA, region.EN) }()
	<-entered

	errB := make(chan error, 1)
	go func() { errB <- reg.LoadNetworkConfig(context.Background(), region.EN) }()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	err := <-errA
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	require.NoError(t, <-errB, "a live caller must not inherit another caller's cancellation")
	gs, ok := reg.Endpoint(region.EN, backend.ServiceGame)
	require.True(t, ok)
	assert.Equal(t, "https://gs.invalid", gs)
	assert.Equal(t, int32(1), hits.Load(), "the second caller joins the in-flight load")
}

func TestLoadNetworkConfig_LoadTimeoutBoundsSharedLoad(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	reg := backend.NewRegistry(
		backend.WithHTTPClient(srv.Client()),
		backend.WithConfigURL(region.EN, srv.URL),
		backend.WithMaxRetries(0),
		backend.WithLoadTimeout(50*time.Millisecond),
	)

	err := reg.LoadNetworkConfig(context.Background(), region.EN)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, backend.CodeTransport)
}
