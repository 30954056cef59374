// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WayGate Contributors

package backend

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"

	"github.com/waygate/waygate/internal/region"
)

// VersionInfo is the resource/client version pair required when
// establishing a session secret.
type VersionInfo struct {
	ResVersion    string `json:"resVersion" yaml:"res_version"`
	ClientVersion string `json:"clientVersion" yaml:"client_version"`
}

// Complete reports whether both versions are known.
func (v VersionInfo) Complete() bool {
	return v.ResVersion != "" && v.ClientVersion != ""
}

// Registry holds the per-region endpoint tables and version info.
type Registry struct {
	transport   *transport
	configURLs  map[region.Region]string
	overrides   map[region.Region]map[string]string
	loadTimeout time.Duration

	mu        sync.RWMutex
	endpoints map[region.Region]map[string]string
	versions  map[region.Region]VersionInfo

	loads singleflight.Group
}

// RegistryOption configures a Registry during construction.
type RegistryOption func(*Registry)

// WithHTTPClient sets the client used for every outbound request made by the
// registry and by dispatchers built on it.
func WithHTTPClient(doer Doer) RegistryOption {
	return func(r *Registry) {
		if doer != nil {
			r.transport.doer = doer
		}
	}
}

// WithMaxRetries bounds transport-level retries of GET requests.
// Zero disables retries.
func WithMaxRetries(n uint64) RegistryOption {
	return func(r *Registry) {
		r.transport.maxRetries = n
	}
}

// WithRetryBackoff sets the base delay of the exponential retry backoff.
func WithRetryBackoff(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.transport.backoff = d
		}
	}
}

// WithLoadTimeout bounds a shared configuration load. A load outlives the
// caller that started it, so it runs under this deadline instead of the
// caller's context.
func WithLoadTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.loadTimeout = d
		}
	}
}

// WithConfigURL overrides the remote configuration document URL of one region.
func WithConfigURL(rg region.Region, url string) RegistryOption {
	return func(r *Registry) {
		r.configURLs[rg] = url
	}
}

// WithEndpointOverride pins service in region to url. Overrides win over
// loaded entries and do not suppress loading of the rest of the table.
func WithEndpointOverride(rg region.Region, service, url string) RegistryOption {
	return func(r *Registry) {
		if r.overrides[rg] == nil {
			r.overrides[rg] = make(map[string]string)
		}
		r.overrides[rg][service] = url
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.transport.logger = logger
		}
	}
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		transport: &transport{
			doer:       &http.Client{Timeout: DefaultTimeout},
			maxRetries: DefaultMaxRetries,
			backoff:    DefaultRetryBackoff,
			logger:     slog.Default(),
		},
		configURLs:  make(map[region.Region]string),
		overrides:   make(map[region.Region]map[string]string),
		loadTimeout: DefaultLoadTimeout,
		endpoints:   make(map[region.Region]map[string]string),
		versions:    make(map[region.Region]VersionInfo),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) configURL(rg region.Region) string {
	if u, ok := r.configURLs[rg]; ok {
		return u
	}
	return rg.NetworkConfigURL()
}

// LoadNetworkConfig fetches the region's remote configuration document and
// merges the active network table into the endpoint table. Concurrent calls
// for the same region share one fetch.
func (r *Registry) LoadNetworkConfig(ctx context.Context, rg region.Region) error {
	if err := rg.Validate(); err != nil {
		return err
	}
	err := r.shared(ctx, "network:"+string(rg), rg, r.loadNetwork)
	recordLoad("network", rg, err)
	return err
}

// shared runs load once for all concurrent callers of key. The load keeps
// the first caller's context values but not its cancellation; each caller
// stops waiting when its own context ends.
func (r *Registry) shared(ctx context.Context, key string, rg region.Region, load func(context.Context, region.Region) error) error {
	results := r.loads.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.loadTimeout)
		defer cancel()
		return nil, load(loadCtx, rg)
	})
	select {
	case res := <-results:
		return res.Err //nolint:wrapcheck // already coded by load
	case <-ctx.Done():
		return oops.Code(CodeFetchFailed).
			With("region", string(rg)).
			With("load", key).
			Wrap(context.Cause(ctx))
	}
}

// LoadAllNetworkConfig loads every known region in order, stopping at the
// first failure.
func (r *Registry) LoadAllNetworkConfig(ctx context.Context) error {
	for _, rg := range region.All() {
		if err := r.LoadNetworkConfig(ctx, rg); err != nil {
			return err
		}
	}
	return nil
}

// LoadVersionConfig fetches the region's version headers through the
// version meta-service and merges them into the version table.
func (r *Registry) LoadVersionConfig(ctx context.Context, rg region.Region) error {
	if err := rg.Validate(); err != nil {
		return err
	}
	err := r.shared(ctx, "version:"+string(rg), rg, r.loadVersion)
	recordLoad("version", rg, err)
	return err
}

// LoadAllVersionConfig loads version info for every known region in order,
// stopping at the first failure.
func (r *Registry) LoadAllVersionConfig(ctx context.Context) error {
	for _, rg := range region.All() {
		if err := r.LoadVersionConfig(ctx, rg); err != nil {
			return err
		}
	}
	return nil
}

// Resolve returns the base URL of service in region, with the platform
// placeholder substituted. The network config is loaded first when the
// region has no table yet, and always for the version meta-service.
func (r *Registry) Resolve(ctx context.Context, rg region.Region, service string) (string, error) {
	if err := rg.Validate(); err != nil {
		return "", err
	}
	if !r.HasNetwork(rg) || service == ServiceVersion {
		if err := r.LoadNetworkConfig(ctx, rg); err != nil {
			return "", err
		}
	}
	u, ok := r.Endpoint(rg, service)
	if !ok {
		return "", errServiceMissing(rg, service)
	}
	return substitutePlatform(u), nil
}

// Endpoint returns the raw configured URL of service in region.
func (r *Registry) Endpoint(rg region.Region, service string) (string, bool) {
	if u, ok := r.overrides[rg][service]; ok {
		return u, true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.endpoints[rg][service]
	return u, ok
}

// Endpoints returns a copy of the region's endpoint table.
func (r *Registry) Endpoints(rg region.Region) map[string]string {
	r.mu.RLock()
	table := maps.Clone(r.endpoints[rg])
	r.mu.RUnlock()
	if pinned := r.overrides[rg]; len(pinned) > 0 {
		if table == nil {
			table = make(map[string]string, len(pinned))
		}
		maps.Copy(table, pinned)
	}
	return table
}

// HasNetwork reports whether the region's endpoint table has any entry.
func (r *Registry) HasNetwork(rg region.Region) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.endpoints[rg]) > 0
}

// Version returns the region's version info, if loaded.
func (r *Registry) Version(rg region.Region) (VersionInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.versions[rg]
	return v, ok
}

// SetEndpoints merges entries into the region's endpoint table.
func (r *Registry) SetEndpoints(rg region.Region, entries map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mergeEndpointsLocked(rg, entries)
}

// SetVersion merges the non-empty fields of v into the region's version info.
func (r *Registry) SetVersion(rg region.Region, v VersionInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mergeVersionLocked(rg, v)
}

func (r *Registry) mergeEndpointsLocked(rg region.Region, entries map[string]string) {
	table, ok := r.endpoints[rg]
	if !ok {
		table = make(map[string]string, len(entries))
		r.endpoints[rg] = table
	}
	maps.Copy(table, entries)
}

func (r *Registry) mergeVersionLocked(rg region.Region, v VersionInfo) {
	cur := r.versions[rg]
	if v.ResVersion != "" {
		cur.ResVersion = v.ResVersion
	}
	if v.ClientVersion != "" {
		cur.ClientVersion = v.ClientVersion
	}
	r.versions[rg] = cur
}

func (r *Registry) loadNetwork(ctx context.Context, rg region.Region) error {
	url := r.configURL(rg)
	body, err := r.get(ctx, rg, "network_config", url)
	if err != nil {
		return err
	}

	content := gjson.GetBytes(body, "content")
	if content.Type != gjson.String || !gjson.Valid(content.Str) {
		return errMalformed(rg, "network config envelope")
	}
	doc := content.Str

	funcVer := gjson.Get(doc, "funcVer")
	if !funcVer.Exists() || funcVer.String() == "" {
		return errMalformed(rg, "network config: no funcVer")
	}
	network := gjson.Get(doc, "configs."+escapePath(funcVer.String())+".network")
	if !network.IsObject() {
		return oops.Code(CodeMalformed).
			With("region", string(rg)).
			With("func_ver", funcVer.String()).
			Errorf("malformed network config: no network table for active version")
	}

	entries := make(map[string]string)
	network.ForEach(func(key, value gjson.Result) bool {
		if value.Type == gjson.String {
			entries[key.String()] = value.Str
		}
		return true
	})

	r.SetEndpoints(rg, entries)
	r.transport.logger.DebugContext(ctx, "network config loaded",
		"region", string(rg), "func_ver", funcVer.String(), "services", len(entries))
	return nil
}

func (r *Registry) loadVersion(ctx context.Context, rg region.Region) error {
	url, err := r.Resolve(ctx, rg, ServiceVersion)
	if err != nil {
		return err
	}
	body, err := r.get(ctx, rg, ServiceVersion, url)
	if err != nil {
		return err
	}
	if !gjson.ValidBytes(body) {
		return errMalformed(rg, "version config")
	}

	fields := gjson.GetManyBytes(body, "resVersion", "clientVersion")
	v := VersionInfo{ResVersion: fields[0].String(), ClientVersion: fields[1].String()}
	if v == (VersionInfo{}) {
		return errMalformed(rg, "version config: no versions")
	}

	r.SetVersion(rg, v)
	r.transport.logger.DebugContext(ctx, "version config loaded",
		"region", string(rg), "res_version", v.ResVersion, "client_version", v.ClientVersion)
	return nil
}

// get fetches a configuration document, rejecting non-2xx responses.
func (r *Registry) get(ctx context.Context, rg region.Region, service, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, oops.Code(CodeFetchFailed).With("region", string(rg)).With("url", url).Wrap(err)
	}
	applyDefaultHeaders(req.Header)

	resp, err := r.transport.send(ctx, service, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, oops.Code(CodeFetchFailed).With("region", string(rg)).With("url", url).Wrap(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errFetchStatus(rg, url, resp.StatusCode)
	}
	return body, nil
}

// escapePath escapes gjson path metacharacters in a single key.
func escapePath(key string) string {
	var b strings.Builder
	for _, c := range key {
		switch c {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}

func recordLoad(kind string, rg region.Region, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	ConfigLoads.WithLabelValues(kind, string(rg), status).Inc()
}
