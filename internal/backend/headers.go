// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WayGate Contributors

package backend

import (
	"net/http"
	"strings"
)

// Service names with special meaning to the dispatcher.
const (
	// ServiceGame is the game-server domain targeted by authenticated calls.
	ServiceGame = "gs"
	// ServiceU8 is the shared account/token domain.
	ServiceU8 = "u8"
	// ServiceVersion is the version-headers meta-endpoint. Its URL is
	// reloaded on every use.
	ServiceVersion = "hv"
)

// Platform substitution applied to resolved URLs.
const (
	PlatformPlaceholder = "{0}"
	Platform            = "Android"
)

// Default transport headers. They are applied after caller headers and win
// on collision.
var defaultHeaders = [...][2]string{
	{"Content-Type", "application/json"},
	{"X-Unity-Version", "2017.4.39f1"},
	{"User-Agent", "Dalvik/2.1.0 (Linux; U; Android 11; KB2000 Build/RP1A.201005.001)"},
	{"Connection", "Keep-Alive"},
}

func applyDefaultHeaders(h http.Header) {
	for _, kv := range defaultHeaders {
		h.Set(kv[0], kv[1])
	}
}

// substitutePlatform replaces the first platform placeholder only.
func substitutePlatform(url string) string {
	return strings.Replace(url, PlatformPlaceholder, Platform, 1)
}

func isLiteralURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// ServiceLiteral is the metric and span label for requests sent to a
// literal URL rather than a named service.
const ServiceLiteral = "literal"

// serviceLabel keeps metric label values bounded to service names.
func serviceLabel(service string) string {
	if isLiteralURL(service) {
		return ServiceLiteral
	}
	return service
}

func joinPath(base, path string) string {
	if path == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
