// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WayGate Contributors

package api

import (
	"net/http"

	"github.com/waygate/waygate/internal/backend"
	"github.com/waygate/waygate/internal/provider"
	"github.com/waygate/waygate/internal/region"
	"github.com/waygate/waygate/pkg/errutil"
)

// Public error codes. These are stable; internal codes are not exposed.
const (
	PublicInvalidRequest      = "invalid_request"
	PublicUnsupportedRegion   = "unsupported_region"
	PublicNotImplemented      = "not_implemented"
	PublicProviderRejected    = "provider_rejected"
	PublicUpstreamUnavailable = "upstream_unavailable"
	PublicInternal            = "internal"
)

// CodeBadBody is the internal code for an undecodable request body.
const CodeBadBody = "VALIDATION_BAD_BODY"

type publicError struct {
	status  int
	code    string
	message string
}

var (
	errInvalidRequest      = publicError{http.StatusBadRequest, PublicInvalidRequest, "the request is missing a field or is malformed"}
	errUnsupportedRegion   = publicError{http.StatusBadRequest, PublicUnsupportedRegion, "the region is unknown or not supported"}
	errNotImplemented      = publicError{http.StatusNotImplemented, PublicNotImplemented, "login is not implemented for this region"}
	errProviderRejected    = publicError{http.StatusBadGateway, PublicProviderRejected, "the identity provider rejected the request"}
	errUpstreamUnavailable = publicError{http.StatusBadGateway, PublicUpstreamUnavailable, "an upstream service failed or returned an unexpected response"}
	errInternal            = publicError{http.StatusInternalServerError, PublicInternal, "internal error"}
)

var publicByCode = map[string]publicError{
	provider.CodeMissingEmail: errInvalidRequest,
	provider.CodeMissingCode:  errInvalidRequest,
	provider.CodeMissingToken: errInvalidRequest,
	CodeBadBody:               errInvalidRequest,

	region.CodeNoRegion:           errUnsupportedRegion,
	region.CodeUnknownRegion:      errUnsupportedRegion,
	region.CodeUnsupportedChannel: errUnsupportedRegion,

	provider.CodeNotImplemented: errNotImplemented,
	provider.CodeRejected:       errProviderRejected,

	provider.CodeHTTPStatus:     errUpstreamUnavailable,
	provider.CodeMalformed:      errUpstreamUnavailable,
	provider.CodeVersionMissing: errUpstreamUnavailable,
	backend.CodeTransport:       errUpstreamUnavailable,
	backend.CodeFetchFailed:     errUpstreamUnavailable,
	backend.CodeMalformed:       errUpstreamUnavailable,
	backend.CodeServiceMissing:  errUpstreamUnavailable,
}

// classify maps err to its public form. Unknown codes are internal errors.
func classify(err error) publicError {
	if pe, ok := publicByCode[errutil.Code(err)]; ok {
		return pe
	}
	return errInternal
}
