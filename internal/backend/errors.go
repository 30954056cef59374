// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WayGate Contributors

package backend

import (
	"github.com/samber/oops"

	"github.com/waygate/waygate/internal/region"
)

// Error codes returned by this package.
const (
	CodeServiceMissing = "CONFIG_SERVICE_MISSING"
	CodeFetchFailed    = "CONFIG_FETCH_FAILED"
	CodeMalformed      = "CONFIG_MALFORMED"
	CodeTransport      = "DISPATCH_TRANSPORT"
	CodeNilRegistry    = "DISPATCH_NIL_REGISTRY"
)

func errServiceMissing(r region.Region, service string) error {
	return oops.Code(CodeServiceMissing).
		With("region", string(r)).
		With("service", service).
		Errorf("service %q not configured for region %s", service, string(r))
}

func errFetchStatus(r region.Region, url string, status int) error {
	return oops.Code(CodeFetchFailed).
		With("region", string(r)).
		With("url", url).
		With("status", status).
		Errorf("config fetch returned HTTP %d", status)
}

func errMalformed(r region.Region, what string) error {
	return oops.Code(CodeMalformed).
		With("region", string(r)).
		Errorf("malformed %s", what)
}
