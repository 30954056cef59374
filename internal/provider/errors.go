// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WayGate Contributors

package provider

import "github.com/samber/oops"

// Error codes returned by providers.
const (
	CodeHTTPStatus     = "PROVIDER_HTTP_STATUS"
	CodeMalformed      = "PROVIDER_MALFORMED"
	CodeRejected       = "PROVIDER_REJECTED"
	CodeNotImplemented = "PROVIDER_NOT_IMPLEMENTED"
	CodeVersionMissing = "CONFIG_VERSION_MISSING"
	CodeMissingEmail   = "VALIDATION_MISSING_EMAIL"
	CodeMissingCode    = "VALIDATION_MISSING_CODE"
	CodeMissingToken   = "VALIDATION_MISSING_TOKEN"
	CodeNilDependency  = "PROVIDER_NIL_DEPENDENCY"
	CodeSignerConfig   = "CONFIG_SIGNER_INVALID"
)

func errNotImplemented(family, op string) error {
	return oops.Code(CodeNotImplemented).
		With("family", family).
		With("operation", op).
		Errorf("%s is not implemented for provider family %s", op, family)
}

func errMissing(code, field string) error {
	return oops.Code(code).With("field", field).Errorf("%s is required", field)
}
