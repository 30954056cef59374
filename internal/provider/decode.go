// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WayGate Contributors

package provider

import (
	"io"
	"net/http"

	"github.com/samber/oops"
	"github.com/tidwall/gjson"
)

// maxLoggedBody caps how much of a failed response is kept in error context.
const maxLoggedBody = 512

// outcome is a decoded provider response.
type outcome struct {
	raw  []byte
	json gjson.Result
}

func (o outcome) str(field string) string {
	return o.json.Get(field).String()
}

// decode turns a raw response into an outcome. The status is checked before
// the body is parsed, then the passport result code, then the required
// fields. Every failure is a coded provider error.
func decode(step string, resp *http.Response, required ...string) (outcome, error) {
	defer resp.Body.Close() //nolint:errcheck // read-only body

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return outcome{}, oops.Code(CodeMalformed).With("step", step).Wrap(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return outcome{}, oops.Code(CodeHTTPStatus).
			With("step", step).
			With("status", resp.StatusCode).
			With("body", truncate(body)).
			Errorf("%s: provider returned HTTP %d", step, resp.StatusCode)
	}

	if !gjson.ValidBytes(body) {
		return outcome{}, oops.Code(CodeMalformed).
			With("step", step).
			With("body", truncate(body)).
			Errorf("%s: response is not JSON", step)
	}
	parsed := gjson.ParseBytes(body)

	if result := parsed.Get("result"); result.Exists() && result.Int() != 0 {
		return outcome{}, oops.Code(CodeRejected).
			With("step", step).
			With("result", result.Int()).
			With("body", truncate(body)).
			Errorf("%s: provider rejected the request (result %d)", step, result.Int())
	}

	for _, field := range required {
		if v := parsed.Get(field); !v.Exists() || v.String() == "" {
			return outcome{}, oops.Code(CodeMalformed).
				With("step", step).
				With("field", field).
				Errorf("%s: response has no %s", step, field)
		}
	}

	return outcome{raw: body, json: parsed}, nil
}

func truncate(b []byte) string {
	if len(b) > maxLoggedBody {
		return string(b[:maxLoggedBody]) + "..."
	}
	return string(b)
}
