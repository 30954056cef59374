// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WayGate Contributors

package backend

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Transport defaults.
const (
	DefaultTimeout      = 15 * time.Second
	DefaultMaxRetries   = 2
	DefaultRetryBackoff = 200 * time.Millisecond
	DefaultLoadTimeout  = DefaultTimeout * (DefaultMaxRetries + 1)
)

// transport sends requests with the retry policy: only GET requests are
// retried, and only when no response was received at all. A response of any
// status is final.
type transport struct {
	doer       Doer
	maxRetries uint64
	backoff    time.Duration
	logger     *slog.Logger
}

func (t *transport) send(ctx context.Context, service string, req *http.Request) (*http.Response, error) {
	start := time.Now()

	var resp *http.Response
	attempt := 0
	op := func(ctx context.Context) error {
		attempt++
		r, err := t.doer.Do(req.Clone(ctx))
		if err != nil {
			if req.Method == http.MethodGet && ctx.Err() == nil {
				t.logger.DebugContext(ctx, "backend request failed",
					"service", service, "url", req.URL.String(), "attempt", attempt, "error", err)
				return retry.RetryableError(err)
			}
			return err
		}
		resp = r
		return nil
	}

	b := retry.WithMaxRetries(t.maxRetries, retry.NewExponential(t.backoff))
	err := retry.Do(ctx, b, op)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	recordRequest(service, req.Method, status, err, time.Since(start))

	if err != nil {
		return nil, oops.Code(CodeTransport).
			With("service", service).
			With("method", req.Method).
			With("url", req.URL.String()).
			With("attempts", attempt).
			Wrap(err)
	}
	return resp, nil
}
