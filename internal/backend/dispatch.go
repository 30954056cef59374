// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WayGate Contributors

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/waygate/waygate/internal/region"
)

var tracer = otel.Tracer("waygate/backend")

// Dispatcher issues requests against named regional services.
type Dispatcher struct {
	registry *Registry
}

// NewDispatcher creates a Dispatcher resolving services through registry.
// The registry's HTTP client and retry policy are shared.
func NewDispatcher(registry *Registry) (*Dispatcher, error) {
	if registry == nil {
		return nil, oops.Code(CodeNilRegistry).Errorf("registry is required")
	}
	return &Dispatcher{registry: registry}, nil
}

// Registry returns the registry the dispatcher resolves services through.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Request holds the per-call settings assembled from RequestOptions.
type Request struct {
	Path   string
	Body   any
	Method string
	Header http.Header
	Region region.Region
}

// RequestOption configures a single Dispatch call.
type RequestOption func(*Request)

// WithPath appends path to the resolved base URL.
func WithPath(path string) RequestOption {
	return func(r *Request) { r.Path = path }
}

// WithBody sets the request body. []byte and json.RawMessage are sent as
// is; anything else is JSON encoded. A body implies POST.
func WithBody(body any) RequestOption {
	return func(r *Request) { r.Body = body }
}

// WithMethod overrides method inference.
func WithMethod(method string) RequestOption {
	return func(r *Request) { r.Method = method }
}

// WithHeader adds a caller header. Default transport headers still win on
// collision.
func WithHeader(key, value string) RequestOption {
	return func(r *Request) {
		if r.Header == nil {
			r.Header = make(http.Header)
		}
		r.Header.Add(key, value)
	}
}

// WithRegion selects the region whose endpoint table is used.
func WithRegion(rg region.Region) RequestOption {
	return func(r *Request) { r.Region = rg }
}

// method returns the explicit method, else POST when a body is present.
func (r *Request) method() string {
	if r.Method != "" {
		return r.Method
	}
	if r.Body != nil {
		return http.MethodPost
	}
	return http.MethodGet
}

// Dispatch sends a request to service and returns the raw response. The
// status code is not inspected and the caller owns the response body.
// service is either a service name from the region's endpoint table or a
// literal http(s) URL.
func (d *Dispatcher) Dispatch(ctx context.Context, service string, opts ...RequestOption) (resp *http.Response, err error) {
	req := &Request{}
	for _, opt := range opts {
		opt(req)
	}
	method := req.method()
	label := serviceLabel(service)

	ctx, span := tracer.Start(ctx, "backend.dispatch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("backend.service", label),
			attribute.String("backend.region", string(req.Region)),
			attribute.String("http.request.method", method),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
		}
		span.End()
	}()

	base, err := d.resolve(ctx, service, req.Region)
	if err != nil {
		return nil, err
	}
	url := joinPath(base, req.Path)

	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, oops.Code(CodeTransport).With("service", label).With("operation", "encode body").Wrap(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, oops.Code(CodeTransport).With("service", label).With("url", url).Wrap(err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	applyDefaultHeaders(httpReq.Header)

	return d.registry.transport.send(ctx, label, httpReq)
}

func (d *Dispatcher) resolve(ctx context.Context, service string, rg region.Region) (string, error) {
	if isLiteralURL(service) {
		return substitutePlatform(service), nil
	}
	return d.registry.Resolve(ctx, rg, service)
}

func encodeBody(body any) (io.Reader, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return bytes.NewReader(b), nil
	case json.RawMessage:
		return bytes.NewReader(b), nil
	default:
		encoded, err := json.Marshal(b)
		if err != nil {
			return nil, err //nolint:wrapcheck // wrapped by caller
		}
		return bytes.NewReader(encoded), nil
	}
}
