// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WayGate Contributors

// Package api exposes the login handshake over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/waygate/waygate/internal/observability"
	"github.com/waygate/waygate/internal/provider"
	"github.com/waygate/waygate/internal/region"
	"github.com/waygate/waygate/pkg/errutil"
)

var tracer = otel.Tracer("waygate/api")

// HeaderRequestID carries the per-request ULID.
const HeaderRequestID = "X-Request-ID"

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// ProviderFactory creates a fresh provider for one handshake.
type ProviderFactory func(rg region.Region) (provider.AuthProvider, error)

// Server routes API requests to providers.
type Server struct {
	router        *mux.Router
	newProvider   ProviderFactory
	defaultRegion region.Region
	logger        *slog.Logger
	metrics       *observability.Metrics
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records per-route request metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithDefaultRegion sets the region used when a request names none.
func WithDefaultRegion(rg region.Region) Option {
	return func(s *Server) { s.defaultRegion = rg }
}

// NewServer creates the API server.
func NewServer(factory ProviderFactory, opts ...Option) (*Server, error) {
	if factory == nil {
		return nil, oops.Code("API_NIL_FACTORY").Errorf("provider factory is required")
	}
	s := &Server{
		newProvider:   factory,
		defaultRegion: region.EN,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := mux.NewRouter()
	r.Use(s.requestID, s.instrument)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/v1/auth/code", s.handleCode).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/guest", s.handleGuest).Methods(http.MethodPost)
	s.router = r
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type codeRequest struct {
	Email  string `json:"email"`
	Region string `json:"region"`
}

type loginRequest struct {
	Email  string `json:"email"`
	Code   string `json:"code"`
	Region string `json:"region"`
}

type guestRequest struct {
	Region string `json:"region"`
}

type tokenResponse struct {
	ChannelUID string `json:"channelUid"`
	Token      string `json:"token"`
}

type errorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("ok\n"))
}

func (s *Server) handleCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Email == "" {
		s.fail(w, r, oops.Code(provider.CodeMissingEmail).With("field", "email").Errorf("email is required"))
		return
	}
	p, err := s.provider(req.Region)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	raw, err := p.RequestCode(r.Context(), req.Email)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // client may disconnect
	w.Write(raw)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Email == "" {
		s.fail(w, r, oops.Code(provider.CodeMissingEmail).With("field", "email").Errorf("email is required"))
		return
	}
	if req.Code == "" {
		s.fail(w, r, oops.Code(provider.CodeMissingCode).With("field", "code").Errorf("code is required"))
		return
	}
	p, err := s.provider(req.Region)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ct, err := p.LoginWithCode(r.Context(), req.Email, req.Code)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.InfoContext(r.Context(), "login complete",
		"region", string(p.Region()),
		"account_id", p.Session().AccountID(),
	)
	writeJSON(w, http.StatusOK, tokenResponse{ChannelUID: ct.UID, Token: ct.Token})
}

func (s *Server) handleGuest(w http.ResponseWriter, r *http.Request) {
	var req guestRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.provider(req.Region)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ct, err := p.LoginAsGuest(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{ChannelUID: ct.UID, Token: ct.Token})
}

func (s *Server) provider(name string) (provider.AuthProvider, error) {
	rg := s.defaultRegion
	if name != "" {
		parsed, err := region.Parse(name)
		if err != nil {
			return nil, err
		}
		rg = parsed
	}
	return s.newProvider(rg)
}

// fail logs err with its internal detail and writes the public form.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	pe := classify(err)
	if rec, ok := w.(*recorder); ok {
		rec.publicCode = pe.code
	}
	level := slog.LevelWarn
	if pe.status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(r.Context(), level, "request failed",
		"request_id", RequestID(r.Context()),
		"public_code", pe.code,
		"code", errutil.Code(err),
		"error", err,
	)
	writeJSON(w, pe.status, errorResponse{
		Code:      pe.code,
		Message:   pe.message,
		RequestID: w.Header().Get(HeaderRequestID),
	})
}

// decodeBody decodes a JSON body into v. An empty body leaves v zero.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return oops.Code(CodeBadBody).Wrap(err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // client may disconnect
	json.NewEncoder(w).Encode(v)
}

type ctxKey struct{}

// RequestID returns the request ID stored by the middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// requestID assigns every request a ULID, keeping a valid incoming one.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if _, err := ulid.ParseStrict(id); err != nil {
			id = ulid.Make().String()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

// recorder captures the public error code written by a handler.
type recorder struct {
	http.ResponseWriter
	publicCode string
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		ctx, span := tracer.Start(r.Context(), "api "+route)
		span.SetAttributes(
			attribute.String("http.route", route),
			attribute.String("request.id", RequestID(r.Context())),
		)
		rec := &recorder{ResponseWriter: w, publicCode: "ok"}
		start := time.Now()

		next.ServeHTTP(rec, r.WithContext(ctx))

		if rec.publicCode != "ok" {
			span.SetStatus(codes.Error, rec.publicCode)
		}
		span.End()
		s.metrics.ObserveRequest(route, rec.publicCode, time.Since(start))
	})
}
