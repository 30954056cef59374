// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WayGate Contributors

package backend

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for request metrics.
const (
	OutcomeOK        = "ok"
	OutcomeTransport = "transport_error"
)

// RequestsTotal counts outbound requests by service, method and outcome.
// The outcome is the HTTP status class ("2xx", "4xx", ...) or transport_error.
var RequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "waygate_backend_requests_total",
		Help: "Total number of outbound backend requests",
	},
	[]string{"service", "method", "outcome"},
)

// RequestDuration observes outbound request latency, retries included.
var RequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "waygate_backend_request_duration_seconds",
		Help:    "Outbound backend request duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"service", "method"},
)

// ConfigLoads counts registry loads by kind (network, version) and result.
var ConfigLoads = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "waygate_registry_loads_total",
		Help: "Total number of remote configuration loads",
	},
	[]string{"kind", "region", "status"},
)

// RegisterMetrics registers backend metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(RequestsTotal)
	reg.MustRegister(RequestDuration)
	reg.MustRegister(ConfigLoads)
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}

func recordRequest(service, method string, status int, err error, elapsed time.Duration) {
	outcome := OutcomeTransport
	if err == nil {
		outcome = statusClass(status)
	}
	RequestsTotal.WithLabelValues(service, method, outcome).Inc()
	RequestDuration.WithLabelValues(service, method).Observe(elapsed.Seconds())
}
