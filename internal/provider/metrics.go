// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WayGate Contributors

package provider

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/waygate/waygate/pkg/errutil"
)

// Handshake step names used as metric labels and span names.
const (
	StepRequestCode     = "request_code"
	StepSubmitCode      = "submit_code"
	StepChannelLogin    = "channel_login"
	StepAccessToken     = "access_token"
	StepU8Token         = "u8_token"
	StepEstablishSecret = "establish_secret"
	StepGuestCreate     = "guest_create"
)

// HandshakeSteps counts handshake steps by family, step and outcome. The
// outcome is "ok" or the error code.
var HandshakeSteps = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "waygate_handshake_steps_total",
		Help: "Total number of handshake steps by provider family, step and outcome",
	},
	[]string{"family", "step", "outcome"},
)

// HandshakeStepDuration observes the latency of each handshake step.
var HandshakeStepDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "waygate_handshake_step_duration_seconds",
		Help:    "Handshake step duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"family", "step"},
)

// RegisterMetrics registers provider metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(HandshakeSteps)
	reg.MustRegister(HandshakeStepDuration)
}

func recordStep(family, step string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = errutil.Code(err)
		if outcome == "" {
			outcome = "error"
		}
	}
	HandshakeSteps.WithLabelValues(family, step, outcome).Inc()
	HandshakeStepDuration.WithLabelValues(family, step).Observe(elapsed.Seconds())
}
