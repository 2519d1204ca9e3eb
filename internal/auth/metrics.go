// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 InnovaNet Contributors

package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome classifies the result of a credential operation.
type Outcome string

// Outcomes of credential operations.
const (
	OutcomeOK               Outcome = "ok"
	OutcomeNotFound         Outcome = "not_found"
	OutcomeDuplicate        Outcome = "duplicate"
	OutcomeExpired          Outcome = "expired"
	OutcomeAttemptsExceeded Outcome = "attempts_exceeded"
	OutcomeMismatch         Outcome = "mismatch"
	OutcomeInvalid          Outcome = "invalid"
	OutcomeError            Outcome = "error"
)

// Operation names used as metric labels.
const (
	OpAuthenticate       = "authenticate"
	OpRegister           = "register"
	OpCreateAccount      = "create_account"
	OpAdminResetPassword = "admin_reset_password"
	OpIssueRecoveryCode  = "issue_recovery_code"
	OpVerifyRecoveryCode = "verify_recovery_code"
	OpResetPassword      = "reset_password"
	OpChangePassword     = "change_password"
)

// CredentialOperations counts credential operations by outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var CredentialOperations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "innovanet_credential_operations_total",
		Help: "Total number of credential operations by outcome",
	},
	[]string{"operation", "outcome"},
)

// CredentialDuration observes how long credential operations take.
// Use RegisterMetrics to register this with a Prometheus registry.
var CredentialDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "innovanet_credential_operation_duration_seconds",
		Help:    "Credential operation duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"operation"},
)

// RegisterMetrics registers auth package metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(CredentialOperations)
	reg.MustRegister(CredentialDuration)
}

func recordOutcome(operation string, outcome Outcome, started time.Time) {
	CredentialOperations.WithLabelValues(operation, string(outcome)).Inc()
	CredentialDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}
