// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of gcp-utils-go.
//
// gcp-utils-go is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package metrics provides Prometheus instrumentation for Cloud KMS calls.
// It exposes operation counters, latency histograms and classified error
// counters so that callers can see how their KMS usage behaves and fails.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all metrics of this module
	Namespace = "gcputils"

	// Label names
	LabelOperation = "operation"
	LabelStatus    = "status"
	LabelKind      = "kind"
	LabelMethod    = "method"
	LabelCode      = "code"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Operation names
	OpCreateKeyRing   = "create_key_ring"
	OpCreateCryptoKey = "create_crypto_key"
	OpEncrypt         = "encrypt"
	OpDecrypt         = "decrypt"
	OpGetIAMPolicy    = "get_iam_policy"
	OpSetIAMPolicy    = "set_iam_policy"
)

var (
	// OperationsTotal tracks the total number of KMS operations by type and status.
	// Use RecordOperation to increment this counter with the appropriate labels.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "kms",
			Name:      "operations_total",
			Help:      "Total number of KMS operations by type and status",
		},
		[]string{LabelOperation, LabelStatus},
	)

	// OperationDuration tracks the duration of KMS operations in seconds,
	// including the network round trip.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "kms",
			Name:      "operation_duration_seconds",
			Help:      "Duration of KMS operations in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{LabelOperation},
	)

	// ErrorsTotal tracks classified errors by operation and error kind.
	// Kinds are the labels of gcperrors.Kind (e.g. "resource_not_found").
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "kms",
			Name:      "errors_total",
			Help:      "Total number of classified KMS errors by operation and kind",
		},
		[]string{LabelOperation, LabelKind},
	)

	// GRPCRequestsTotal tracks outgoing gRPC requests by method and status code.
	GRPCRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "grpc_client",
			Name:      "requests_total",
			Help:      "Total number of outgoing gRPC requests by method and status code",
		},
		[]string{LabelMethod, LabelCode},
	)

	// GRPCRequestDuration tracks the duration of outgoing gRPC requests in seconds.
	GRPCRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "grpc_client",
			Name:      "request_duration_seconds",
			Help:      "Duration of outgoing gRPC requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelMethod},
	)

	// enabled tracks whether metrics collection is enabled
	enabled atomic.Bool
)

func init() {
	// Metrics are enabled by default
	enabled.Store(true)
}

// RecordOperation records a KMS operation with its duration and status.
//
// Example:
//
//	start := time.Now()
//	_, err := client.Encrypt(ctx, cryptoKeyGRN, data)
//	status := StatusSuccess
//	if err != nil {
//	    status = StatusError
//	}
//	RecordOperation(OpEncrypt, status, time.Since(start).Seconds())
func RecordOperation(operation, status string, duration float64) {
	if !enabled.Load() {
		return
	}
	OperationsTotal.WithLabelValues(operation, status).Inc()
	OperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordError records a classified error for an operation.
func RecordError(operation, kind string) {
	if !enabled.Load() {
		return
	}
	ErrorsTotal.WithLabelValues(operation, kind).Inc()
}

// RecordGRPCRequest records an outgoing gRPC request with its duration and
// status code.
func RecordGRPCRequest(method, code string, duration float64) {
	if !enabled.Load() {
		return
	}
	GRPCRequestsTotal.WithLabelValues(method, code).Inc()
	GRPCRequestDuration.WithLabelValues(method).Observe(duration)
}

// Enable enables metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable disables metrics collection.
// Useful for testing or when metrics are not desired.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}
