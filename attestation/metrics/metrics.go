// Package metrics provides observability for the attestation client.
// It uses a plugin pattern to ensure zero overhead when OpenTelemetry is not available.
package metrics

import (
	"context"
	"strings"
	"time"

	"github.com/trufnetwork/kwil-db/core/log"
	"go.opentelemetry.io/otel"
)

// Recorder defines the interface for recording attestation metrics.
// This allows for pluggable implementations - either real OTEL metrics or no-op.
type Recorder interface {
	// Request submission metrics
	RecordRequestSubmitted(ctx context.Context, actionName string)
	RecordRequestError(ctx context.Context, actionName string, errType string)

	// Signing poller metrics
	RecordPollAttempt(ctx context.Context, outcome string)
	RecordSigned(ctx context.Context, attempts int, waited time.Duration)
	RecordPollExhausted(ctx context.Context, attempts int)

	// Verification metrics
	RecordVerification(ctx context.Context, outcome string)
}

// Poll attempt outcomes.
const (
	OutcomeSigned  = "signed"
	OutcomePending = "pending"
	OutcomeError   = "error"
)

// Verification outcomes.
const (
	OutcomeVerified = "verified"
	OutcomeRejected = "rejected"
)

// NewRecorder creates a metrics recorder instance.
// It automatically detects if OpenTelemetry is available and returns
// either a real OTEL implementation or a no-op implementation.
func NewRecorder(logger log.Logger) Recorder {
	meter := otel.GetMeterProvider().Meter("github.com/trufnetwork/attest/attestation")

	// Try to create a test metric to verify OTEL is functional
	_, err := meter.Int64Counter("tn_attestation_client.test")
	if err != nil {
		logger.Debug("OpenTelemetry not available, metrics disabled")
		return NewNoOpMetrics()
	}

	otelMetrics, err := NewOTELMetrics(meter, logger)
	if err != nil {
		logger.Warn("failed to initialize OTEL metrics, falling back to no-op", "error", err)
		return NewNoOpMetrics()
	}

	logger.Debug("OpenTelemetry metrics initialized")
	return otelMetrics
}

// ClassifyError categorizes errors for metric labels to keep cardinality low
func ClassifyError(err error) string {
	if err == nil {
		return "none"
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "context deadline exceeded"):
		return "timeout"
	case strings.Contains(errStr, "context canceled"):
		return "cancelled"
	case strings.Contains(errStr, "insufficient balance"):
		return "insufficient_balance"
	case strings.Contains(errStr, "connection"):
		return "connection_error"
	case strings.Contains(errStr, "malformed"):
		return "malformed_payload"
	case strings.Contains(errStr, "validation"):
		return "validation"
	case strings.Contains(errStr, "permission denied") || strings.Contains(errStr, "unauthorized"):
		return "permission_denied"
	default:
		return "unknown"
	}
}
