package metrics

import (
	"context"
	"time"

	"github.com/trufnetwork/kwil-db/core/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTELMetrics implements Recorder using OpenTelemetry.
type OTELMetrics struct {
	logger log.Logger

	// Counters
	requestSubmittedCounter metric.Int64Counter
	requestErrorCounter     metric.Int64Counter
	pollAttemptCounter      metric.Int64Counter
	pollExhaustedCounter    metric.Int64Counter
	verificationCounter     metric.Int64Counter

	// Histograms
	signingWait     metric.Float64Histogram
	signingAttempts metric.Int64Histogram
}

// NewOTELMetrics creates a new OTEL metrics recorder.
func NewOTELMetrics(meter metric.Meter, logger log.Logger) (*OTELMetrics, error) {
	m := &OTELMetrics{logger: logger}

	var err error

	m.requestSubmittedCounter, err = meter.Int64Counter(
		"tn_attestation_client.request_submitted_total",
		metric.WithDescription("Total number of attestation requests submitted"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	m.requestErrorCounter, err = meter.Int64Counter(
		"tn_attestation_client.request_error_total",
		metric.WithDescription("Total number of attestation requests that failed to submit"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	m.pollAttemptCounter, err = meter.Int64Counter(
		"tn_attestation_client.poll_attempt_total",
		metric.WithDescription("Total number of signed attestation lookups by outcome"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	m.pollExhaustedCounter, err = meter.Int64Counter(
		"tn_attestation_client.poll_exhausted_total",
		metric.WithDescription("Total number of poll runs that ended while still pending"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	m.verificationCounter, err = meter.Int64Counter(
		"tn_attestation_client.verification_total",
		metric.WithDescription("Total number of payload verifications by outcome"),
		metric.WithUnit("{verification}"),
	)
	if err != nil {
		return nil, err
	}

	m.signingWait, err = meter.Float64Histogram(
		"tn_attestation_client.signing_wait_seconds",
		metric.WithDescription("Time from first poll until a signed payload was observed"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.signingAttempts, err = meter.Int64Histogram(
		"tn_attestation_client.signing_attempts",
		metric.WithDescription("Number of polls needed to observe a signed payload"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *OTELMetrics) RecordRequestSubmitted(ctx context.Context, actionName string) {
	m.requestSubmittedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("action", actionName),
		),
	)
}

func (m *OTELMetrics) RecordRequestError(ctx context.Context, actionName string, errType string) {
	m.requestErrorCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("action", actionName),
			attribute.String("error_type", errType),
		),
	)
}

func (m *OTELMetrics) RecordPollAttempt(ctx context.Context, outcome string) {
	m.pollAttemptCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("outcome", outcome),
		),
	)
}

func (m *OTELMetrics) RecordSigned(ctx context.Context, attempts int, waited time.Duration) {
	m.signingWait.Record(ctx, waited.Seconds())
	m.signingAttempts.Record(ctx, int64(attempts))
}

func (m *OTELMetrics) RecordPollExhausted(ctx context.Context, attempts int) {
	m.pollExhaustedCounter.Add(ctx, 1)
}

func (m *OTELMetrics) RecordVerification(ctx context.Context, outcome string) {
	m.verificationCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("outcome", outcome),
		),
	)
}
