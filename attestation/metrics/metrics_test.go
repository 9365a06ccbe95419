package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/trufnetwork/kwil-db/core/log"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestNoOpMetrics(t *testing.T) {
	ctx := context.Background()
	m := NewNoOpMetrics()

	// Should not panic
	m.RecordRequestSubmitted(ctx, "get_record")
	m.RecordRequestError(ctx, "get_record", "timeout")
	m.RecordPollAttempt(ctx, OutcomePending)
	m.RecordSigned(ctx, 3, 4*time.Second)
	m.RecordPollExhausted(ctx, 15)
	m.RecordVerification(ctx, "ok")
}

func TestOTELMetricsWithNoopMeter(t *testing.T) {
	ctx := context.Background()
	m, err := NewOTELMetrics(noop.NewMeterProvider().Meter("test"), log.New())
	require.NoError(t, err)

	m.RecordRequestSubmitted(ctx, "get_record")
	m.RecordPollAttempt(ctx, OutcomeSigned)
	m.RecordSigned(ctx, 1, time.Second)
	m.RecordVerification(ctx, "mismatch")
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "none",
		},
		{
			name:     "timeout error",
			err:      errors.New("context deadline exceeded"),
			expected: "timeout",
		},
		{
			name:     "cancelled error",
			err:      errors.New("context canceled"),
			expected: "cancelled",
		},
		{
			name:     "insufficient balance",
			err:      errors.New("tx failed: Insufficient balance for attestation"),
			expected: "insufficient_balance",
		},
		{
			name:     "connection error",
			err:      errors.New("dial tcp: connection refused"),
			expected: "connection_error",
		},
		{
			name:     "malformed payload",
			err:      errors.New("malformed attestation payload: too short"),
			expected: "malformed_payload",
		},
		{
			name:     "unknown error",
			err:      errors.New("something went wrong"),
			expected: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, ClassifyError(tt.err))
		})
	}
}

func TestNewRecorder(t *testing.T) {
	m := NewRecorder(log.New())
	require.NotNil(t, m)

	m.RecordPollAttempt(context.Background(), OutcomeError)
}
