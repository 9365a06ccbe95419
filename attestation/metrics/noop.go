package metrics

import (
	"context"
	"time"
)

// NoOpMetrics is a no-op implementation of Recorder.
type NoOpMetrics struct{}

// NewNoOpMetrics creates a new no-op metrics recorder.
func NewNoOpMetrics() Recorder {
	return &NoOpMetrics{}
}

func (n *NoOpMetrics) RecordRequestSubmitted(ctx context.Context, actionName string)          {}
func (n *NoOpMetrics) RecordRequestError(ctx context.Context, actionName string, errType string) {}
func (n *NoOpMetrics) RecordPollAttempt(ctx context.Context, outcome string)                  {}
func (n *NoOpMetrics) RecordSigned(ctx context.Context, attempts int, waited time.Duration)     {}
func (n *NoOpMetrics) RecordPollExhausted(ctx context.Context, attempts int)                   {}
func (n *NoOpMetrics) RecordVerification(ctx context.Context, outcome string)                  {}
