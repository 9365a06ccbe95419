package attestation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/trufnetwork/kwil-db/core/log"
	"golang.org/x/sync/errgroup"

	"github.com/trufnetwork/attest/attestation/metrics"
	"github.com/trufnetwork/attest/attestation/payload"
)

const (
	DefaultPollInterval    = 2 * time.Second
	DefaultPollMaxAttempts = 15
)

// PollState is the client-side view of an attestation's signing status.
type PollState int

const (
	PollPending PollState = iota
	PollSigned
)

func (s PollState) String() string {
	switch s {
	case PollPending:
		return "pending"
	case PollSigned:
		return "signed"
	default:
		return fmt.Sprintf("PollState(%d)", int(s))
	}
}

// PollConfig controls the signing poll cadence.
type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultPollConfig polls every 2s for up to 15 attempts.
func DefaultPollConfig() PollConfig {
	return PollConfig{Interval: DefaultPollInterval, MaxAttempts: DefaultPollMaxAttempts}
}

func (c PollConfig) withDefaults() PollConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultPollInterval
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultPollMaxAttempts
	}
	return c
}

// PollResult is the outcome of a poll run. Payload is set only when State is
// PollSigned. A PollPending result after a run means the attempts ran out; the
// caller may poll again later.
type PollResult struct {
	TxID     string
	State    PollState
	Payload  []byte
	Attempts int
}

// Poller waits for the leader validator to sign an attestation.
type Poller struct {
	client  TxClient
	config  PollConfig
	logger  log.Logger
	metrics metrics.Recorder
	timer   backoff.Timer
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithPollConfig overrides the poll cadence.
func WithPollConfig(cfg PollConfig) PollerOption {
	return func(p *Poller) {
		p.config = cfg.withDefaults()
	}
}

// WithPollerLogger sets the logger used for poll progress.
func WithPollerLogger(logger log.Logger) PollerOption {
	return func(p *Poller) {
		p.logger = logger
	}
}

// WithPollerMetrics sets the metrics recorder.
func WithPollerMetrics(recorder metrics.Recorder) PollerOption {
	return func(p *Poller) {
		p.metrics = recorder
	}
}

// withTimer replaces the wall-clock timer between attempts. The timer is
// shared by every run, so it must not be combined with WaitForSignatures.
func withTimer(timer backoff.Timer) PollerOption {
	return func(p *Poller) {
		p.timer = timer
	}
}

// NewPoller creates a poller over client.
func NewPoller(client TxClient, opts ...PollerOption) *Poller {
	p := &Poller{
		client:  client,
		config:  DefaultPollConfig(),
		logger:  log.DiscardLogger,
		metrics: metrics.NewNoOpMetrics(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// errPending marks an attempt that found no signature yet.
var errPending = errors.New("signature pending")

// Poll calls get_signed_attestation until the payload is signed or the
// configured attempts are used up. Attempts are strictly sequential; once a
// signed payload is seen the run stops. Exhaustion is not an error.
func (p *Poller) Poll(ctx context.Context, txID string) (*PollResult, error) {
	txID = NormalizeTxID(txID)
	if txID == "" {
		return nil, validationErr("request_tx_id", "cannot be empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	start := time.Now()
	result := &PollResult{TxID: txID, State: PollPending}

	p.logger.Debug("polling for signed attestation", "run", runID, "tx_id", txID,
		"interval", p.config.Interval, "max_attempts", p.config.MaxAttempts)

	operation := func() error {
		result.Attempts++

		signed, err := p.fetchSigned(ctx, txID)
		switch {
		case errors.Is(err, ErrMalformedPayload):
			p.metrics.RecordPollAttempt(ctx, metrics.OutcomeError)
			return backoff.Permanent(err)
		case err != nil:
			p.metrics.RecordPollAttempt(ctx, metrics.OutcomeError)
			p.logger.Warn("signed attestation lookup failed, will retry", "run", runID,
				"tx_id", txID, "attempt", result.Attempts, "error", err)
			return err
		case signed == nil:
			p.metrics.RecordPollAttempt(ctx, metrics.OutcomePending)
			return errPending
		}

		p.metrics.RecordPollAttempt(ctx, metrics.OutcomeSigned)
		result.State = PollSigned
		result.Payload = signed
		return nil
	}

	notify := func(err error, next time.Duration) {
		p.logger.Debug("attestation not signed yet", "run", runID, "tx_id", txID,
			"attempt", result.Attempts, "next", next, "reason", err)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.config.Interval), uint64(p.config.MaxAttempts-1)),
		ctx,
	)

	err := backoff.RetryNotifyWithTimer(operation, policy, notify, p.timer)
	if result.State == PollSigned {
		p.metrics.RecordSigned(ctx, result.Attempts, time.Since(start))
		p.logger.Info("attestation signed", "run", runID, "tx_id", txID, "attempts", result.Attempts)
		return result, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if errors.Is(err, ErrMalformedPayload) {
		return nil, err
	}

	p.metrics.RecordPollExhausted(ctx, result.Attempts)
	p.logger.Info("attestation still pending after polling", "run", runID, "tx_id", txID,
		"attempts", result.Attempts, "last_error", err)
	return result, nil
}

// fetchSigned performs one lookup. It returns (nil, nil) while the
// attestation is pending and the raw payload once it is signed.
func (p *Poller) fetchSigned(ctx context.Context, txID string) ([]byte, error) {
	rows, err := p.client.CallReadOnly(ctx, ActionGetSignedAttestation, []any{txID})
	if err != nil {
		if IsNotSignedError(err) {
			return nil, nil
		}
		return nil, err
	}

	value, ok := payloadColumn(rows)
	if !ok || value == nil {
		return nil, nil
	}

	raw, err := payload.DecodeValue(value)
	if err != nil {
		return nil, err
	}
	if len(raw) <= payload.SignatureLength {
		return nil, nil
	}
	return raw, nil
}

// payloadColumn picks the payload value out of the first row.
func payloadColumn(rows *QueryRows) (any, bool) {
	if rows == nil || len(rows.Rows) == 0 {
		return nil, false
	}

	switch row := rows.Rows[0].(type) {
	case map[string]any:
		v, ok := row["payload"]
		return v, ok
	case []any:
		if len(row) == 0 {
			return nil, false
		}
		for i, name := range rows.Columns {
			if name == "payload" && i < len(row) {
				return row[i], true
			}
		}
		return row[0], true
	default:
		return nil, false
	}
}

// WaitForSignatures polls several independent requests concurrently. Each tx
// id gets its own sequential poll run; results are keyed by normalized tx id.
func (p *Poller) WaitForSignatures(ctx context.Context, txIDs []string) (map[string]*PollResult, error) {
	var (
		mu      sync.Mutex
		results = make(map[string]*PollResult, len(txIDs))
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, txID := range txIDs {
		g.Go(func() error {
			res, err := p.Poll(gctx, txID)
			if err != nil {
				return fmt.Errorf("poll %s: %w", txID, err)
			}
			mu.Lock()
			results[res.TxID] = res
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
