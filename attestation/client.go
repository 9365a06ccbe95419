package attestation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trufnetwork/kwil-db/core/log"

	"github.com/trufnetwork/attest/attestation/metrics"
	"github.com/trufnetwork/attest/attestation/payload"
)

// DefaultFinalityTimeout bounds WaitForRequest.
const DefaultFinalityTimeout = 30 * time.Second

// PayloadStore caches signed payloads by request tx id. Signed payloads never
// change once written, so entries do not expire.
type PayloadStore interface {
	// Get returns the payload and whether it was present.
	Get(txID string) ([]byte, bool, error)
	Put(txID string, payload []byte) error
}

// Client drives the attestation lifecycle over a TxClient.
type Client struct {
	tx              TxClient
	logger          log.Logger
	metrics         metrics.Recorder
	store           PayloadStore
	finalityTimeout time.Duration
	pollerOpts      []PollerOption
	poller          *Poller
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger. The poller inherits it.
func WithLogger(logger log.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics recorder. The poller inherits it.
func WithMetrics(recorder metrics.Recorder) Option {
	return func(c *Client) {
		c.metrics = recorder
	}
}

// WithPayloadStore enables caching of signed payloads.
func WithPayloadStore(store PayloadStore) Option {
	return func(c *Client) {
		c.store = store
	}
}

// WithFinalityTimeout bounds how long WaitForRequest waits for inclusion.
func WithFinalityTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.finalityTimeout = timeout
		}
	}
}

// WithPollerOptions configures the signing poller.
func WithPollerOptions(opts ...PollerOption) Option {
	return func(c *Client) {
		c.pollerOpts = append(c.pollerOpts, opts...)
	}
}

// NewClient creates an attestation client.
func NewClient(tx TxClient, opts ...Option) (*Client, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction client cannot be nil")
	}

	c := &Client{
		tx:              tx,
		logger:          log.DiscardLogger,
		metrics:         metrics.NewNoOpMetrics(),
		finalityTimeout: DefaultFinalityTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	pollerOpts := append([]PollerOption{
		WithPollerLogger(c.logger),
		WithPollerMetrics(c.metrics),
	}, c.pollerOpts...)
	c.poller = NewPoller(tx, pollerOpts...)

	return c, nil
}

// RequestReceipt identifies a submitted attestation request.
type RequestReceipt struct {
	TxID    string
	Request *RequestPayload
}

// RequestAttestation validates req and submits request_attestation. Invalid
// requests fail before any network call. Submission does not wait for the
// transaction to be included; use WaitForRequest for that.
func (c *Client) RequestAttestation(ctx context.Context, req AttestationRequest) (*RequestReceipt, error) {
	built, err := BuildRequest(req)
	if err != nil {
		c.metrics.RecordRequestError(ctx, req.ActionName, metrics.ClassifyError(err))
		return nil, err
	}

	txID, err := c.tx.Submit(ctx, ActionRequestAttestation, built.Args())
	if err != nil {
		err = classifySubmitError(err)
		c.metrics.RecordRequestError(ctx, built.ActionName, metrics.ClassifyError(err))
		return nil, fmt.Errorf("submit attestation request: %w", err)
	}

	txID = NormalizeTxID(txID)
	c.metrics.RecordRequestSubmitted(ctx, built.ActionName)
	c.logger.Info("attestation requested", "tx_id", txID, "data_provider", built.DataProvider,
		"stream_id", built.StreamID, "action", built.ActionName, "max_fee", built.MaxFee)

	return &RequestReceipt{TxID: txID, Request: built}, nil
}

// WaitForRequest waits until the request transaction is included. Fee
// failures surface as ErrInsufficientBalance.
func (c *Client) WaitForRequest(ctx context.Context, txID string) (*TxConfirmation, error) {
	txID = NormalizeTxID(txID)
	if txID == "" {
		return nil, validationErr("request_tx_id", "cannot be empty")
	}

	conf, err := c.tx.WaitForFinality(ctx, txID, c.finalityTimeout)
	if err != nil {
		err = classifySubmitError(err)
		c.metrics.RecordRequestError(ctx, ActionRequestAttestation, metrics.ClassifyError(err))
		return nil, fmt.Errorf("attestation request %s: %w", txID, err)
	}
	return conf, nil
}

// GetOption adjusts a single GetSignedAttestation call.
type GetOption func(*getOptions)

type getOptions struct {
	skipCache bool
}

// SkipCache forces a lookup on the node even if the payload is cached.
func SkipCache() GetOption {
	return func(o *getOptions) {
		o.skipCache = true
	}
}

// GetSignedAttestation makes a single lookup of the signed payload. It returns
// ErrNotFound when no record exists and ErrNotYetSigned when the record has
// no signature yet.
func (c *Client) GetSignedAttestation(ctx context.Context, txID string, opts ...GetOption) (*SignedAttestation, error) {
	var o getOptions
	for _, opt := range opts {
		opt(&o)
	}

	txID = NormalizeTxID(txID)
	if txID == "" {
		return nil, validationErr("request_tx_id", "cannot be empty")
	}

	if c.store != nil && !o.skipCache {
		cached, ok, err := c.store.Get(txID)
		switch {
		case err != nil:
			c.logger.Warn("payload cache read failed", "tx_id", txID, "error", err)
		case ok:
			c.logger.Debug("payload cache hit", "tx_id", txID)
			return NewSignedAttestation(txID, cached)
		}
	}

	rows, err := c.tx.CallReadOnly(ctx, ActionGetSignedAttestation, []any{txID})
	if err != nil {
		return nil, fmt.Errorf("get signed attestation %s: %w", txID, classifyRetrievalError(err))
	}

	value, ok := payloadColumn(rows)
	if !ok {
		return nil, fmt.Errorf("get signed attestation %s: %w", txID, ErrNotFound)
	}
	if value == nil {
		return nil, fmt.Errorf("get signed attestation %s: %w", txID, ErrNotYetSigned)
	}

	raw, err := payload.DecodeValue(value)
	if err != nil {
		return nil, err
	}
	if len(raw) <= payload.SignatureLength {
		return nil, fmt.Errorf("get signed attestation %s: %w", txID, ErrNotYetSigned)
	}

	att, err := NewSignedAttestation(txID, raw)
	if err != nil {
		return nil, err
	}
	c.remember(txID, raw)
	return att, nil
}

// WaitForSignature polls until the attestation is signed. When the poll
// attempts run out it returns ErrNotYetSigned; the request remains valid and
// can be waited on again.
func (c *Client) WaitForSignature(ctx context.Context, txID string) (*SignedAttestation, error) {
	if c.store != nil {
		cached, ok, err := c.store.Get(NormalizeTxID(txID))
		switch {
		case err != nil:
			c.logger.Warn("payload cache read failed", "tx_id", txID, "error", err)
		case ok:
			return NewSignedAttestation(txID, cached)
		}
	}

	res, err := c.poller.Poll(ctx, txID)
	if err != nil {
		return nil, err
	}
	if res.State != PollSigned {
		return nil, fmt.Errorf("attestation %s after %d attempts: %w", res.TxID, res.Attempts, ErrNotYetSigned)
	}

	att, err := NewSignedAttestation(res.TxID, res.Payload)
	if err != nil {
		return nil, err
	}
	c.remember(res.TxID, res.Payload)
	return att, nil
}

// WaitForSignatures polls several requests concurrently.
func (c *Client) WaitForSignatures(ctx context.Context, txIDs []string) (map[string]*PollResult, error) {
	return c.poller.WaitForSignatures(ctx, txIDs)
}

// Verify recovers the signer of att and checks it against allowed.
func (c *Client) Verify(ctx context.Context, att *SignedAttestation, allowed ...common.Address) (common.Address, error) {
	signer, err := att.VerifySigner(allowed...)
	if err != nil {
		c.metrics.RecordVerification(ctx, metrics.OutcomeRejected)
		return signer, err
	}
	c.metrics.RecordVerification(ctx, metrics.OutcomeVerified)
	return signer, nil
}

// ListAttestations queries the attestation registry. The filter is validated
// before any call is made.
func (c *Client) ListAttestations(ctx context.Context, filter ListFilter) ([]AttestationMetadata, error) {
	args, err := filter.args()
	if err != nil {
		return nil, err
	}

	rows, err := c.tx.CallReadOnly(ctx, ActionListAttestations, args)
	if err != nil {
		return nil, fmt.Errorf("list attestations: %w", err)
	}
	return decodeMetadataRows(rows)
}

func (c *Client) remember(txID string, raw []byte) {
	if c.store == nil {
		return
	}
	if err := c.store.Put(txID, raw); err != nil {
		c.logger.Warn("payload cache write failed", "tx_id", txID, "error", err)
	}
}

// IsPending reports whether err means the attestation is not available yet.
func IsPending(err error) bool {
	return errors.Is(err, ErrNotYetSigned) || errors.Is(err, ErrNotFound)
}
