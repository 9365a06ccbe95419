// Package kwilclient adapts the kwil JSON-RPC client to the transaction
// client interface the attestation protocol runs on.
package kwilclient

import (
	"context"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/trufnetwork/kwil-db/core/client"
	clientTypes "github.com/trufnetwork/kwil-db/core/client/types"
	"github.com/trufnetwork/kwil-db/core/crypto"
	"github.com/trufnetwork/kwil-db/core/crypto/auth"
	"github.com/trufnetwork/kwil-db/core/log"
	"github.com/trufnetwork/kwil-db/core/types"
	"github.com/trufnetwork/sdk-go/core/tnclient"

	"github.com/trufnetwork/attest/attestation"
)

// DefaultTxPollInterval is the TxQuery cadence while waiting for inclusion.
const DefaultTxPollInterval = 500 * time.Millisecond

// kwilAPI is the part of *client.Client the adapter needs.
type kwilAPI interface {
	Execute(ctx context.Context, namespace string, action string, tuples [][]any, opts ...clientTypes.TxOpt) (types.Hash, error)
	Call(ctx context.Context, namespace string, action string, inputs []any) (*types.CallResult, error)
	TxQuery(ctx context.Context, txHash types.Hash) (*types.TxQueryResponse, error)
}

// Options configures Dial.
type Options struct {
	// PrivateKey is a hex secp256k1 key. Without it the client is read-only.
	PrivateKey string
	// ChainID is checked by the read-only client. The signing client takes
	// the chain id the node reports.
	ChainID string
	// Namespace holding the attestation actions; empty means the default.
	Namespace    string
	PollInterval time.Duration
	Logger       log.Logger
}

// Client implements attestation.TxClient.
type Client struct {
	api          kwilAPI
	namespace    string
	pollInterval time.Duration
	logger       log.Logger
}

var _ attestation.TxClient = (*Client)(nil)

// Dial connects to a node's user RPC endpoint. With a private key the
// connection goes through the TN SDK client so transactions are signed by
// that key; without one a read-only kwil client is used.
func Dial(ctx context.Context, endpoint string, opts Options) (*Client, error) {
	u, err := NormalizeEndpoint(endpoint)
	if err != nil {
		return nil, errors.Wrap(err, "invalid rpc endpoint")
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.DiscardLogger
	}

	var api kwilAPI
	if key := strings.TrimSpace(opts.PrivateKey); key != "" {
		pk, err := crypto.Secp256k1PrivateKeyFromHex(strings.TrimPrefix(key, "0x"))
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse private key")
		}
		api, err = dialSigned(ctx, u.String(), auth.GetUserSigner(pk))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create TN client for %s", u.String())
		}
	} else {
		api, err = dialReadOnly(ctx, u.String(), &clientTypes.Options{
			ChainID: opts.ChainID,
			Logger:  logger,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create kwil client for %s", u.String())
		}
	}

	return newClient(api, opts.Namespace, opts.PollInterval, logger), nil
}

// dialSigned and dialReadOnly are replaced in tests.
var (
	dialSigned = func(ctx context.Context, endpoint string, signer auth.Signer) (kwilAPI, error) {
		tnClient, err := tnclient.NewClient(ctx, endpoint, tnclient.WithSigner(signer))
		if err != nil {
			return nil, err
		}
		return tnClient.GetKwilClient(), nil
	}

	dialReadOnly = func(ctx context.Context, endpoint string, opts *clientTypes.Options) (kwilAPI, error) {
		return client.NewClient(ctx, endpoint, opts)
	}
)

func newClient(api kwilAPI, namespace string, pollInterval time.Duration, logger log.Logger) *Client {
	if pollInterval <= 0 {
		pollInterval = DefaultTxPollInterval
	}
	if logger == nil {
		logger = log.DiscardLogger
	}
	return &Client{
		api:          api,
		namespace:    namespace,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// Submit executes action as a single-tuple transaction.
func (c *Client) Submit(ctx context.Context, action string, args []any) (string, error) {
	hash, err := c.api.Execute(ctx, c.namespace, action, [][]any{args})
	if err != nil {
		return "", errors.Wrapf(err, "execute %s", action)
	}
	c.logger.Debug("transaction broadcast", "action", action, "tx_hash", hash.String())
	return hash.String(), nil
}

var errTxPending = errors.New("transaction not yet included")

// WaitForFinality polls TxQuery until the transaction has a result. A non-OK
// result code is returned as an error carrying the node log.
func (c *Client) WaitForFinality(ctx context.Context, txID string, timeout time.Duration) (*attestation.TxConfirmation, error) {
	hash, err := types.NewHashFromString(attestation.NormalizeTxID(txID))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid tx id %q", txID)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var resp *types.TxQueryResponse
	operation := func() error {
		r, err := c.api.TxQuery(ctx, hash)
		if err != nil {
			return err
		}
		if r == nil || r.Result == nil || r.Height <= 0 {
			return errTxPending
		}
		resp = r
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(backoff.NewConstantBackOff(c.pollInterval), ctx)); err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrapf(ctx.Err(), "transaction %s not included", hash.String())
		}
		return nil, errors.Wrapf(err, "query transaction %s", hash.String())
	}

	conf := &attestation.TxConfirmation{
		TxID:   hash.String(),
		Height: resp.Height,
		Code:   resp.Result.Code,
		Log:    resp.Result.Log,
	}
	if resp.Result.Code != uint32(types.CodeOk) {
		return conf, errors.Errorf("transaction %s failed with code %d: %s", conf.TxID, conf.Code, conf.Log)
	}

	c.logger.Debug("transaction included", "tx_hash", conf.TxID, "height", conf.Height)
	return conf, nil
}

// CallReadOnly runs a view action. An error reported inside the call result
// is returned as an error so callers can classify it by message.
func (c *Client) CallReadOnly(ctx context.Context, action string, args []any) (*attestation.QueryRows, error) {
	res, err := c.api.Call(ctx, c.namespace, action, args)
	if err != nil {
		return nil, errors.Wrapf(err, "call %s", action)
	}
	if res == nil {
		return nil, errors.Errorf("call %s: empty response", action)
	}
	if res.Error != nil && *res.Error != "" {
		return nil, errors.Errorf("call %s: %s", action, *res.Error)
	}

	rows := &attestation.QueryRows{}
	if res.QueryResult == nil {
		return rows, nil
	}

	rows.Columns = res.QueryResult.ColumnNames
	rows.Rows = make([]any, len(res.QueryResult.Values))
	for i, values := range res.QueryResult.Values {
		rows.Rows[i] = values
	}
	return rows, nil
}

// NormalizeEndpoint adds an http scheme when missing and rewrites wildcard
// listen hosts (0.0.0.0, ::, empty) to loopback so a listen address can be
// dialed directly.
func NormalizeEndpoint(endpoint string) (*url.URL, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("empty endpoint")
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "http://" + endpoint
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}

	host, port, err := net.SplitHostPort(u.Host)
	if err != nil {
		if isWildcardHost(u.Host) {
			u.Host = "127.0.0.1"
		}
		return u, nil
	}
	if isWildcardHost(host) {
		u.Host = net.JoinHostPort("127.0.0.1", port)
	}
	return u, nil
}

func isWildcardHost(host string) bool {
	clean := strings.Trim(host, "[]")
	if clean == "" {
		return true
	}
	ip := net.ParseIP(clean)
	return ip != nil && ip.IsUnspecified()
}
