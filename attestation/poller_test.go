package attestation

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoller_SignedOnThirdAttempt(t *testing.T) {
	signed := signedPayload(t, newTestSigner(t), 450)

	attempt := 0
	client := &fakeTxClient{
		call: func(action string, args []any) (*QueryRows, error) {
			require.Equal(t, ActionGetSignedAttestation, action)
			require.Equal(t, []any{testTxID}, args)
			attempt++
			if attempt < 3 {
				return nil, errors.New("attestation not found")
			}
			return payloadRows(signed), nil
		},
	}

	interval := 500 * time.Millisecond
	timer := newFakeTimer()
	poller := NewPoller(client,
		WithPollConfig(PollConfig{Interval: interval, MaxAttempts: 15}),
		withTimer(timer),
	)

	res, err := poller.Poll(context.Background(), "0x"+testTxID)
	require.NoError(t, err)
	assert.Equal(t, PollSigned, res.State)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, signed, res.Payload)
	assert.Equal(t, testTxID, res.TxID)
	assert.Equal(t, []time.Duration{interval, interval}, timer.waits)
	assert.Equal(t, 3, client.callCount())
}

func TestPoller_ExhaustionStaysPending(t *testing.T) {
	client := &fakeTxClient{
		call: func(string, []any) (*QueryRows, error) {
			return nil, errors.New("attestation not yet signed")
		},
	}

	timer := newFakeTimer()
	poller := NewPoller(client, WithPollConfig(PollConfig{Interval: time.Second, MaxAttempts: 4}), withTimer(timer))

	res, err := poller.Poll(context.Background(), testTxID)
	require.NoError(t, err)
	assert.Equal(t, PollPending, res.State)
	assert.Nil(t, res.Payload)
	assert.Equal(t, 4, res.Attempts)
	assert.Len(t, timer.waits, 3)
}

func TestPoller_ShortPayloadIsPending(t *testing.T) {
	signed := signedPayload(t, newTestSigner(t), 200)

	attempt := 0
	client := &fakeTxClient{
		call: func(string, []any) (*QueryRows, error) {
			attempt++
			switch attempt {
			case 1:
				return &QueryRows{Columns: []string{"payload"}, Rows: []any{[]any{nil}}}, nil
			case 2:
				return payloadRows(make([]byte, 65)), nil
			case 3:
				return &QueryRows{}, nil
			default:
				return &QueryRows{Rows: []any{map[string]any{"payload": signed}}}, nil
			}
		},
	}

	poller := NewPoller(client, withTimer(newFakeTimer()))
	res, err := poller.Poll(context.Background(), testTxID)
	require.NoError(t, err)
	assert.Equal(t, PollSigned, res.State)
	assert.Equal(t, 4, res.Attempts)
	assert.Equal(t, signed, res.Payload)
}

func TestPoller_TransientErrorsKeepPolling(t *testing.T) {
	signed := signedPayload(t, newTestSigner(t), 300)

	attempt := 0
	client := &fakeTxClient{
		call: func(string, []any) (*QueryRows, error) {
			attempt++
			if attempt == 1 {
				return nil, errors.New("connection refused")
			}
			return payloadRows(signed), nil
		},
	}

	poller := NewPoller(client, withTimer(newFakeTimer()))
	res, err := poller.Poll(context.Background(), testTxID)
	require.NoError(t, err)
	assert.Equal(t, PollSigned, res.State)
	assert.Equal(t, 2, res.Attempts)
}

func TestPoller_MalformedTransportIsFatal(t *testing.T) {
	client := &fakeTxClient{
		call: func(string, []any) (*QueryRows, error) {
			return &QueryRows{Columns: []string{"payload"}, Rows: []any{[]any{"%%% not base64 %%%"}}}, nil
		},
	}

	timer := newFakeTimer()
	poller := NewPoller(client, withTimer(timer))
	_, err := poller.Poll(context.Background(), testTxID)
	require.ErrorIs(t, err, ErrMalformedPayload)
	assert.Equal(t, 1, client.callCount())
	assert.Empty(t, timer.waits)
}

func TestPoller_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	client := &fakeTxClient{
		call: func(string, []any) (*QueryRows, error) {
			cancel()
			return nil, errors.New("attestation not found")
		},
	}

	poller := NewPoller(client, WithPollConfig(PollConfig{Interval: time.Hour, MaxAttempts: 3}))
	_, err := poller.Poll(ctx, testTxID)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, client.callCount())
}

func TestPoller_EmptyTxID(t *testing.T) {
	client := &fakeTxClient{}
	_, err := NewPoller(client).Poll(context.Background(), " 0x ")
	require.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, client.callCount())
}

func TestPoller_NeverRegressesAfterSigned(t *testing.T) {
	signed := signedPayload(t, newTestSigner(t), 150)

	var calls atomic.Int32
	client := &fakeTxClient{
		call: func(string, []any) (*QueryRows, error) {
			calls.Add(1)
			return payloadRows(signed), nil
		},
	}

	poller := NewPoller(client, withTimer(newFakeTimer()))
	res, err := poller.Poll(context.Background(), testTxID)
	require.NoError(t, err)
	assert.Equal(t, PollSigned, res.State)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPoller_WaitForSignatures(t *testing.T) {
	signer := newTestSigner(t)
	payloads := map[string][]byte{
		"aa": signedPayload(t, signer, 120),
		"bb": signedPayload(t, signer, 140),
	}

	client := &fakeTxClient{
		call: func(_ string, args []any) (*QueryRows, error) {
			txID := args[0].(string)
			if txID == "cc" {
				return nil, errors.New("attestation not found")
			}
			return payloadRows(payloads[txID]), nil
		},
	}

	poller := NewPoller(client, WithPollConfig(PollConfig{Interval: time.Millisecond, MaxAttempts: 2}))
	results, err := poller.WaitForSignatures(context.Background(), []string{"0xAA", "bb", "cc"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, PollSigned, results["aa"].State)
	assert.Equal(t, payloads["aa"], results["aa"].Payload)
	assert.Equal(t, PollSigned, results["bb"].State)
	assert.Equal(t, PollPending, results["cc"].State)
	assert.Equal(t, 2, results["cc"].Attempts)
}

func TestPollConfig_Defaults(t *testing.T) {
	cfg := DefaultPollConfig()
	assert.Equal(t, 2*time.Second, cfg.Interval)
	assert.Equal(t, 15, cfg.MaxAttempts)

	cfg = PollConfig{}.withDefaults()
	assert.Equal(t, DefaultPollConfig(), cfg)

	assert.Equal(t, "pending", PollPending.String())
	assert.Equal(t, "signed", PollSigned.String())
}
