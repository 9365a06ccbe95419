package attestation

import (
	"bytes"
	"context"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/trufnetwork/attest/attestation/canonical"
	"github.com/trufnetwork/attest/attestation/payload"
)

const (
	testDataProvider = "0x4710a8d8f0d845da110086812a32de6d90d7ff5c"
	testStreamID     = "st00000000000000000000000000test"
	testMaxFee       = "40000000000000000000"
	testTxID         = "9f3c1a2b4d5e6f708192a3b4c5d6e7f8091a2b3c4d5e6f708192a3b4c5d6e7f8"
)

type recordedCall struct {
	action string
	args   []any
}

// fakeTxClient scripts node responses for one test.
type fakeTxClient struct {
	mu sync.Mutex

	submit   func(action string, args []any) (string, error)
	finality func(txID string) (*TxConfirmation, error)
	call     func(action string, args []any) (*QueryRows, error)

	calls []recordedCall
}

func (f *fakeTxClient) record(action string, args []any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{action: action, args: args})
}

func (f *fakeTxClient) Submit(_ context.Context, action string, args []any) (string, error) {
	f.record(action, args)
	if f.submit == nil {
		return testTxID, nil
	}
	return f.submit(action, args)
}

func (f *fakeTxClient) WaitForFinality(_ context.Context, txID string, _ time.Duration) (*TxConfirmation, error) {
	f.record("wait_for_finality", []any{txID})
	if f.finality == nil {
		return &TxConfirmation{TxID: txID, Height: 10}, nil
	}
	return f.finality(txID)
}

func (f *fakeTxClient) CallReadOnly(_ context.Context, action string, args []any) (*QueryRows, error) {
	f.record(action, args)
	if f.call == nil {
		return &QueryRows{}, nil
	}
	return f.call(action, args)
}

func (f *fakeTxClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeTxClient) lastCall() recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

// fakeTimer fires immediately and records the requested waits.
type fakeTimer struct {
	c     chan time.Time
	waits []time.Duration
}

func newFakeTimer() *fakeTimer {
	return &fakeTimer{c: make(chan time.Time, 1)}
}

func (t *fakeTimer) Start(d time.Duration) {
	t.waits = append(t.waits, d)
	t.c <- time.Now()
}

func (t *fakeTimer) Stop() {}

func (t *fakeTimer) C() <-chan time.Time {
	return t.c
}

// memoryStore is an in-memory PayloadStore.
type memoryStore struct {
	mu       sync.Mutex
	payloads map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{payloads: make(map[string][]byte)}
}

func (m *memoryStore) Get(txID string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payloads[txID]
	return p, ok, nil
}

func (m *memoryStore) Put(txID string, p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads[txID] = bytes.Clone(p)
	return nil
}

func newTestSigner(t *testing.T) *payload.Signer {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer, err := payload.NewSigner(key)
	require.NoError(t, err)
	return signer
}

// signedPayload builds a signed payload of exactly size bytes.
func signedPayload(t *testing.T, signer *payload.Signer, size int) []byte {
	t.Helper()

	args, err := canonical.EncodeActionArgs([]any{testDataProvider, testStreamID, int64(1), int64(2)})
	require.NoError(t, err)

	p := &payload.CanonicalPayload{
		Version:      payload.VersionV1,
		Algorithm:    payload.AlgorithmSecp256k1,
		BlockHeight:  77,
		DataProvider: bytes.Repeat([]byte{0x47}, 20),
		StreamID:     []byte(testStreamID),
		ActionID:     1,
		Args:         args,
	}
	pad := size - len(p.Encode()) - payload.SignatureLength
	require.GreaterOrEqual(t, pad, 0, "size %d too small", size)
	p.Result = bytes.Repeat([]byte{0x01}, pad)

	signed, err := signer.Sign(p)
	require.NoError(t, err)
	require.Len(t, signed, size)
	return signed
}

func payloadRows(raw []byte) *QueryRows {
	return &QueryRows{
		Columns: []string{"payload"},
		Rows:    []any{[]any{base64.StdEncoding.EncodeToString(raw)}},
	}
}

func intPtr(v int) *int {
	return &v
}
