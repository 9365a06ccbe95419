package app

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trufnetwork/attest/attestation"
	"github.com/trufnetwork/attest/attestation/canonical"
	"github.com/trufnetwork/attest/attestation/payload"
)

const testDataProvider = "0x4710a8d8f0d845da110086812a32de6d90d7ff5c"

func testSignedPayload(t *testing.T) ([]byte, *payload.Signer) {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer, err := payload.NewSigner(key)
	require.NoError(t, err)

	args, err := canonical.EncodeActionArgs([]any{testDataProvider, int64(1700000000)})
	require.NoError(t, err)
	result, err := canonical.EncodeQueryResult([][]any{{int64(1700000000), "123.45"}})
	require.NoError(t, err)

	provider, err := hex.DecodeString(testDataProvider[2:])
	require.NoError(t, err)

	raw, err := signer.Sign(&payload.CanonicalPayload{
		Version:      payload.VersionV1,
		Algorithm:    payload.AlgorithmSecp256k1,
		BlockHeight:  321,
		DataProvider: provider,
		StreamID:     []byte("st00000000000000000000000000test"),
		ActionID:     1,
		Args:         args,
		Result:       result,
	})
	require.NoError(t, err)
	return raw, signer
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("TN_VALIDATORS", "")

	// keep a stray .env in the working directory out of the test
	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, nil, 0o600))

	cmd := RootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", envFile}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestVerifyCommand(t *testing.T) {
	raw, signer := testSignedPayload(t)
	encoded := base64.StdEncoding.EncodeToString(raw)

	t.Run("allowed validator", func(t *testing.T) {
		out, err := runRoot(t, "verify", encoded, "--validator", signer.Address().Hex(), "--json")
		require.NoError(t, err)

		var got attestationOutput
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Equal(t, signer.Address().Hex(), got.Signer)
		assert.True(t, got.Verified)
		assert.Equal(t, uint64(321), got.BlockHeight)
		assert.Equal(t, testDataProvider, got.DataProvider)
		assert.Equal(t, "st00000000000000000000000000test", got.StreamID)
		assert.Equal(t, encoded, got.Payload)
	})

	t.Run("hex input without validators", func(t *testing.T) {
		out, err := runRoot(t, "verify", "0x"+hex.EncodeToString(raw))
		require.NoError(t, err)
		assert.Contains(t, out, signer.Address().Hex())
		assert.Contains(t, out, "Verified:       false")
	})

	t.Run("unknown validator", func(t *testing.T) {
		_, err := runRoot(t, "verify", encoded, "--validator", "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf")
		require.ErrorIs(t, err, attestation.ErrVerificationFailure)
	})

	t.Run("truncated payload", func(t *testing.T) {
		_, err := runRoot(t, "verify", base64.StdEncoding.EncodeToString(raw[:65]))
		require.ErrorIs(t, err, attestation.ErrMalformedPayload)
	})
}

func TestParseArgsJSON(t *testing.T) {
	args, err := parseArgsJSON(`["0xabc", 1700000000, true, null, -5]`)
	require.NoError(t, err)
	assert.Equal(t, []any{"0xabc", int64(1700000000), true, nil, int64(-5)}, args)

	args, err = parseArgsJSON("")
	require.NoError(t, err)
	assert.Empty(t, args)

	_, err = parseArgsJSON(`[1.5]`)
	require.Error(t, err)

	_, err = parseArgsJSON(`[{"a":1}]`)
	require.Error(t, err)

	_, err = parseArgsJSON(`{"a":1}`)
	require.Error(t, err)
}

func TestDecodePayloadInput(t *testing.T) {
	want := []byte{0xde, 0xad, 0xbe, 0xef}

	got, err := decodePayloadInput("0xdeadbeef")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = decodePayloadInput(" " + base64.StdEncoding.EncodeToString(want) + "\n")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = decodePayloadInput("0xzz")
	require.Error(t, err)
	_, err = decodePayloadInput("")
	require.Error(t, err)
}

func TestFormatMetadataTable(t *testing.T) {
	signed := int64(12)
	table, err := formatMetadataTable([]metadataOutput{
		{RequestTxID: "aa", Requester: "0x01", DataProvider: testDataProvider, StreamID: "st1", CreatedHeight: 10, SignedHeight: &signed},
		{RequestTxID: "bb", Requester: "0x02", DataProvider: testDataProvider, StreamID: "st2", CreatedHeight: 11},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(table), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "request_tx_id")
	assert.Contains(t, lines[2], "12")
	assert.Contains(t, lines[3], "pending")
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"", "debug", "INFO", "warn", "error"} {
		_, err := newLogger(level)
		require.NoError(t, err, level)
	}
	_, err := newLogger("loud")
	require.Error(t, err)
}
