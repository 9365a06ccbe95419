package app

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/fbiville/markdown-table-formatter/pkg/markdown"
	jsoniter "github.com/json-iterator/go"

	"github.com/trufnetwork/attest/attestation"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// attestationOutput is the printable form of a signed attestation.
type attestationOutput struct {
	RequestTxID  string `json:"request_tx_id,omitempty"`
	Signer       string `json:"signer"`
	Verified     bool   `json:"verified"`
	BlockHeight  uint64 `json:"block_height"`
	DataProvider string `json:"data_provider"`
	StreamID     string `json:"stream_id"`
	ActionID     uint16 `json:"action_id"`
	Args         []any  `json:"args,omitempty"`
	Payload      string `json:"payload"`
}

func newAttestationOutput(att *attestation.SignedAttestation, signer common.Address, verified bool) *attestationOutput {
	c := att.Payload.Canonical
	out := &attestationOutput{
		RequestTxID:  att.RequestTxID,
		Signer:       signer.Hex(),
		Verified:     verified,
		BlockHeight:  c.BlockHeight,
		DataProvider: printableBytes(c.DataProvider),
		StreamID:     printableBytes(c.StreamID),
		ActionID:     c.ActionID,
		Payload:      base64.StdEncoding.EncodeToString(att.Raw),
	}
	if args, err := att.Args(); err == nil {
		out.Args = printableValues(args)
	}
	return out
}

// printableBytes shows 20-byte addresses as hex and everything else as text
// when it is valid ASCII.
func printableBytes(b []byte) string {
	if len(b) == common.AddressLength {
		return hexutil.Encode(b)
	}
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return hexutil.Encode(b)
		}
	}
	return string(b)
}

func printableValues(values []any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		if b, ok := v.([]byte); ok {
			out[i] = hexutil.Encode(b)
			continue
		}
		out[i] = v
	}
	return out
}

func (o *attestationOutput) writeText(w io.Writer) error {
	lines := [][2]string{
		{"Request tx:", o.RequestTxID},
		{"Signer:", o.Signer},
		{"Verified:", strconv.FormatBool(o.Verified)},
		{"Block height:", strconv.FormatUint(o.BlockHeight, 10)},
		{"Data provider:", o.DataProvider},
		{"Stream id:", o.StreamID},
		{"Action id:", strconv.FormatUint(uint64(o.ActionID), 10)},
		{"Payload:", o.Payload},
	}
	for _, l := range lines {
		if l[1] == "" {
			continue
		}
		if _, err := fmt.Fprintf(w, "%-15s %s\n", l[0], l[1]); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

type metadataOutput struct {
	RequestTxID     string `json:"request_tx_id"`
	AttestationHash string `json:"attestation_hash"`
	Requester       string `json:"requester"`
	DataProvider    string `json:"data_provider"`
	StreamID        string `json:"stream_id"`
	CreatedHeight   int64  `json:"created_height"`
	SignedHeight    *int64 `json:"signed_height"`
	EncryptSig      bool   `json:"encrypt_sig"`
}

func newMetadataOutput(m attestation.AttestationMetadata) metadataOutput {
	return metadataOutput{
		RequestTxID:     m.RequestTxID,
		AttestationHash: hexutil.Encode(m.AttestationHash),
		Requester:       hexutil.Encode(m.Requester),
		DataProvider:    m.DataProvider,
		StreamID:        m.StreamID,
		CreatedHeight:   m.CreatedHeight,
		SignedHeight:    m.SignedHeight,
		EncryptSig:      m.EncryptSig,
	}
}

var metadataColumns = []string{"request_tx_id", "requester", "data_provider", "stream_id", "created_height", "signed_height"}

// formatMetadataTable renders registry rows as a markdown table.
func formatMetadataTable(rows []metadataOutput) (string, error) {
	cells := make([][]string, len(rows))
	for i, r := range rows {
		signed := "pending"
		if r.SignedHeight != nil {
			signed = strconv.FormatInt(*r.SignedHeight, 10)
		}
		cells[i] = []string{
			r.RequestTxID,
			r.Requester,
			r.DataProvider,
			r.StreamID,
			strconv.FormatInt(r.CreatedHeight, 10),
			signed,
		}
	}
	return markdown.NewTableFormatterBuilder().
		WithPrettyPrint().
		Build(metadataColumns...).
		Format(cells)
}

// decodePayloadInput accepts a signed payload as 0x-prefixed hex or base64.
func decodePayloadInput(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty payload")
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		b, err := hex.DecodeString(s[2:])
		if err != nil {
			return nil, fmt.Errorf("invalid hex payload: %w", err)
		}
		return b, nil
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("payload is neither 0x hex nor base64: %w", err)
	}
	return b, nil
}

// parseArgsJSON decodes a JSON array of action arguments. Numbers must be
// integers; strings, booleans and null pass through.
func parseArgsJSON(s string) ([]any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []any{}, nil
	}

	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("args must be a JSON array: %w", err)
	}

	args := make([]any, len(raw))
	for i, v := range raw {
		switch val := v.(type) {
		case nil, string, bool:
			args[i] = val
		case interface{ Int64() (int64, error) }:
			n, err := val.Int64()
			if err != nil {
				return nil, fmt.Errorf("arg %d: only integer numbers are supported: %v", i, v)
			}
			args[i] = n
		default:
			return nil, fmt.Errorf("arg %d: unsupported JSON value %T", i, v)
		}
	}
	return args, nil
}
