package attestation

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/cockroachdb/apd/v3"
	"github.com/trufnetwork/kwil-db/core/types"

	"github.com/trufnetwork/attest/attestation/canonical"
)

const (
	// ActionRequestAttestation is the node action that records a request.
	ActionRequestAttestation = "request_attestation"
	// ActionGetSignedAttestation returns the signed payload for a request.
	ActionGetSignedAttestation = "get_signed_attestation"
	// ActionListAttestations queries attestation metadata.
	ActionListAttestations = "list_attestations"

	// StreamIDLength is the exact length of a stream id.
	StreamIDLength = 32

	// MaxFeeDigits is the precision of the NUMERIC(78,0) max_fee column.
	MaxFeeDigits = 78
)

var ethereumAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// AttestationRequest describes a read-only query to be attested.
type AttestationRequest struct {
	// DataProvider is the 0x-prefixed address owning the stream.
	DataProvider string
	// StreamID is the 32-character stream identifier.
	StreamID string
	// ActionName is the read-only action whose result is attested.
	ActionName string
	// Args are the positional action arguments.
	Args []any
	// EncryptSig must be false; encrypted signatures are not supported.
	EncryptSig bool
	// MaxFee is the most the requester will pay, in wei, as a decimal string.
	MaxFee string
}

// RequestPayload is a validated request, ready to be submitted.
type RequestPayload struct {
	DataProvider string
	StreamID     string
	ActionName   string
	ArgsBytes    []byte
	EncryptSig   bool
	// MaxFee is the normalized integer string. MaxFeeDecimal carries the same
	// value as a NUMERIC(78,0).
	MaxFee        string
	MaxFeeDecimal *types.Decimal
}

// Args returns the positional arguments of the request_attestation action:
// (data_provider, stream_id, action_name, args_bytes, encrypt_sig, max_fee).
func (p *RequestPayload) Args() []any {
	return []any{
		p.DataProvider,
		p.StreamID,
		p.ActionName,
		p.ArgsBytes,
		p.EncryptSig,
		p.MaxFeeDecimal,
	}
}

// BuildRequest validates req and canonicalizes its arguments. It performs no
// I/O. Fields are checked in order: data provider, stream id, action name,
// encryptSig and max fee; the first failure is returned.
func BuildRequest(req AttestationRequest) (*RequestPayload, error) {
	dataProvider := strings.TrimSpace(req.DataProvider)
	if !ethereumAddressPattern.MatchString(dataProvider) {
		return nil, validationErr("data_provider",
			"must be 0x followed by 40 hex characters, got %q", req.DataProvider)
	}

	if len(req.StreamID) != StreamIDLength {
		return nil, validationErr("stream_id",
			"must be exactly %d characters, got %d", StreamIDLength, len(req.StreamID))
	}

	actionName := strings.TrimSpace(req.ActionName)
	if actionName == "" {
		return nil, validationErr("action_name", "cannot be empty")
	}

	if req.EncryptSig {
		return nil, validationErr("encrypt_sig", "encrypted signatures are not supported")
	}

	maxFee, err := ParseMaxFee(req.MaxFee)
	if err != nil {
		return nil, err
	}
	feeDecimal, err := types.ParseDecimalExplicit(maxFee, MaxFeeDigits, 0)
	if err != nil {
		return nil, validationErr("max_fee", "%v", err)
	}

	argsBytes, err := canonical.EncodeActionArgs(req.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to encode action args: %w", err)
	}

	return &RequestPayload{
		DataProvider:  strings.ToLower(dataProvider),
		StreamID:      req.StreamID,
		ActionName:    actionName,
		ArgsBytes:     argsBytes,
		EncryptSig:    false,
		MaxFee:        maxFee,
		MaxFeeDecimal: feeDecimal,
	}, nil
}

// ParseMaxFee validates a fee string and returns it as a plain integer string.
// Scientific notation and trailing zero fractions are accepted as long as the
// value is a whole number.
func ParseMaxFee(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", validationErr("max_fee", "cannot be empty")
	}

	d, _, err := apd.NewFromString(s)
	if err != nil {
		return "", validationErr("max_fee", "not a number: %q", s)
	}
	if d.Form != apd.Finite {
		return "", validationErr("max_fee", "must be finite, got %q", s)
	}
	if d.Negative && !d.IsZero() {
		return "", validationErr("max_fee", "must be non-negative, got %q", s)
	}

	var integ, frac apd.Decimal
	d.Modf(&integ, &frac)
	if !frac.IsZero() {
		return "", validationErr("max_fee", "must be a whole number of wei, got %q", s)
	}
	integ.Negative = false

	// reject by magnitude before rendering the digits
	if !integ.IsZero() && apd.NumDigits(&integ.Coeff)+int64(integ.Exponent) > MaxFeeDigits {
		return "", validationErr("max_fee", "exceeds %d digits", MaxFeeDigits)
	}

	text := integ.Text('f')
	if len(text) > MaxFeeDigits {
		return "", validationErr("max_fee", "exceeds %d digits", MaxFeeDigits)
	}
	return text, nil
}

// FeeFromBigInt formats a wei amount for AttestationRequest.MaxFee.
func FeeFromBigInt(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// NormalizeTxID trims whitespace, strips a 0x prefix and lowercases a tx id.
func NormalizeTxID(txID string) string {
	txID = strings.TrimSpace(txID)
	if strings.HasPrefix(txID, "0x") || strings.HasPrefix(txID, "0X") {
		txID = txID[2:]
	}
	return strings.ToLower(txID)
}
