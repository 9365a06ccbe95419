// Package attestation implements the client side of TN validator
// attestations: building and submitting requests, waiting for the leader to
// sign them, retrieving signed payloads and querying the attestation registry.
//
// The lifecycle of a request is:
//
//	BuildRequest -> Submit(request_attestation) -> WaitForFinality
//	  -> poll get_signed_attestation until signed -> decode -> recover signer
//
// Transaction submission and read-only calls go through a TxClient.
package attestation

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/trufnetwork/attest/attestation/canonical"
	"github.com/trufnetwork/attest/attestation/payload"
)

// SignedAttestation is a decoded signed payload together with the request
// that produced it.
type SignedAttestation struct {
	RequestTxID string
	Raw         []byte
	Payload     *payload.SignedPayload
}

// NewSignedAttestation decodes raw as a signed payload.
func NewSignedAttestation(requestTxID string, raw []byte) (*SignedAttestation, error) {
	decoded, err := payload.Decode(raw)
	if err != nil {
		return nil, err
	}
	return &SignedAttestation{
		RequestTxID: NormalizeTxID(requestTxID),
		Raw:         bytes.Clone(raw),
		Payload:     decoded,
	}, nil
}

// Signer recovers the address that signed the attestation.
func (a *SignedAttestation) Signer() (common.Address, error) {
	return a.Payload.RecoverSigner()
}

// VerifySigner recovers the signer and checks it against the allowed
// validator addresses. With no addresses given any recoverable signer passes.
func (a *SignedAttestation) VerifySigner(allowed ...common.Address) (common.Address, error) {
	signer, err := a.Signer()
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrVerificationFailure, err)
	}
	if len(allowed) == 0 {
		return signer, nil
	}
	for _, addr := range allowed {
		if addr == signer {
			return signer, nil
		}
	}
	return signer, fmt.Errorf("%w: signer %s is not an allowed validator", ErrVerificationFailure, signer.Hex())
}

// Args decodes the attested action arguments.
func (a *SignedAttestation) Args() ([]any, error) {
	return canonical.DecodeActionArgs(a.Payload.Canonical.Args)
}

// Result decodes the attested query result rows.
func (a *SignedAttestation) Result() ([][]any, error) {
	return canonical.DecodeQueryResult(a.Payload.Canonical.Result)
}

// BlockHeight is the height at which the query was executed.
func (a *SignedAttestation) BlockHeight() uint64 {
	return a.Payload.Canonical.BlockHeight
}
