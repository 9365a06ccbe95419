package payload

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrInvalidSignature is returned when a signature cannot be used for recovery.
var ErrInvalidSignature = errors.New("invalid attestation signature")

// RecoverSigner recovers the address of the validator that signed the payload.
// Matching the address against a validator set is left to the caller.
func (s *SignedPayload) RecoverSigner() (common.Address, error) {
	algo := AlgorithmSecp256k1
	if s.Canonical != nil {
		algo = s.Canonical.Algorithm
	}
	return recoverWithAlgorithm(algo, s.CanonicalBytes, s.Signature)
}

// RecoverSigner hashes canonical with sha256 and recovers the secp256k1 signer
// address from an r || s || v signature. v may be given as {0,1} or {27,28}.
func RecoverSigner(canonical, signature []byte) (common.Address, error) {
	return recoverWithAlgorithm(AlgorithmSecp256k1, canonical, signature)
}

// Verify decodes a raw signed payload and recovers its signer in one step.
func Verify(raw []byte) (*SignedPayload, common.Address, error) {
	decoded, err := Decode(raw)
	if err != nil {
		return nil, common.Address{}, err
	}
	addr, err := decoded.RecoverSigner()
	if err != nil {
		return decoded, common.Address{}, err
	}
	return decoded, addr, nil
}

func recoverWithAlgorithm(algo uint8, canonical, signature []byte) (common.Address, error) {
	if algo != AlgorithmSecp256k1 {
		return common.Address{}, fmt.Errorf("%w: unknown signature algorithm %d", ErrMalformedPayload, algo)
	}
	if len(signature) != SignatureLength {
		return common.Address{}, fmt.Errorf("%w: signature must be %d bytes, got %d", ErrInvalidSignature, SignatureLength, len(signature))
	}

	v, err := NormalizeV(signature[64])
	if err != nil {
		return common.Address{}, err
	}

	// go-ethereum expects the compact {0,1} recovery id
	compact := make([]byte, SignatureLength)
	copy(compact, signature)
	compact[64] = v - 27

	digest := sha256.Sum256(canonical)
	pub, err := crypto.SigToPub(digest[:], compact)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: recover public key: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// NormalizeV maps a recovery id onto the EVM {27,28} form.
func NormalizeV(v byte) (byte, error) {
	switch v {
	case 0, 1:
		return v + 27, nil
	case 27, 28:
		return v, nil
	default:
		return 0, fmt.Errorf("%w: invalid recovery id %d", ErrInvalidSignature, v)
	}
}
