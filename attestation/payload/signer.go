package payload

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer produces EVM-compatible signatures over canonical payloads, the way
// the leader validator does. Verifiers use it to build reference payloads.
type Signer struct {
	privateKey *ecdsa.PrivateKey
}

// NewSigner wraps a secp256k1 private key.
func NewSigner(privateKey *ecdsa.PrivateKey) (*Signer, error) {
	if privateKey == nil {
		return nil, fmt.Errorf("private key cannot be nil")
	}
	return &Signer{privateKey: privateKey}, nil
}

// NewSignerFromHex parses a hex-encoded secp256k1 private key (0x optional).
func NewSignerFromHex(hexKey string) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return NewSigner(key)
}

// SignDigest signs a 32-byte digest and returns r || s || v with v in {27,28}.
func (s *Signer) SignDigest(digest []byte) ([]byte, error) {
	if len(digest) != crypto.DigestLength {
		return nil, fmt.Errorf("digest must be %d bytes, got %d", crypto.DigestLength, len(digest))
	}

	signature, err := crypto.Sign(digest, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign digest: %w", err)
	}

	v := signature[64]
	if v >= 27 {
		v -= 27
	}
	signature[64] = (v & 1) + 27
	return signature, nil
}

// Sign encodes the canonical payload, signs sha256 of it and returns the full
// signed payload bytes.
func (s *Signer) Sign(p *CanonicalPayload) ([]byte, error) {
	canonical := p.Encode()
	digest := sha256.Sum256(canonical)

	signature, err := s.SignDigest(digest[:])
	if err != nil {
		return nil, err
	}
	return append(canonical, signature...), nil
}

// Address returns the signer's EVM address.
func (s *Signer) Address() common.Address {
	return crypto.PubkeyToAddress(s.privateKey.PublicKey)
}
