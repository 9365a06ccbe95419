// Package payload encodes, decodes and verifies signed attestation payloads.
//
// A signed payload is the canonical payload followed by a 65-byte secp256k1
// signature over sha256(canonical payload). Verification re-hashes the exact
// canonical bytes it was handed and never re-serialises parsed fields.
package payload

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// SignatureLength is the size of the trailing r || s || v signature.
	SignatureLength = 65

	// MinPayloadLength is one byte of canonical data plus the signature.
	MinPayloadLength = SignatureLength + 1

	// VersionV1 is the only protocol version currently produced by validators.
	VersionV1 uint8 = 1

	// AlgorithmSecp256k1 identifies EVM-style secp256k1 signatures.
	AlgorithmSecp256k1 uint8 = 0

	// fixed-width prefix: version, algorithm, block height
	headerLength = 1 + 1 + 8
)

// ErrMalformedPayload is returned for payloads that fail structural decoding.
// Retrying never helps: the same bytes would be fetched again.
var ErrMalformedPayload = errors.New("malformed attestation payload")

// CanonicalPayload represents the eight attestation fields covered by the
// validator signature.
//
// Layout:
//
//	1 byte    version
//	1 byte    algorithm
//	8 bytes   block height (big-endian)
//	4 + n     data provider (little-endian length prefix)
//	4 + m     stream ID (little-endian length prefix)
//	2 bytes   action ID (big-endian)
//	4 + k     arguments (little-endian length prefix)
//	4 + r     result (little-endian length prefix)
type CanonicalPayload struct {
	Version      uint8
	Algorithm    uint8
	BlockHeight  uint64
	DataProvider []byte
	StreamID     []byte
	ActionID     uint16
	Args         []byte
	Result       []byte
}

// SignedPayload is a decoded signed attestation. CanonicalBytes and Signature
// are private copies of the exact slices that were decoded.
type SignedPayload struct {
	Canonical      *CanonicalPayload
	CanonicalBytes []byte
	Signature      []byte
}

// Encode serialises the canonical fields in wire order.
func (p *CanonicalPayload) Encode() []byte {
	var buf bytes.Buffer
	buf.WriteByte(p.Version)
	buf.WriteByte(p.Algorithm)

	var height [8]byte
	binary.BigEndian.PutUint64(height[:], p.BlockHeight)
	buf.Write(height[:])

	writeLengthPrefixed(&buf, p.DataProvider)
	writeLengthPrefixed(&buf, p.StreamID)

	var action [2]byte
	binary.BigEndian.PutUint16(action[:], p.ActionID)
	buf.Write(action[:])

	writeLengthPrefixed(&buf, p.Args)
	writeLengthPrefixed(&buf, p.Result)
	return buf.Bytes()
}

// ParseCanonical decodes canonical payload bytes (no signature) into fields.
// Every length prefix is validated so truncated storage is reported precisely.
func ParseCanonical(data []byte) (*CanonicalPayload, error) {
	if len(data) < headerLength {
		return nil, fmt.Errorf("%w: canonical payload too short: got %d bytes", ErrMalformedPayload, len(data))
	}

	p := &CanonicalPayload{
		Version:   data[0],
		Algorithm: data[1],
	}
	if !IsKnownAlgorithm(p.Algorithm) {
		return nil, fmt.Errorf("%w: unknown signature algorithm %d", ErrMalformedPayload, p.Algorithm)
	}
	p.BlockHeight = binary.BigEndian.Uint64(data[2:headerLength])
	cursor := headerLength

	var err error
	if p.DataProvider, cursor, err = readLengthPrefixed(data, cursor); err != nil {
		return nil, fmt.Errorf("%w: decode data_provider: %v", ErrMalformedPayload, err)
	}
	if p.StreamID, cursor, err = readLengthPrefixed(data, cursor); err != nil {
		return nil, fmt.Errorf("%w: decode stream_id: %v", ErrMalformedPayload, err)
	}

	if len(data) < cursor+2 {
		return nil, fmt.Errorf("%w: canonical payload truncated before action_id", ErrMalformedPayload)
	}
	p.ActionID = binary.BigEndian.Uint16(data[cursor : cursor+2])
	cursor += 2

	if p.Args, cursor, err = readLengthPrefixed(data, cursor); err != nil {
		return nil, fmt.Errorf("%w: decode args: %v", ErrMalformedPayload, err)
	}
	if p.Result, cursor, err = readLengthPrefixed(data, cursor); err != nil {
		return nil, fmt.Errorf("%w: decode result: %v", ErrMalformedPayload, err)
	}

	if cursor != len(data) {
		return nil, fmt.Errorf("%w: canonical payload has %d trailing bytes", ErrMalformedPayload, len(data)-cursor)
	}
	return p, nil
}

// Decode splits a raw signed payload into its canonical part and signature and
// parses the canonical fields.
func Decode(raw []byte) (*SignedPayload, error) {
	if len(raw) < MinPayloadLength {
		return nil, fmt.Errorf("%w: payload too short: got %d bytes, need at least %d",
			ErrMalformedPayload, len(raw), MinPayloadLength)
	}

	split := len(raw) - SignatureLength
	canonicalBytes := bytes.Clone(raw[:split])
	signature := bytes.Clone(raw[split:])

	canonical, err := ParseCanonical(canonicalBytes)
	if err != nil {
		return nil, err
	}

	return &SignedPayload{
		Canonical:      canonical,
		CanonicalBytes: canonicalBytes,
		Signature:      signature,
	}, nil
}

// Digest computes sha256 over the canonical bytes as received.
func (s *SignedPayload) Digest() [sha256.Size]byte {
	return sha256.Sum256(s.CanonicalBytes)
}

// Bytes reassembles the raw payload (canonical bytes followed by signature).
func (s *SignedPayload) Bytes() []byte {
	out := make([]byte, 0, len(s.CanonicalBytes)+len(s.Signature))
	out = append(out, s.CanonicalBytes...)
	return append(out, s.Signature...)
}

// IsKnownAlgorithm reports whether the algorithm byte is defined.
func IsKnownAlgorithm(algo uint8) bool {
	return algo == AlgorithmSecp256k1
}

// readLengthPrefixed decodes a little-endian uint32 length followed by that many bytes.
func readLengthPrefixed(data []byte, cursor int) ([]byte, int, error) {
	if len(data) < cursor+4 {
		return nil, cursor, fmt.Errorf("truncated length prefix at offset %d", cursor)
	}

	length := binary.LittleEndian.Uint32(data[cursor : cursor+4])
	cursor += 4

	if uint64(len(data)-cursor) < uint64(length) {
		return nil, cursor, fmt.Errorf("declared length %d exceeds remaining %d bytes", length, len(data)-cursor)
	}

	chunk := data[cursor : cursor+int(length)]
	cursor += int(length)
	return bytes.Clone(chunk), cursor, nil
}

func writeLengthPrefixed(buf *bytes.Buffer, chunk []byte) {
	var prefix [4]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(len(chunk)))
	buf.Write(prefix[:])
	buf.Write(chunk)
}
