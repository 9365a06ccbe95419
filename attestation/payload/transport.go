package payload

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"
)

// Transport is a binary value as it crosses the RPC boundary: either base64
// text (JSON responses) or bytes that were already decoded by the transport.
type Transport interface {
	isTransport()
}

// Base64Text is a base64-encoded binary value.
type Base64Text string

// RawBytes is a binary value that needs no further decoding.
type RawBytes []byte

func (Base64Text) isTransport() {}
func (RawBytes) isTransport()   {}

// DecodeTransport converts a transport value into raw bytes. It is the only
// place where the base64-or-raw distinction is resolved.
func DecodeTransport(v Transport) ([]byte, error) {
	switch val := v.(type) {
	case Base64Text:
		text := strings.TrimSpace(string(val))
		decoded, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			// some gateways strip padding
			decoded, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(text, "="))
			if err != nil {
				return nil, fmt.Errorf("%w: invalid base64: %v", ErrMalformedPayload, err)
			}
		}
		return decoded, nil
	case RawBytes:
		if val == nil {
			return nil, fmt.Errorf("%w: missing binary value", ErrMalformedPayload)
		}
		return bytes.Clone(val), nil
	case nil:
		return nil, fmt.Errorf("%w: missing binary value", ErrMalformedPayload)
	default:
		return nil, fmt.Errorf("%w: unsupported transport value %T", ErrMalformedPayload, v)
	}
}

// TransportFromValue classifies a decoded column value. Strings are treated as
// base64 text, byte slices as raw bytes; nil is rejected rather than read as
// an empty value.
func TransportFromValue(v any) (Transport, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("%w: missing binary value", ErrMalformedPayload)
	case string:
		return Base64Text(val), nil
	case *string:
		if val == nil {
			return nil, fmt.Errorf("%w: missing binary value", ErrMalformedPayload)
		}
		return Base64Text(*val), nil
	case []byte:
		if val == nil {
			return nil, fmt.Errorf("%w: missing binary value", ErrMalformedPayload)
		}
		return RawBytes(val), nil
	case Transport:
		return val, nil
	default:
		return nil, fmt.Errorf("%w: unsupported binary column type %T", ErrMalformedPayload, v)
	}
}

// DecodeValue is TransportFromValue followed by DecodeTransport.
func DecodeValue(v any) ([]byte, error) {
	t, err := TransportFromValue(v)
	if err != nil {
		return nil, err
	}
	return DecodeTransport(t)
}
