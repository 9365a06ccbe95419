// Package canonical produces the deterministic byte encodings that attestation
// requests and signed results are built from.
//
// Both the requester and any independent verifier must produce byte-for-byte
// identical output for the same values, so the encoding delegates each value
// to Kwil's native types.EncodedValue format (the same encoding validators use
// when they execute and sign the query) and frames it with little-endian
// uint32 counts and lengths.
//
// Arguments:
//
//	[arg_count:uint32 LE]
//	repeated: [arg_len:uint32 LE][types.EncodedValue binary]
//
// Query results:
//
//	[row_count:uint32 LE]
//	repeated rows: [col_count:uint32 LE]
//	               repeated cols: [col_len:uint32 LE][types.EncodedValue binary]
//
// EncodedValue carries an explicit type tag and length-prefixed data: integers
// are 8-byte big-endian INT8 values, booleans a single byte, text its UTF-8
// bytes, bytea its raw bytes and null a typed null marker.
package canonical

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/trufnetwork/kwil-db/core/types"
)

// ErrUnsupportedArgumentType is returned when an argument is not one of the
// scalar kinds the attestation protocol canonicalises.
var ErrUnsupportedArgumentType = errors.New("unsupported argument type")

// EncodeActionArgs encodes action arguments into canonical bytes.
//
// Supported values are nil, string, bool, []byte and every Go integer kind.
// Integers are widened to int64 so that int32(7) and int64(7) canonicalise
// identically; unsigned values above math.MaxInt64 are rejected.
func EncodeActionArgs(args []any) ([]byte, error) {
	normalized := make([]any, len(args))
	for i, arg := range args {
		v, err := NormalizeArg(arg)
		if err != nil {
			return nil, fmt.Errorf("arg %d: %w", i, err)
		}
		normalized[i] = v
	}

	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(normalized))); err != nil {
		return nil, fmt.Errorf("failed to write arg count: %w", err)
	}

	for i, arg := range normalized {
		argBytes, err := encodeValue(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to encode arg %d: %w", i, err)
		}
		writeLengthPrefixed(buf, argBytes)
	}

	return buf.Bytes(), nil
}

// DecodeActionArgs is the inverse of EncodeActionArgs.
func DecodeActionArgs(data []byte) ([]any, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("data too short for arg count")
	}

	r := bytes.NewReader(data)

	var argCount uint32
	if err := binary.Read(r, binary.LittleEndian, &argCount); err != nil {
		return nil, fmt.Errorf("failed to read arg count: %w", err)
	}
	// every argument needs at least its 4-byte length prefix
	if uint64(argCount)*4 > uint64(r.Len()) {
		return nil, fmt.Errorf("arg count %d exceeds remaining %d bytes", argCount, r.Len())
	}

	args := make([]any, argCount)
	for i := uint32(0); i < argCount; i++ {
		v, err := readValue(r)
		if err != nil {
			return nil, fmt.Errorf("arg %d: %w", i, err)
		}
		args[i] = v
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("args have %d trailing bytes", r.Len())
	}
	return args, nil
}

// EncodeQueryResult encodes rows of column values into canonical bytes, the
// format validators sign as the attested query result.
func EncodeQueryResult(rows [][]any) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(rows))); err != nil {
		return nil, fmt.Errorf("failed to write row count: %w", err)
	}

	for i, row := range rows {
		if err := binary.Write(buf, binary.LittleEndian, uint32(len(row))); err != nil {
			return nil, fmt.Errorf("failed to write col count for row %d: %w", i, err)
		}
		for j, value := range row {
			colBytes, err := encodeValue(value)
			if err != nil {
				return nil, fmt.Errorf("failed to encode col %d of row %d: %w", j, i, err)
			}
			writeLengthPrefixed(buf, colBytes)
		}
	}

	return buf.Bytes(), nil
}

// DecodeQueryResult is the inverse of EncodeQueryResult.
func DecodeQueryResult(data []byte) ([][]any, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("data too short for row count")
	}

	r := bytes.NewReader(data)

	var rowCount uint32
	if err := binary.Read(r, binary.LittleEndian, &rowCount); err != nil {
		return nil, fmt.Errorf("failed to read row count: %w", err)
	}
	if uint64(rowCount)*4 > uint64(r.Len()) {
		return nil, fmt.Errorf("row count %d exceeds remaining %d bytes", rowCount, r.Len())
	}

	rows := make([][]any, rowCount)
	for i := uint32(0); i < rowCount; i++ {
		var colCount uint32
		if err := binary.Read(r, binary.LittleEndian, &colCount); err != nil {
			return nil, fmt.Errorf("failed to read col count for row %d: %w", i, err)
		}
		if uint64(colCount)*4 > uint64(r.Len()) {
			return nil, fmt.Errorf("col count %d of row %d exceeds remaining %d bytes", colCount, i, r.Len())
		}

		row := make([]any, 0, colCount)
		for j := uint32(0); j < colCount; j++ {
			v, err := readValue(r)
			if err != nil {
				return nil, fmt.Errorf("col %d of row %d: %w", j, i, err)
			}
			row = append(row, v)
		}
		rows[i] = row
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("result has %d trailing bytes", r.Len())
	}
	return rows, nil
}

// NormalizeArg maps a caller-supplied value onto the canonical Go type used for
// encoding. It is exported so callers can validate arguments up front.
func NormalizeArg(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string, bool:
		return val, nil
	case []byte:
		if val == nil {
			return nil, nil
		}
		return val, nil
	case int:
		return int64(val), nil
	case int8:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case int64:
		return val, nil
	case uint8:
		return int64(val), nil
	case uint16:
		return int64(val), nil
	case uint32:
		return int64(val), nil
	case uint:
		if uint64(val) > math.MaxInt64 {
			return nil, fmt.Errorf("%w: uint value %d overflows int64", ErrUnsupportedArgumentType, val)
		}
		return int64(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("%w: uint64 value %d overflows int64", ErrUnsupportedArgumentType, val)
		}
		return int64(val), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedArgumentType, v)
	}
}

func encodeValue(v any) ([]byte, error) {
	encoded, err := types.EncodeValue(v)
	if err != nil {
		return nil, err
	}
	return encoded.MarshalBinary()
}

func readValue(r *bytes.Reader) (any, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("failed to read length: %w", err)
	}
	if int64(n) > int64(r.Len()) {
		return nil, fmt.Errorf("declared length %d exceeds remaining %d bytes", n, r.Len())
	}

	raw := make([]byte, n)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("failed to read value bytes: %w", err)
	}

	var encoded types.EncodedValue
	if err := encoded.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal value: %w", err)
	}
	decoded, err := encoded.Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to decode value: %w", err)
	}
	return decoded, nil
}

// writeLengthPrefixed never fails: bytes.Buffer writes only panic on OOM.
func writeLengthPrefixed(buf *bytes.Buffer, chunk []byte) {
	var prefix [4]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(len(chunk)))
	buf.Write(prefix[:])
	buf.Write(chunk)
}
