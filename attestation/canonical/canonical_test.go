package canonical

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeBasicTypes(t *testing.T) {
	original := []any{
		int64(42),
		"hello",
		[]byte("world"),
		true,
		nil,
	}

	encoded, err := EncodeActionArgs(original)
	require.NoError(t, err)

	decoded, err := DecodeActionArgs(encoded)
	require.NoError(t, err)

	assert.Equal(t, original, decoded)
}

func TestIntegersAreWidened(t *testing.T) {
	narrow, err := EncodeActionArgs([]any{int8(7), int32(7), uint16(7), 7})
	require.NoError(t, err)

	wide, err := EncodeActionArgs([]any{int64(7), int64(7), int64(7), int64(7)})
	require.NoError(t, err)

	assert.Equal(t, wide, narrow)

	decoded, err := DecodeActionArgs(narrow)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(7), int64(7), int64(7), int64(7)}, decoded)
}

func TestDeterministicEncoding(t *testing.T) {
	original := []any{int64(42), "hello", []byte("world"), false, nil}

	encoded1, err := EncodeActionArgs(original)
	require.NoError(t, err)

	encoded2, err := EncodeActionArgs(original)
	require.NoError(t, err)

	assert.Equal(t, encoded1, encoded2)
}

func TestDistinctInputsDoNotCollide(t *testing.T) {
	base := []any{"0x4710a8d8f0d845da110086812a32de6d90d7ff5c", int64(1700000000), true, nil, []byte{0x01}}

	variants := map[string][]any{
		"string":       {"0x4710a8d8f0d845da110086812a32de6d90d7ff5d", int64(1700000000), true, nil, []byte{0x01}},
		"integer":      {"0x4710a8d8f0d845da110086812a32de6d90d7ff5c", int64(1700000001), true, nil, []byte{0x01}},
		"boolean":      {"0x4710a8d8f0d845da110086812a32de6d90d7ff5c", int64(1700000000), false, nil, []byte{0x01}},
		"null vs text": {"0x4710a8d8f0d845da110086812a32de6d90d7ff5c", int64(1700000000), true, "", []byte{0x01}},
		"bytes":        {"0x4710a8d8f0d845da110086812a32de6d90d7ff5c", int64(1700000000), true, nil, []byte{0x02}},
	}

	baseBytes, err := EncodeActionArgs(base)
	require.NoError(t, err)

	for name, variant := range variants {
		t.Run(name, func(t *testing.T) {
			encoded, err := EncodeActionArgs(variant)
			require.NoError(t, err)
			assert.NotEqual(t, baseBytes, encoded)
		})
	}
}

func TestConcatenationBoundariesAreDistinct(t *testing.T) {
	a, err := EncodeActionArgs([]any{"ab", "c"})
	require.NoError(t, err)
	b, err := EncodeActionArgs([]any{"a", "bc"})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	// same type tag, different representation: text "1" vs integer 1
	c, err := EncodeActionArgs([]any{"1"})
	require.NoError(t, err)
	d, err := EncodeActionArgs([]any{int64(1)})
	require.NoError(t, err)
	assert.NotEqual(t, c, d)
}

func TestFraming(t *testing.T) {
	encoded, err := EncodeActionArgs([]any{int64(1), "x"})
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(encoded), 4)
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(encoded[:4]))

	firstLen := binary.LittleEndian.Uint32(encoded[4:8])
	secondOffset := 8 + int(firstLen)
	require.Greater(t, len(encoded), secondOffset+4)
	secondLen := binary.LittleEndian.Uint32(encoded[secondOffset : secondOffset+4])
	assert.Equal(t, len(encoded), secondOffset+4+int(secondLen))
}

func TestEmptyArgs(t *testing.T) {
	encoded, err := EncodeActionArgs([]any{})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0}, encoded)

	decoded, err := DecodeActionArgs(encoded)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestUnsupportedArgumentType(t *testing.T) {
	tests := []struct {
		name string
		arg  any
	}{
		{"float", 3.14},
		{"map", map[string]any{"a": 1}},
		{"struct", struct{}{}},
		{"string slice", []string{"a"}},
		{"uint64 overflow", uint64(math.MaxUint64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EncodeActionArgs([]any{"ok", tt.arg})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnsupportedArgumentType)
			assert.Contains(t, err.Error(), "arg 1")
		})
	}
}

func TestDecodeActionArgsErrors(t *testing.T) {
	_, err := DecodeActionArgs([]byte{0x01})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too short")

	// claims one argument of 16 bytes but carries none
	truncated := []byte{1, 0, 0, 0, 16, 0, 0, 0}
	_, err = DecodeActionArgs(truncated)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds remaining")

	encoded, err := EncodeActionArgs([]any{int64(5)})
	require.NoError(t, err)
	_, err = DecodeActionArgs(append(encoded, 0xFF))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trailing bytes")
}

func TestEncodeDecodeQueryResult(t *testing.T) {
	rows := [][]any{
		{int64(1700000000), "101.5"},
		{int64(1700086400), "102.25"},
	}

	encoded, err := EncodeQueryResult(rows)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(encoded[:4]))

	decoded, err := DecodeQueryResult(encoded)
	require.NoError(t, err)
	assert.Equal(t, rows, decoded)

	empty, err := EncodeQueryResult(nil)
	require.NoError(t, err)
	decoded, err = DecodeQueryResult(empty)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}
