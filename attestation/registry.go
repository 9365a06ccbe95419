package attestation

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/samber/lo"

	"github.com/trufnetwork/attest/attestation/payload"
)

const (
	DefaultListLimit = 5000
	MaxListLimit     = 5000

	requesterLength = 20
)

// allowedOrderBy is matched case-insensitively.
var allowedOrderBy = []string{
	"created_height asc",
	"created_height desc",
	"signed_height asc",
	"signed_height desc",
}

// listAttestationColumns is the column order of list_attestations, used when
// a positional row arrives without column names.
var listAttestationColumns = []string{
	"request_tx_id",
	"attestation_hash",
	"requester",
	"data_provider",
	"stream_id",
	"created_height",
	"signed_height",
	"encrypt_sig",
}

// ListFilter narrows a list_attestations query. Nil pointers take defaults.
type ListFilter struct {
	// Requester is the 20-byte requester address.
	Requester []byte
	// RequestTxID selects a single request.
	RequestTxID string
	Limit       *int
	Offset      *int
	// OrderBy is one of "created_height asc|desc" or "signed_height asc|desc".
	OrderBy string
}

// AttestationMetadata is one row of the attestation registry.
type AttestationMetadata struct {
	RequestTxID     string
	AttestationHash []byte
	Requester       []byte
	DataProvider    string
	StreamID        string
	CreatedHeight   int64
	// SignedHeight is nil while the attestation is unsigned.
	SignedHeight *int64
	EncryptSig   bool
}

// Signed reports whether the leader has signed the attestation.
func (m *AttestationMetadata) Signed() bool {
	return m.SignedHeight != nil
}

// args validates the filter and returns the positional arguments of
// list_attestations: (requester, request_tx_id, limit, offset, order_by).
func (f ListFilter) args() ([]any, error) {
	var requester any
	if f.Requester != nil {
		if len(f.Requester) != requesterLength {
			return nil, validationErr("requester", "must be exactly %d bytes, got %d", requesterLength, len(f.Requester))
		}
		requester = f.Requester
	}

	var txID any
	if normalized := NormalizeTxID(f.RequestTxID); normalized != "" {
		txID = normalized
	}

	limit := DefaultListLimit
	if f.Limit != nil {
		if *f.Limit < 1 || *f.Limit > MaxListLimit {
			return nil, validationErr("limit", "must be between 1 and %d, got %d", MaxListLimit, *f.Limit)
		}
		limit = *f.Limit
	}

	offset := 0
	if f.Offset != nil {
		if *f.Offset < 0 {
			return nil, validationErr("offset", "must be non-negative, got %d", *f.Offset)
		}
		offset = *f.Offset
	}

	var orderBy any
	if f.OrderBy != "" {
		normalized := strings.ToLower(strings.Join(strings.Fields(f.OrderBy), " "))
		if !lo.Contains(allowedOrderBy, normalized) {
			return nil, validationErr("order_by", "%q is not one of %s", f.OrderBy, strings.Join(allowedOrderBy, ", "))
		}
		orderBy = normalized
	}

	return []any{requester, txID, int64(limit), int64(offset), orderBy}, nil
}

// metadataRow is the loosely typed shape rows are decoded into first. Binary
// columns stay untyped until they pass through the transport decoder.
type metadataRow struct {
	RequestTxID     string `mapstructure:"request_tx_id"`
	AttestationHash any    `mapstructure:"attestation_hash"`
	Requester       any    `mapstructure:"requester"`
	DataProvider    string `mapstructure:"data_provider"`
	StreamID        string `mapstructure:"stream_id"`
	CreatedHeight   int64  `mapstructure:"created_height"`
	SignedHeight    *int64 `mapstructure:"signed_height"`
	EncryptSig      bool   `mapstructure:"encrypt_sig"`
}

// decodeMetadataRows converts positional or named rows into metadata. Both
// shapes go through the same map decoding path.
func decodeMetadataRows(rows *QueryRows) ([]AttestationMetadata, error) {
	if rows == nil {
		return nil, nil
	}

	columns := rows.Columns
	if len(columns) == 0 {
		columns = listAttestationColumns
	}

	out := make([]AttestationMetadata, 0, len(rows.Rows))
	for i, row := range rows.Rows {
		named, err := rowToMap(row, columns)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		meta, err := decodeMetadata(named)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, *meta)
	}
	return out, nil
}

func rowToMap(row any, columns []string) (map[string]any, error) {
	switch r := row.(type) {
	case map[string]any:
		return r, nil
	case []any:
		if len(r) > len(columns) {
			return nil, fmt.Errorf("row has %d values but only %d columns are known", len(r), len(columns))
		}
		named := make(map[string]any, len(r))
		for i, v := range r {
			named[columns[i]] = v
		}
		return named, nil
	default:
		return nil, fmt.Errorf("unsupported row type %T", row)
	}
}

func decodeMetadata(named map[string]any) (*AttestationMetadata, error) {
	var raw metadataRow
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &raw,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(named); err != nil {
		return nil, fmt.Errorf("decode attestation row: %w", err)
	}

	hash, err := payload.DecodeValue(raw.AttestationHash)
	if err != nil {
		return nil, fmt.Errorf("attestation_hash: %w", err)
	}
	requester, err := payload.DecodeValue(raw.Requester)
	if err != nil {
		return nil, fmt.Errorf("requester: %w", err)
	}

	return &AttestationMetadata{
		RequestTxID:     NormalizeTxID(raw.RequestTxID),
		AttestationHash: hash,
		Requester:       requester,
		DataProvider:    raw.DataProvider,
		StreamID:        raw.StreamID,
		CreatedHeight:   raw.CreatedHeight,
		SignedHeight:    raw.SignedHeight,
		EncryptSig:      raw.EncryptSig,
	}, nil
}
