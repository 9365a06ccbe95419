package attestation

import (
	"context"
	"time"
)

// TxClient is the transaction client the attestation protocol is layered on.
// Submission, finality tracking and read-only calls are its responsibility.
type TxClient interface {
	// Submit broadcasts a mutating action and returns its transaction id.
	Submit(ctx context.Context, action string, args []any) (string, error)
	// WaitForFinality blocks until txID is included in a block. A transaction
	// that was included but failed returns an error carrying the node log.
	WaitForFinality(ctx context.Context, txID string, timeout time.Duration) (*TxConfirmation, error)
	// CallReadOnly executes a view action.
	CallReadOnly(ctx context.Context, action string, args []any) (*QueryRows, error)
}

// TxConfirmation reports where a transaction was included.
type TxConfirmation struct {
	TxID   string
	Height int64
	Code   uint32
	Log    string
}

// QueryRows is a read-only call result. Each row is either an ordered []any
// (positional, optionally named by Columns) or a map[string]any keyed by
// column name.
type QueryRows struct {
	Columns []string
	Rows    []any
}
