// Package store persists signed attestation payloads on local disk.
package store

import (
	"bytes"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"

	"github.com/trufnetwork/attest/attestation"
)

var keyPrefix = []byte("attestation/payload/")

// PayloadStore is a pebble-backed attestation.PayloadStore.
type PayloadStore struct {
	mu     sync.RWMutex
	db     *pebble.DB
	closed bool
}

var _ attestation.PayloadStore = (*PayloadStore)(nil)

// Open opens or creates a store in dir.
func Open(dir string) (*PayloadStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "open payload store at %s", dir)
	}
	return &PayloadStore{db: db}, nil
}

// Get returns the cached payload for txID.
func (s *PayloadStore) Get(txID string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, errors.New("payload store is closed")
	}

	value, closer, err := s.db.Get(key(txID))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "read payload %s", txID)
	}
	defer closer.Close()

	// value is only valid until closer is closed
	return bytes.Clone(value), true, nil
}

// Put stores payload under txID. Writes are synced.
func (s *PayloadStore) Put(txID string, payload []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.New("payload store is closed")
	}

	if err := s.db.Set(key(txID), payload, pebble.Sync); err != nil {
		return errors.Wrapf(err, "write payload %s", txID)
	}
	return nil
}

// Delete removes the payload for txID, if any.
func (s *PayloadStore) Delete(txID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.New("payload store is closed")
	}
	return errors.Wrapf(s.db.Delete(key(txID), pebble.Sync), "delete payload %s", txID)
}

// Close flushes and closes the store. It is safe to call more than once.
func (s *PayloadStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func key(txID string) []byte {
	normalized := attestation.NormalizeTxID(txID)
	k := make([]byte, 0, len(keyPrefix)+len(normalized))
	k = append(k, keyPrefix...)
	return append(k, normalized...)
}
