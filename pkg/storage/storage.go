// Package storage provides the content-addressed blob backends used to
// offload large port artifacts out of ledger transactions.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrBlobNotFound reports a missing key, regardless of backend.
var ErrBlobNotFound = errors.New("blob not found")

// MemoryStore is an in-process blob store for tests and single-node setups.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: map[string][]byte{}}
}

// Put stores a copy of data under key. Re-putting the same key overwrites,
// which is harmless for content-addressed keys.
func (m *MemoryStore) Put(_ context.Context, key string, data []byte) error {
	if key == "" {
		return fmt.Errorf("memory store: empty key")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), data...)
	return nil
}

// Get returns a copy of the blob under key.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, fmt.Errorf("memory store: key %q: %w", key, ErrBlobNotFound)
	}
	return append([]byte(nil), data...), nil
}

// Len reports the number of stored blobs.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}

// objectKey joins an optional prefix with a blob key.
func objectKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return strings.TrimSuffix(prefix, "/") + "/" + key
}
