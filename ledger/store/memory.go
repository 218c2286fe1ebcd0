// Package store provides History implementations.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/warp/payments-engine/ledger"
)

// =============================================================================
// MEMORY STORE - Map-backed history (default)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	entries map[ledger.TxID]ledger.HistoryEntry
}

var _ ledger.History = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{entries: make(map[ledger.TxID]ledger.HistoryEntry)}
}

func (m *Memory) Get(_ context.Context, tx ledger.TxID) (ledger.HistoryEntry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[tx]
	return entry, ok, nil
}

// Insert adds entry if its tx id is new.
func (m *Memory) Insert(_ context.Context, entry ledger.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[entry.Tx]; exists {
		return ledger.ErrDuplicateTransaction
	}
	m.entries[entry.Tx] = entry
	return nil
}

func (m *Memory) SetState(_ context.Context, tx ledger.TxID, state ledger.DisputeState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[tx]
	if !ok {
		return fmt.Errorf("set state of tx %s: %w", tx, ledger.ErrUnknownTransaction)
	}
	entry.State = state
	m.entries[tx] = entry
	return nil
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
