/*
history.go - Transaction history interface

PURPOSE:
  Every applied deposit and withdrawal is remembered, because a dispute
  can reference it at any later point in the stream. The History only
  grows: entries are inserted once and afterwards only their dispute
  state changes.

IMPLEMENTATIONS:
  - ledger/store/memory.go: map-backed, the default
  - store/sqlite/sqlite.go: scratch SQLite database for very long streams

ERRORS:
  Insert returns ErrDuplicateTransaction when the tx id is taken; the
  engine turns that into a rejected record. Any other error is a storage
  failure and is fatal.
*/
package ledger

import "context"

// History stores HistoryEntry values keyed by TxID.
type History interface {
	// Get returns the entry for tx. found is false if tx was never inserted.
	Get(ctx context.Context, tx TxID) (entry HistoryEntry, found bool, err error)

	// Insert adds a new entry. Returns ErrDuplicateTransaction if tx exists,
	// leaving the stored entry untouched.
	Insert(ctx context.Context, entry HistoryEntry) error

	// SetState changes the dispute state of an existing entry.
	SetState(ctx context.Context, tx TxID, state DisputeState) error
}
