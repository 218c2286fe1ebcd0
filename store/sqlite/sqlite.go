/*
Package sqlite provides a SQLite-backed ledger.History.

PURPOSE:
  The in-memory history keeps one entry per deposit and withdrawal for
  the whole run. For very long inputs the history can live in SQLite
  instead, so memory stays proportional to the number of clients.

SCRATCH DATABASE:
  The history table is dropped and recreated by New. Nothing survives
  between runs; pass ":memory:" or a temporary file path.

KEY TABLE:
  history: one row per applied deposit/withdrawal
    tx      INTEGER PRIMARY KEY  (uniqueness of transaction ids)
    client  INTEGER
    amount  INTEGER              (money.Amount raw value, exact)
    kind    TEXT                 (deposit | withdrawal)
    state   TEXT                 (active | disputed | charged_back)

CONCURRENCY:
  One connection; a mutex serializes access the same way the memory
  store does.

USAGE:
  hist, err := sqlite.New("/tmp/history.db")
  if err != nil {
      return err
  }
  defer hist.Close()
  engine := ledger.NewEngine(hist)

SEE ALSO:
  - ledger/history.go: interface definition
  - ledger/store/memory.go: default implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/payments-engine/ledger"
	"github.com/warp/payments-engine/money"
)

// Store implements ledger.History using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex

	get    *sql.Stmt
	insert *sql.Stmt
	update *sql.Stmt
}

var _ ledger.History = (*Store)(nil)

// New opens dbPath and recreates the history table.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=OFF")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := store.prepare(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	for _, stmt := range []*sql.Stmt{s.get, s.insert, s.update} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	DROP TABLE IF EXISTS history;

	CREATE TABLE history (
		tx INTEGER PRIMARY KEY,
		client INTEGER NOT NULL,
		amount INTEGER NOT NULL,
		kind TEXT NOT NULL,
		state TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) prepare() error {
	var err error
	if s.get, err = s.db.Prepare(`SELECT client, amount, kind, state FROM history WHERE tx = ?`); err != nil {
		return err
	}
	if s.insert, err = s.db.Prepare(`INSERT INTO history (tx, client, amount, kind, state) VALUES (?, ?, ?, ?, ?)`); err != nil {
		return err
	}
	if s.update, err = s.db.Prepare(`UPDATE history SET state = ? WHERE tx = ?`); err != nil {
		return err
	}
	return nil
}

// =============================================================================
// HISTORY (ledger.History interface)
// =============================================================================

func (s *Store) Get(ctx context.Context, tx ledger.TxID) (ledger.HistoryEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		client uint16
		raw    int64
		kind   string
		state  string
	)
	err := s.get.QueryRowContext(ctx, tx.Uint32()).Scan(&client, &raw, &kind, &state)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.HistoryEntry{}, false, nil
	}
	if err != nil {
		return ledger.HistoryEntry{}, false, fmt.Errorf("failed to load tx %s: %w", tx, err)
	}

	return ledger.HistoryEntry{
		Tx:     tx,
		Client: ledger.NewClientID(client),
		Amount: money.FromRaw(raw),
		Kind:   ledger.Kind(kind),
		State:  ledger.DisputeState(state),
	}, true, nil
}

// Insert adds entry. The primary key on tx enforces uniqueness.
func (s *Store) Insert(ctx context.Context, entry ledger.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.insert.ExecContext(ctx,
		entry.Tx.Uint32(),
		entry.Client.Uint16(),
		entry.Amount.Raw(),
		string(entry.Kind),
		string(entry.State),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateTransaction
		}
		return fmt.Errorf("failed to insert tx %s: %w", entry.Tx, err)
	}
	return nil
}

func (s *Store) SetState(ctx context.Context, tx ledger.TxID, state ledger.DisputeState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.update.ExecContext(ctx, string(state), tx.Uint32())
	if err != nil {
		return fmt.Errorf("failed to update tx %s: %w", tx, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update tx %s: %w", tx, err)
	}
	if n == 0 {
		return fmt.Errorf("set state of tx %s: %w", tx, ledger.ErrUnknownTransaction)
	}
	return nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Len returns the number of stored entries.
func (s *Store) Len(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM history`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		se.ExtendedCode == sqlite3.ErrConstraintUnique
}
