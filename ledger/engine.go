/*
engine.go - The ledger state machine

PURPOSE:
  Engine applies records one at a time against the accounts it owns and
  the History it was given. Each record is either applied in full or
  rejected with a *TransactionError and no effect.

TRANSITIONS:
  Deposit     not locked                       available += amount, entry Active
  Withdrawal  not locked, available >= amount  available -= amount, entry Active
  Dispute     entry is a deposit, Active       available -= amt, held += amt, Disputed
  Resolve     entry Disputed                   held -= amt, available += amt, Active
  Chargeback  entry Disputed                   held -= amt, account locked, ChargedBack

  Dispute, Resolve and Chargeback also require the entry to exist and to
  belong to the record's client. A locked account still accepts them.

  The account named by a record is created before any check, so a client
  that only ever sent rejected records still appears in the report.

CONCURRENCY:
  None. An Engine is used by one goroutine; callers that need several
  ledgers create several engines.

SEE ALSO:
  - account.go: the balance mutations
  - stream.go: Run, which drains a Source through Apply
*/
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/warp/payments-engine/money"
	"go.uber.org/zap"
)

// Engine owns the accounts and transaction history of one run.
type Engine struct {
	accounts *Accounts
	history  History
	logger   *zap.Logger
	onReject func(*TransactionError)
	stats    Stats
}

type Option func(*Engine)

// WithLogger sets the logger used for rejected records.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithRejectHandler registers fn to be called for every rejected record
// seen by Run, after it has been logged.
func WithRejectHandler(fn func(*TransactionError)) Option {
	return func(e *Engine) { e.onReject = fn }
}

// NewEngine creates an engine with no accounts over the given history.
func NewEngine(history History, opts ...Option) *Engine {
	e := &Engine{
		accounts: NewAccounts(),
		history:  history,
		logger:   zap.NewNop(),
		stats:    newStats(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply processes one record. It returns nil, a *TransactionError when the
// record is rejected, or a *FatalError when the run must stop.
func (e *Engine) Apply(ctx context.Context, rec Record) error {
	if rec == nil {
		e.stats.Malformed++
		return &TransactionError{Err: fmt.Errorf("%w: nil record", ErrMalformedRecord)}
	}
	acc := e.accounts.Get(rec.Reference().Client)

	var err error
	switch r := rec.(type) {
	case Deposit:
		err = e.deposit(ctx, acc, r)
	case Withdrawal:
		err = e.withdraw(ctx, acc, r)
	case Dispute:
		err = e.dispute(ctx, acc, r)
	case Resolve:
		err = e.resolve(ctx, acc, r)
	case Chargeback:
		err = e.chargeback(ctx, acc, r)
	default:
		err = reject(rec, ErrMalformedRecord)
	}

	e.stats.observe(rec.Kind(), err)
	return err
}

// Accounts returns every account in ascending client order.
func (e *Engine) Accounts() ([]AccountSnapshot, error) {
	return e.accounts.Snapshot()
}

// Account returns a snapshot of one client's account. The error is fatal
// and only set when the total does not fit.
func (e *Engine) Account(client ClientID) (AccountSnapshot, bool, error) {
	acc, ok := e.accounts.Lookup(client)
	if !ok {
		return AccountSnapshot{}, false, nil
	}
	snap, err := acc.snapshot(client)
	if err != nil {
		return AccountSnapshot{}, true, err
	}
	return snap, true, nil
}

// Stats returns a copy of the per-kind counters.
func (e *Engine) Stats() Stats {
	return e.stats.clone()
}

// =============================================================================
// DEPOSIT / WITHDRAWAL
// =============================================================================

func (e *Engine) deposit(ctx context.Context, acc *Account, r Deposit) error {
	if r.Amount.IsNegative() {
		return reject(r, ErrNegativeAmount)
	}
	if acc.locked {
		return reject(r, ErrAccountLocked)
	}
	if err := e.record(ctx, r, r.Amount); err != nil {
		return err
	}
	if err := acc.credit(r.Amount); err != nil {
		return Fatal("deposit "+r.Ref.String(), err)
	}
	return nil
}

func (e *Engine) withdraw(ctx context.Context, acc *Account, r Withdrawal) error {
	if r.Amount.IsNegative() {
		return reject(r, ErrNegativeAmount)
	}
	if acc.locked {
		return reject(r, ErrAccountLocked)
	}
	if acc.available.LessThan(r.Amount) {
		return reject(r, ErrInsufficientFunds)
	}
	if err := e.record(ctx, r, r.Amount); err != nil {
		return err
	}
	if err := acc.debit(r.Amount); err != nil {
		return Fatal("withdrawal "+r.Ref.String(), err)
	}
	return nil
}

// record inserts the history entry for a deposit or withdrawal.
func (e *Engine) record(ctx context.Context, rec Record, amount money.Amount) error {
	ref := rec.Reference()
	entry := HistoryEntry{
		Tx:     ref.Tx,
		Client: ref.Client,
		Amount: amount,
		Kind:   rec.Kind(),
		State:  StateActive,
	}

	err := e.history.Insert(ctx, entry)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrDuplicateTransaction):
		return reject(rec, ErrDuplicateTransaction)
	default:
		return Fatal("insert history "+ref.String(), err)
	}
}

// =============================================================================
// DISPUTE LIFECYCLE
// =============================================================================

// lookup fetches the entry a dispute-family record refers to and checks
// that it exists and belongs to the record's client.
func (e *Engine) lookup(ctx context.Context, rec Record) (HistoryEntry, error) {
	ref := rec.Reference()
	entry, found, err := e.history.Get(ctx, ref.Tx)
	if err != nil {
		return HistoryEntry{}, Fatal("load history "+ref.String(), err)
	}
	if !found {
		return HistoryEntry{}, reject(rec, ErrUnknownTransaction)
	}
	if entry.Client != ref.Client {
		return HistoryEntry{}, reject(rec, ErrClientMismatch)
	}
	return entry, nil
}

func (e *Engine) transition(ctx context.Context, rec Record, state DisputeState) error {
	ref := rec.Reference()
	if err := e.history.SetState(ctx, ref.Tx, state); err != nil {
		return Fatal("update history "+ref.String(), err)
	}
	return nil
}

func (e *Engine) dispute(ctx context.Context, acc *Account, r Dispute) error {
	entry, err := e.lookup(ctx, r)
	if err != nil {
		return err
	}
	if entry.Kind != KindDeposit {
		return reject(r, ErrNotDisputable)
	}
	switch entry.State {
	case StateDisputed:
		return reject(r, ErrAlreadyDisputed)
	case StateChargedBack:
		return reject(r, ErrChargedBack)
	}

	if err := acc.hold(entry.Amount); err != nil {
		return Fatal("dispute "+r.Ref.String(), err)
	}
	return e.transition(ctx, r, StateDisputed)
}

func (e *Engine) resolve(ctx context.Context, acc *Account, r Resolve) error {
	entry, err := e.lookup(ctx, r)
	if err != nil {
		return err
	}
	if err := requireDisputed(r, entry); err != nil {
		return err
	}

	if err := acc.release(entry.Amount); err != nil {
		return Fatal("resolve "+r.Ref.String(), err)
	}
	return e.transition(ctx, r, StateActive)
}

func (e *Engine) chargeback(ctx context.Context, acc *Account, r Chargeback) error {
	entry, err := e.lookup(ctx, r)
	if err != nil {
		return err
	}
	if err := requireDisputed(r, entry); err != nil {
		return err
	}

	if err := acc.chargeback(entry.Amount); err != nil {
		return Fatal("chargeback "+r.Ref.String(), err)
	}
	return e.transition(ctx, r, StateChargedBack)
}

func requireDisputed(rec Record, entry HistoryEntry) error {
	switch entry.State {
	case StateDisputed:
		return nil
	case StateChargedBack:
		return reject(rec, ErrChargedBack)
	default:
		return reject(rec, ErrNotDisputed)
	}
}
