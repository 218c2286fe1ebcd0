/*
Package ledger provides the payments state machine.

PURPOSE:
  This package turns a stream of transaction records into per-client
  balances. It owns the account model, the dispute lifecycle of each
  deposit, and the rules that decide whether a record is applied or
  rejected.

KEY CONCEPTS IN THIS FILE (types.go):
  - ClientID / TxID: opaque identifiers that cannot be mixed up
  - Record: one decoded input row (Deposit, Withdrawal, Dispute, Resolve, Chargeback)
  - HistoryEntry: a deposit or withdrawal remembered for later disputes
  - DisputeState: Active -> Disputed -> (Active | ChargedBack)

DESIGN PRINCIPLES:
  1. Precision: every amount is a money.Amount (fixed point, checked)
  2. Type Safety: client ids and transaction ids are distinct struct types
  3. No globals: all state lives in an Engine value
  4. Rejection is data: a bad record yields *TransactionError and the
     ledger carries on as if the record never arrived

USAGE:
  engine := ledger.NewEngine(store.NewMemory())
  err := engine.Apply(ctx, ledger.Deposit{
      Ref:    ledger.Ref{Tx: ledger.NewTxID(1), Client: ledger.NewClientID(1)},
      Amount: money.MustParse("10"),
  })

SEE ALSO:
  - engine.go: transition table
  - account.go: balance mutations
  - history.go: transaction history interface
  - errors.go: recoverable vs fatal errors
*/
package ledger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/warp/payments-engine/money"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// ClientID identifies a client account. Valid range is 0..65535.
type ClientID struct {
	id uint16
}

func NewClientID(id uint16) ClientID { return ClientID{id: id} }

// ParseClientID parses a base-10 client id, ignoring surrounding whitespace.
func ParseClientID(s string) (ClientID, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil {
		return ClientID{}, fmt.Errorf("invalid client id %q: %w", s, err)
	}
	return ClientID{id: uint16(v)}, nil
}

func (c ClientID) Uint16() uint16 { return c.id }
func (c ClientID) String() string { return strconv.FormatUint(uint64(c.id), 10) }

// TxID identifies a transaction. Valid range is 0..2^32-1.
type TxID struct {
	id uint32
}

func NewTxID(id uint32) TxID { return TxID{id: id} }

// ParseTxID parses a base-10 transaction id, ignoring surrounding whitespace.
func ParseTxID(s string) (TxID, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return TxID{}, fmt.Errorf("invalid transaction id %q: %w", s, err)
	}
	return TxID{id: uint32(v)}, nil
}

func (t TxID) Uint32() uint32 { return t.id }
func (t TxID) String() string { return strconv.FormatUint(uint64(t.id), 10) }

// =============================================================================
// RECORDS - One decoded input row
// =============================================================================

type Kind string

const (
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdrawal"
	KindDispute    Kind = "dispute"
	KindResolve    Kind = "resolve"
	KindChargeback Kind = "chargeback"
)

// ParseKind matches a record type case-insensitively.
func ParseKind(s string) (Kind, bool) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindDeposit, KindWithdrawal, KindDispute, KindResolve, KindChargeback:
		return k, true
	}
	return "", false
}

// HasAmount reports whether records of this kind carry an amount.
func (k Kind) HasAmount() bool {
	return k == KindDeposit || k == KindWithdrawal
}

// Kinds lists every record kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindDeposit, KindWithdrawal, KindDispute, KindResolve, KindChargeback}
}

// Ref is the (transaction, client) pair every record carries.
type Ref struct {
	Tx     TxID
	Client ClientID
}

// Reference returns the pair itself; it lets every record satisfy Record.
func (r Ref) Reference() Ref { return r }

func (r Ref) String() string { return fmt.Sprintf("tx=%s client=%s", r.Tx, r.Client) }

// Record is one of Deposit, Withdrawal, Dispute, Resolve or Chargeback.
// The set is closed: only this package can add variants.
type Record interface {
	Kind() Kind
	Reference() Ref
	sealed()
}

type Deposit struct {
	Ref
	Amount money.Amount
}

type Withdrawal struct {
	Ref
	Amount money.Amount
}

type Dispute struct{ Ref }

type Resolve struct{ Ref }

type Chargeback struct{ Ref }

func (Deposit) Kind() Kind    { return KindDeposit }
func (Withdrawal) Kind() Kind { return KindWithdrawal }
func (Dispute) Kind() Kind    { return KindDispute }
func (Resolve) Kind() Kind    { return KindResolve }
func (Chargeback) Kind() Kind { return KindChargeback }

func (Deposit) sealed()    {}
func (Withdrawal) sealed() {}
func (Dispute) sealed()    {}
func (Resolve) sealed()    {}
func (Chargeback) sealed() {}

// NewRecord builds the variant for kind. amount is ignored for kinds
// without one.
func NewRecord(kind Kind, ref Ref, amount money.Amount) (Record, error) {
	switch kind {
	case KindDeposit:
		return Deposit{Ref: ref, Amount: amount}, nil
	case KindWithdrawal:
		return Withdrawal{Ref: ref, Amount: amount}, nil
	case KindDispute:
		return Dispute{Ref: ref}, nil
	case KindResolve:
		return Resolve{Ref: ref}, nil
	case KindChargeback:
		return Chargeback{Ref: ref}, nil
	}
	return nil, fmt.Errorf("unknown record kind %q", kind)
}

// =============================================================================
// HISTORY ENTRY - Disputable transaction state
// =============================================================================

type DisputeState string

const (
	StateActive      DisputeState = "active"
	StateDisputed    DisputeState = "disputed"
	StateChargedBack DisputeState = "charged_back" // terminal
)

// HistoryEntry remembers an applied deposit or withdrawal. Entries are never
// removed; only State changes.
type HistoryEntry struct {
	Tx     TxID
	Client ClientID
	Amount money.Amount
	Kind   Kind
	State  DisputeState
}
