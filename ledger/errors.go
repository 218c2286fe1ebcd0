/*
errors.go - Error types for the ledger engine

PURPOSE:
  All error types in one place. There are exactly two classes:

  1. TransactionError - one record was rejected. The record is skipped,
     the error is logged, processing continues. State is exactly what it
     would be had the record been absent.
  2. FatalError - the run cannot continue (amount overflow, history
     storage failure, unreadable input). Propagates to the top level.

USAGE:
  switch err := engine.Apply(ctx, rec); {
  case err == nil:
  case ledger.IsRecoverable(err):
      log it, continue
  default:
      return err
  }

  Sentinels are reachable with errors.Is:

    if errors.Is(err, ledger.ErrInsufficientFunds) { ... }
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMalformedRecord is returned by decoders for rows that are not a valid record.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrDuplicateTransaction is returned when a deposit or withdrawal reuses a tx id.
	ErrDuplicateTransaction = errors.New("duplicate transaction id")

	// ErrUnknownTransaction is returned when a dispute, resolve or chargeback
	// references a tx id that was never applied.
	ErrUnknownTransaction = errors.New("unknown transaction")

	// ErrClientMismatch is returned when the referenced tx belongs to another client.
	ErrClientMismatch = errors.New("transaction belongs to another client")

	// ErrInsufficientFunds is returned when a withdrawal exceeds available funds.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAccountLocked is returned for deposits and withdrawals on a locked account.
	ErrAccountLocked = errors.New("account locked")

	// ErrNotDisputable is returned when a dispute targets a withdrawal.
	ErrNotDisputable = errors.New("only deposits can be disputed")

	// ErrAlreadyDisputed is returned when a dispute targets an entry under dispute.
	ErrAlreadyDisputed = errors.New("transaction already disputed")

	// ErrNotDisputed is returned when a resolve or chargeback targets an entry
	// that is not under dispute.
	ErrNotDisputed = errors.New("transaction not disputed")

	// ErrChargedBack is returned for any dispute operation on a charged back entry.
	ErrChargedBack = errors.New("transaction already charged back")

	// ErrNegativeAmount is returned for deposits or withdrawals below zero.
	ErrNegativeAmount = errors.New("negative amount")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// TransactionError reports a rejected record. It is recoverable.
type TransactionError struct {
	Kind Kind
	Ref  Ref
	// Line is the 1-based input line, when known.
	Line int
	Err  error
}

func (e *TransactionError) Error() string {
	kind := string(e.Kind)
	if kind == "" {
		kind = "record"
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s rejected (line %d, %s): %v", kind, e.Line, e.Ref, e.Err)
	}
	return fmt.Sprintf("%s rejected (%s): %v", kind, e.Ref, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }

func reject(rec Record, err error) *TransactionError {
	return &TransactionError{Kind: rec.Kind(), Ref: rec.Reference(), Err: err}
}

// FatalError stops the run.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Fatal wraps err as a *FatalError unless it already is one.
func Fatal(op string, err error) error {
	if err == nil {
		return nil
	}
	var fe *FatalError
	if errors.As(err, &fe) {
		return err
	}
	return &FatalError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRecoverable returns true if err only rejects a single record.
func IsRecoverable(err error) bool {
	var te *TransactionError
	return errors.As(err, &te) && !IsFatal(err)
}

// IsFatal returns true if err must stop the run.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
