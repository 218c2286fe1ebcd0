/*
account.go - Per-client balance state

PURPOSE:
  An Account holds the available and held funds of one client plus the
  locked flag. Total is never stored; it is computed on read so it can
  not drift from available + held.

CRITICAL INVARIANTS:
  1. held >= 0
  2. total = available + held, and the sum fits in a money.Amount
  3. locked never goes back to false

  Every mutation computes the new balances first and commits only if all
  of them are valid, so a failed mutation leaves the account untouched.

SEE ALSO:
  - engine.go: decides which mutation a record triggers
*/
package ledger

import (
	"errors"
	"sort"

	"github.com/warp/payments-engine/money"
)

var errNegativeHeld = errors.New("held balance would go negative")

// Account is the balance state of one client.
type Account struct {
	available money.Amount
	held      money.Amount
	locked    bool
}

func (a *Account) Available() money.Amount { return a.available }
func (a *Account) Held() money.Amount      { return a.held }
func (a *Account) Locked() bool            { return a.locked }

// Total returns available + held.
func (a *Account) Total() (money.Amount, error) {
	return a.available.Add(a.held)
}

// commit installs new balances after checking the invariants.
func (a *Account) commit(available, held money.Amount) error {
	if held.IsNegative() {
		return errNegativeHeld
	}
	if _, err := available.Add(held); err != nil {
		return err
	}
	a.available = available
	a.held = held
	return nil
}

func (a *Account) credit(amount money.Amount) error {
	available, err := a.available.Add(amount)
	if err != nil {
		return err
	}
	return a.commit(available, a.held)
}

func (a *Account) debit(amount money.Amount) error {
	available, err := a.available.Sub(amount)
	if err != nil {
		return err
	}
	return a.commit(available, a.held)
}

// hold moves amount from available to held.
func (a *Account) hold(amount money.Amount) error {
	available, err := a.available.Sub(amount)
	if err != nil {
		return err
	}
	held, err := a.held.Add(amount)
	if err != nil {
		return err
	}
	return a.commit(available, held)
}

// release moves amount from held back to available.
func (a *Account) release(amount money.Amount) error {
	held, err := a.held.Sub(amount)
	if err != nil {
		return err
	}
	available, err := a.available.Add(amount)
	if err != nil {
		return err
	}
	return a.commit(available, held)
}

// chargeback removes amount from held and locks the account.
func (a *Account) chargeback(amount money.Amount) error {
	held, err := a.held.Sub(amount)
	if err != nil {
		return err
	}
	if err := a.commit(a.available, held); err != nil {
		return err
	}
	a.locked = true
	return nil
}

// =============================================================================
// ACCOUNTS - Lazily populated client map
// =============================================================================

// Accounts maps client ids to accounts. Accounts are created on first
// reference and never removed.
type Accounts struct {
	byClient map[ClientID]*Account
}

func NewAccounts() *Accounts {
	return &Accounts{byClient: make(map[ClientID]*Account)}
}

// Get returns the account for client, creating an empty one if needed.
func (as *Accounts) Get(client ClientID) *Account {
	acc, ok := as.byClient[client]
	if !ok {
		acc = &Account{}
		as.byClient[client] = acc
	}
	return acc
}

// Lookup returns the account for client without creating it.
func (as *Accounts) Lookup(client ClientID) (*Account, bool) {
	acc, ok := as.byClient[client]
	return acc, ok
}

func (as *Accounts) Len() int { return len(as.byClient) }

// AccountSnapshot is a read-only copy of an account, with its total.
type AccountSnapshot struct {
	Client    ClientID
	Available money.Amount
	Held      money.Amount
	Total     money.Amount
	Locked    bool
}

// Snapshot returns every account in ascending client order.
func (as *Accounts) Snapshot() ([]AccountSnapshot, error) {
	out := make([]AccountSnapshot, 0, len(as.byClient))
	for client, acc := range as.byClient {
		snap, err := acc.snapshot(client)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Client.Uint16() < out[j].Client.Uint16()
	})
	return out, nil
}

func (a *Account) snapshot(client ClientID) (AccountSnapshot, error) {
	total, err := a.Total()
	if err != nil {
		return AccountSnapshot{}, Fatal("total for client "+client.String(), err)
	}
	return AccountSnapshot{
		Client:    client,
		Available: a.available,
		Held:      a.held,
		Total:     total,
		Locked:    a.locked,
	}, nil
}
