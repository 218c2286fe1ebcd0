/*
dto.go - Data Transfer Objects for API responses

PURPOSE:
  Defines the JSON structures returned by the runs endpoint. Ledger types
  hide their fields behind accessors; these types flatten them for
  clients.

NAMING CONVENTION:
  - *DTO: Response items returned to clients
  - *Response: Top-level response wrappers

AMOUNTS:
  money.Amount marshals as a decimal string ("1.5", "0.0001"), never as a
  JSON number, so clients never see float rounding.

SEE ALSO:
  - handlers.go: Uses these types
  - report/report.go: CSV rendering of the same accounts
*/
package api

import (
	"github.com/warp/payments-engine/ledger"
	"github.com/warp/payments-engine/money"
)

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// AccountDTO represents a client account in API responses.
type AccountDTO struct {
	Client    uint16       `json:"client"`
	Available money.Amount `json:"available"`
	Held      money.Amount `json:"held"`
	Total     money.Amount `json:"total"`
	Locked    bool         `json:"locked"`
}

// RejectedDTO describes one record the engine refused.
type RejectedDTO struct {
	Line   int    `json:"line,omitempty"`
	Kind   string `json:"kind,omitempty"`
	Tx     uint32 `json:"tx"`
	Client uint16 `json:"client"`
	Reason string `json:"reason"`
}

// RunResponse is returned by POST /api/runs.
type RunResponse struct {
	RunID    string        `json:"run_id"`
	Accounts []AccountDTO  `json:"accounts"`
	Rejected []RejectedDTO `json:"rejected"`
	Stats    ledger.Stats  `json:"stats"`
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	RunID   string `json:"run_id,omitempty"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toAccountDTOs(accounts []ledger.AccountSnapshot) []AccountDTO {
	dtos := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = AccountDTO{
			Client:    a.Client.Uint16(),
			Available: a.Available,
			Held:      a.Held,
			Total:     a.Total,
			Locked:    a.Locked,
		}
	}
	return dtos
}

func toRejectedDTOs(rejected []*ledger.TransactionError) []RejectedDTO {
	dtos := make([]RejectedDTO, len(rejected))
	for i, te := range rejected {
		dtos[i] = RejectedDTO{
			Line:   te.Line,
			Kind:   string(te.Kind),
			Tx:     te.Ref.Tx.Uint32(),
			Client: te.Ref.Client.Uint16(),
			Reason: te.Err.Error(),
		}
	}
	return dtos
}
