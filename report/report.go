// Package report renders final account balances as CSV.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/warp/payments-engine/ledger"
)

// Header is the first row of every report.
var Header = []string{"client", "available", "held", "total", "locked"}

// WriteCSV writes one row per account in the order given. Callers pass
// Engine.Accounts(), which is sorted by client id.
func WriteCSV(w io.Writer, accounts []ledger.AccountSnapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write report header: %w", err)
	}

	row := make([]string, len(Header))
	for _, acc := range accounts {
		row[0] = acc.Client.String()
		row[1] = acc.Available.String()
		row[2] = acc.Held.String()
		row[3] = acc.Total.String()
		row[4] = strconv.FormatBool(acc.Locked)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write report row for client %s: %w", acc.Client, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush report: %w", err)
	}
	return nil
}
