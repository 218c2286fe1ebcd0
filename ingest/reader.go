/*
Package ingest decodes the CSV transaction stream into ledger records.

PURPOSE:
  Reader is the lazy ledger.Source used by the CLI and the HTTP API.
  It reads one row per Next call and never buffers the whole input.

FORMAT:
  type, client, tx, amount
  deposit,    1, 1, 1.0
  dispute,    1, 1,

  - The header names the columns; order is free, names are matched
    case-insensitively. "amount" may be omitted when no row needs it.
  - type is case-insensitive; every field is whitespace-trimmed.
  - client fits in uint16, tx in uint32.
  - deposit/withdrawal need a non-negative amount with at most 4
    fractional digits; dispute/resolve/chargeback must leave it empty.
  - A UTF-8 byte order mark before the header is ignored.

ERRORS:
  A bad row comes back as *ledger.TransactionError wrapping
  ledger.ErrMalformedRecord, with the input line number. A bad header or
  a failing io.Reader is returned as is and ends the run.
*/
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/warp/payments-engine/ledger"
	"github.com/warp/payments-engine/money"
)

// MaxFractionDigits is the decimal precision accepted for amounts.
const MaxFractionDigits = 4

var (
	// ErrHeader is returned when the header row lacks a required column.
	ErrHeader = errors.New("invalid header")

	// ErrPrecision is returned for amounts with more than MaxFractionDigits
	// significant fractional digits.
	ErrPrecision = errors.New("too many fractional digits")
)

const byteOrderMark = "\uFEFF"

var requiredColumns = []string{"type", "client", "tx"}

// Reader decodes records from CSV input.
type Reader struct {
	csv    *csv.Reader
	cols   map[string]int
	header bool
}

var _ ledger.Source = (*Reader)(nil)

func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	return &Reader{csv: cr}
}

// Next returns the next record, io.EOF at end of input, a
// *ledger.TransactionError for a malformed row, or a fatal error.
func (r *Reader) Next(ctx context.Context) (ledger.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !r.header {
		if err := r.readHeader(); err != nil {
			return nil, err
		}
	}

	for {
		row, err := r.csv.Read()
		if err == io.EOF {
			return nil, io.EOF
		}

		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return nil, &ledger.TransactionError{
				Line: perr.Line,
				Err:  fmt.Errorf("%w: %w", ledger.ErrMalformedRecord, perr.Err),
			}
		}
		if err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}

		if blank(row) {
			continue
		}

		line, _ := r.csv.FieldPos(0)
		return r.decode(row, line)
	}
}

func (r *Reader) readHeader() error {
	row, err := r.csv.Read()
	if err == io.EOF {
		return io.EOF
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	if len(row) > 0 {
		row[0] = strings.TrimPrefix(row[0], byteOrderMark)
	}

	cols := make(map[string]int, len(row))
	for i, name := range row {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return fmt.Errorf("%w: missing column %q", ErrHeader, name)
		}
	}

	r.cols = cols
	r.header = true
	return nil
}

func (r *Reader) field(row []string, name string) string {
	i, ok := r.cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (r *Reader) decode(row []string, line int) (ledger.Record, error) {
	malformed := func(kind ledger.Kind, ref ledger.Ref, cause error) error {
		return &ledger.TransactionError{
			Kind: kind,
			Ref:  ref,
			Line: line,
			Err:  fmt.Errorf("%w: %w", ledger.ErrMalformedRecord, cause),
		}
	}

	var ref ledger.Ref
	typ := r.field(row, "type")
	kind, ok := ledger.ParseKind(typ)
	if !ok {
		return nil, malformed("", ref, fmt.Errorf("unknown type %q", typ))
	}

	client, err := ledger.ParseClientID(r.field(row, "client"))
	if err != nil {
		return nil, malformed(kind, ref, err)
	}
	ref.Client = client

	tx, err := ledger.ParseTxID(r.field(row, "tx"))
	if err != nil {
		return nil, malformed(kind, ref, err)
	}
	ref.Tx = tx

	raw := r.field(row, "amount")
	var amount money.Amount
	switch {
	case kind.HasAmount() && raw == "":
		return nil, malformed(kind, ref, errors.New("missing amount"))
	case kind.HasAmount():
		amount, err = money.Parse(raw)
		if err != nil {
			return nil, malformed(kind, ref, err)
		}
		if fractionDigits(raw) > MaxFractionDigits {
			return nil, malformed(kind, ref, ErrPrecision)
		}
		if amount.IsNegative() {
			return nil, malformed(kind, ref, ledger.ErrNegativeAmount)
		}
	case raw != "":
		return nil, malformed(kind, ref, fmt.Errorf("unexpected amount %q", raw))
	}

	return ledger.NewRecord(kind, ref, amount)
}

// fractionDigits counts fractional digits, ignoring trailing zeros.
// raw has already been accepted by money.Parse.
func fractionDigits(raw string) int {
	_, frac, ok := strings.Cut(raw, ".")
	if !ok {
		return 0
	}
	return len(strings.TrimRight(frac, "0"))
}

func blank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
