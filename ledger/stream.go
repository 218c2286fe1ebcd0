package ledger

import (
	"context"
	"errors"
	"io"

	"go.uber.org/zap"
)

// Source is a forward-only sequence of records, typically a decoder over
// an input file. Next returns io.EOF after the last record. A
// *TransactionError means one input row was unusable; any other error
// ends the run.
type Source interface {
	Next(ctx context.Context) (Record, error)
}

// Run drains src through Apply. Rejected records are logged and skipped.
// It returns nil at end of input or the first fatal error.
func (e *Engine) Run(ctx context.Context, src Source) error {
	for {
		rec, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if !IsRecoverable(err) {
				return Fatal("read input", err)
			}
			e.stats.Malformed++
			e.rejected(err)
			continue
		}

		if err := e.Apply(ctx, rec); err != nil {
			if !IsRecoverable(err) {
				return err
			}
			e.rejected(err)
		}
	}
}

func (e *Engine) rejected(err error) {
	var te *TransactionError
	if !errors.As(err, &te) {
		return
	}

	fields := []zap.Field{
		zap.String("kind", string(te.Kind)),
		zap.Uint32("tx", te.Ref.Tx.Uint32()),
		zap.Uint16("client", te.Ref.Client.Uint16()),
	}
	if te.Line > 0 {
		fields = append(fields, zap.Int("line", te.Line))
	}
	fields = append(fields, zap.Error(te.Err))
	e.logger.Warn("record rejected", fields...)

	if e.onReject != nil {
		e.onReject(te)
	}
}

// =============================================================================
// STATS
// =============================================================================

// Stats counts records by kind and outcome.
type Stats struct {
	Applied  map[Kind]int `json:"applied"`
	Rejected map[Kind]int `json:"rejected"`
	// Malformed counts input rows that never became a record.
	Malformed int `json:"malformed"`
}

func newStats() Stats {
	return Stats{Applied: make(map[Kind]int), Rejected: make(map[Kind]int)}
}

func (s *Stats) observe(kind Kind, err error) {
	if err == nil {
		s.Applied[kind]++
		return
	}
	if IsRecoverable(err) {
		s.Rejected[kind]++
	}
}

func (s Stats) clone() Stats {
	out := newStats()
	for k, v := range s.Applied {
		out.Applied[k] = v
	}
	for k, v := range s.Rejected {
		out.Rejected[k] = v
	}
	out.Malformed = s.Malformed
	return out
}

// TotalApplied sums Applied over all kinds.
func (s Stats) TotalApplied() int {
	n := 0
	for _, v := range s.Applied {
		n += v
	}
	return n
}

// TotalRejected sums Rejected over all kinds plus Malformed.
func (s Stats) TotalRejected() int {
	n := s.Malformed
	for _, v := range s.Rejected {
		n += v
	}
	return n
}
