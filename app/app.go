/*
Package app wires the ledger pieces together for one run.

PURPOSE:
  The CLI and the HTTP API do the same thing: pick a history backend,
  stream CSV input through a fresh Engine, and collect the final
  accounts. This package holds that sequence so both binaries share it.

SEE ALSO:
  - cmd/payments/main.go: file in, CSV report out
  - api/handlers.go: request body in, JSON or CSV out
*/
package app

import (
	"context"
	"fmt"
	"io"

	"github.com/warp/payments-engine/config"
	"github.com/warp/payments-engine/ingest"
	"github.com/warp/payments-engine/ledger"
	"github.com/warp/payments-engine/ledger/store"
	"github.com/warp/payments-engine/store/sqlite"
	"go.uber.org/zap"
)

// OpenHistory creates the history backend named by backend. The returned
// close function must be called when the run is over.
func OpenHistory(backend, dsn string) (ledger.History, func() error, error) {
	switch backend {
	case config.HistoryMemory, "":
		return store.NewMemory(), func() error { return nil }, nil
	case config.HistorySQLite:
		s, err := sqlite.New(dsn)
		if err != nil {
			return nil, nil, ledger.Fatal("open history", err)
		}
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown history backend %q", backend)
}

// Result is the outcome of a completed run.
type Result struct {
	Accounts []ledger.AccountSnapshot
	Rejected []*ledger.TransactionError
	Stats    ledger.Stats
}

// Options tune Process.
type Options struct {
	Logger *zap.Logger
	// CollectRejected keeps every rejected record in Result.Rejected.
	CollectRejected bool
}

// Process runs every record in r through a new engine over hist.
// The returned error is always fatal; rejected records only show up in
// the log and, when requested, in Result.Rejected.
func Process(ctx context.Context, r io.Reader, hist ledger.History, opts Options) (Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var res Result
	engineOpts := []ledger.Option{ledger.WithLogger(logger)}
	if opts.CollectRejected {
		engineOpts = append(engineOpts, ledger.WithRejectHandler(func(te *ledger.TransactionError) {
			res.Rejected = append(res.Rejected, te)
		}))
	}

	engine := ledger.NewEngine(hist, engineOpts...)
	if err := engine.Run(ctx, ingest.NewReader(r)); err != nil {
		return Result{}, err
	}

	accounts, err := engine.Accounts()
	if err != nil {
		return Result{}, err
	}
	res.Accounts = accounts
	res.Stats = engine.Stats()

	logger.Debug("run finished",
		zap.Int("accounts", len(accounts)),
		zap.Int("applied", res.Stats.TotalApplied()),
		zap.Int("rejected", res.Stats.TotalRejected()),
	)
	return res, nil
}
