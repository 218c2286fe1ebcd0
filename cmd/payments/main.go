/*
main.go - Command-line entry point

PURPOSE:
  Reads a transactions CSV file, applies it to a fresh ledger and prints
  the final account report.

USAGE:
  payments [flags] <transactions.csv> > accounts.csv

COMMAND-LINE FLAGS:
  -log-level    debug, info, warn or error (default: info)
  -history      memory or sqlite (default: memory)
  -history-dsn  SQLite database path for -history=sqlite (default: :memory:)
                The table is recreated on start.

OUTPUT:
  stdout: the account report, written only after the whole input is read
  stderr: one log line per rejected record, plus a final summary

EXIT CODES:
  0  input fully processed
  1  fatal error (unreadable input, overflow, history failure)
  2  invalid invocation

SEE ALSO:
  - config/config.go: Flag parsing
  - app/app.go: The run itself
  - report/report.go: Output format
*/
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/warp/payments-engine/app"
	"github.com/warp/payments-engine/config"
	"github.com/warp/payments-engine/ledger"
	"github.com/warp/payments-engine/logging"
	"github.com/warp/payments-engine/report"
	"go.uber.org/zap"
)

const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Parse("payments", args, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	logger, err := logging.New(cfg.LogLevel, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	defer logger.Sync()

	if err := process(ctx, cfg, logger, stdout); err != nil {
		logger.Error("run failed", zap.Error(err))
		return exitFatal
	}
	return exitOK
}

func process(ctx context.Context, cfg config.Config, logger *zap.Logger, stdout io.Writer) error {
	f, err := os.Open(cfg.InputPath)
	if err != nil {
		return ledger.Fatal("open input", err)
	}
	defer f.Close()

	hist, closeHistory, err := app.OpenHistory(cfg.History, cfg.HistoryDSN)
	if err != nil {
		return err
	}
	defer closeHistory()

	res, err := app.Process(ctx, bufio.NewReader(f), hist, app.Options{Logger: logger})
	if err != nil {
		return err
	}

	out := bufio.NewWriter(stdout)
	if err := report.WriteCSV(out, res.Accounts); err != nil {
		return ledger.Fatal("write report", err)
	}
	if err := out.Flush(); err != nil {
		return ledger.Fatal("write report", err)
	}

	logger.Info("done",
		zap.Int("accounts", len(res.Accounts)),
		zap.Int("applied", res.Stats.TotalApplied()),
		zap.Int("rejected", res.Stats.TotalRejected()),
	)
	return nil
}
