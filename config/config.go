// Package config parses and validates command-line configuration for the
// payments binaries.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/warp/payments-engine/logging"
)

// History backends.
const (
	HistoryMemory = "memory"
	HistorySQLite = "sqlite"
)

// ErrUsage marks invalid invocations (exit code 2).
var ErrUsage = errors.New("usage")

// Config is the CLI configuration.
type Config struct {
	InputPath  string
	LogLevel   string
	History    string
	HistoryDSN string
}

// Parse reads flags and the single positional input path from args
// (without the program name). Usage text goes to stderr.
func Parse(name string, args []string, stderr io.Writer) (Config, error) {
	var cfg Config

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.StringVar(&cfg.History, "history", HistoryMemory, "transaction history backend: memory or sqlite")
	fs.StringVar(&cfg.HistoryDSN, "history-dsn", ":memory:", "SQLite database path for -history=sqlite (recreated on start)")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: %s [flags] <transactions.csv>\n", name)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return Config{}, fmt.Errorf("%w: expected exactly one input file, got %d arguments", ErrUsage, fs.NArg())
	}
	cfg.InputPath = fs.Arg(0)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrUsage, err)
	}
	return cfg, nil
}

// Validate checks that all values are usable.
func (c *Config) Validate() error {
	if c.InputPath == "" {
		return errors.New("input path is required")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log-level: %w", err)
	}
	return ValidateHistory(c.History, c.HistoryDSN)
}

// ValidateHistory checks a history backend name and its DSN.
func ValidateHistory(backend, dsn string) error {
	switch backend {
	case HistoryMemory:
	case HistorySQLite:
		if dsn == "" {
			return errors.New("history-dsn is required for sqlite history")
		}
	default:
		return fmt.Errorf("history must be %q or %q, got %q", HistoryMemory, HistorySQLite, backend)
	}
	return nil
}
