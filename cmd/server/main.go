/*
main.go - HTTP server entry point

PURPOSE:
  Starts the payments engine API. Every POST /api/runs is an independent
  run; the server keeps no ledger state between requests.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Build the JSON logger
  3. Create API handler and router
  4. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port       HTTP server port (default: 8080)
  -log-level  debug, info, warn or error (default: info)
  -history    memory or sqlite history per run (default: memory)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Exit

EXAMPLES:
  ./server -port=3000
  curl --data-binary @transactions.csv 'localhost:3000/api/runs?format=csv'

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/payments-engine/api"
	"github.com/warp/payments-engine/config"
	"github.com/warp/payments-engine/logging"
	"go.uber.org/zap"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	history := flag.String("history", config.HistoryMemory, "history backend per run: memory or sqlite")
	flag.Parse()

	// Runs never share a database, so sqlite always uses ":memory:".
	if err := config.ValidateHistory(*history, ":memory:"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := logging.NewJSON(*logLevel, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer logger.Sync()

	// Initialize handler
	handler := api.NewHandler(logger)
	handler.History = *history

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting", zap.Int("port", *port), zap.String("history", *history))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		return
	}

	logger.Info("server stopped")
}
