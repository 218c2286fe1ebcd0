/*
handlers.go - HTTP API handlers for the payments engine

PURPOSE:
  Exposes one-shot ledger runs over HTTP. Each request gets its own
  engine and history; nothing is kept between requests.

ENDPOINTS:
  POST   /api/runs          Run the CSV request body through a new engine
                            ?format=csv returns the account report as CSV
  GET    /api/health        Liveness probe

REQUEST FLOW:
  1. Assign a run id
  2. Stream the body through app.Process
  3. Serialize accounts, rejected records and stats
  4. Map fatal errors to a status code

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 413: Body larger than MaxBodyBytes
  - 422: Input the engine cannot process (bad header, overflow)
  - 500: Internal errors (history storage)

SEE ALSO:
  - dto.go: Response data structures
  - server.go: Router setup and middleware
  - app/app.go: The run itself
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/warp/payments-engine/app"
	"github.com/warp/payments-engine/config"
	"github.com/warp/payments-engine/ingest"
	"github.com/warp/payments-engine/money"
	"github.com/warp/payments-engine/report"
	"go.uber.org/zap"
)

// MaxBodyBytes limits the size of an uploaded CSV.
const MaxBodyBytes = 64 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Logger *zap.Logger
	// History is the backend used for every run. SQLite runs always use a
	// private in-memory database.
	History string
}

// NewHandler creates a handler using in-memory history.
func NewHandler(logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Logger: logger, History: config.HistoryMemory}
}

// =============================================================================
// RUN HANDLERS
// =============================================================================

// CreateRun processes the request body as transaction CSV.
// POST /api/runs
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	runID := uuid.NewString()
	logger := h.Logger.With(
		zap.String("run_id", runID),
		zap.String("request_id", middleware.GetReqID(r.Context())),
	)

	hist, closeHistory, err := app.OpenHistory(h.History, ":memory:")
	if err != nil {
		logger.Error("open history failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, runID, "Failed to open history", err)
		return
	}
	defer closeHistory()

	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	res, err := app.Process(r.Context(), body, hist, app.Options{
		Logger:          logger,
		CollectRejected: true,
	})
	if err != nil {
		status := statusFor(err)
		logger.Error("run failed", zap.Int("status", status), zap.Error(err))
		writeError(w, status, runID, "Run failed", err)
		return
	}

	logger.Info("run complete",
		zap.Int("accounts", len(res.Accounts)),
		zap.Int("applied", res.Stats.TotalApplied()),
		zap.Int("rejected", res.Stats.TotalRejected()),
	)

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("X-Run-ID", runID)
		w.WriteHeader(http.StatusOK)
		if err := report.WriteCSV(w, res.Accounts); err != nil {
			logger.Warn("write report failed", zap.Error(err))
		}
		return
	}

	writeJSON(w, http.StatusOK, RunResponse{
		RunID:    runID,
		Accounts: toAccountDTOs(res.Accounts),
		Rejected: toRejectedDTOs(res.Rejected),
		Stats:    res.Stats,
	})
}

// Health reports that the server is up.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ingest.ErrHeader), errors.Is(err, money.ErrOverflow):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, runID, message string, err error) {
	resp := ErrorResponse{Error: message, RunID: runID}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
