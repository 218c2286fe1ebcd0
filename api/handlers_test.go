/*
handlers_test.go - Tests for the runs and health endpoints

Tests for:
- JSON run response (accounts, rejected records, stats)
- CSV report format
- Status codes for fatal input
*/
package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payments-engine/api"
	"github.com/warp/payments-engine/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const disputeInput = `type,client,tx,amount
deposit,1,1,1.0
deposit,2,2,2.0
deposit,1,3,2.0
withdrawal,1,4,1.5
withdrawal,2,5,3.0
dispute,1,1,
chargeback,1,1,
`

func newTestRouter(t *testing.T) (http.Handler, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return api.NewRouter(api.NewHandler(zap.New(core))), logs
}

func postRun(t *testing.T, router http.Handler, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "text/csv")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCreateRun_JSON(t *testing.T) {
	// GIVEN: deposits, an overdraft attempt and a chargeback on client 1
	router, logs := newTestRouter(t)

	// WHEN: posting the CSV
	rec := postRun(t, router, "/api/runs", disputeInput)

	// THEN: accounts reflect the chargeback, the overdraft is listed
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp api.RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	_, err := uuid.Parse(resp.RunID)
	require.NoError(t, err)

	require.Len(t, resp.Accounts, 2)
	assert.Equal(t, uint16(1), resp.Accounts[0].Client)
	assert.Equal(t, "0.5", resp.Accounts[0].Available.String())
	assert.Equal(t, "0", resp.Accounts[0].Held.String())
	assert.Equal(t, "0.5", resp.Accounts[0].Total.String())
	assert.True(t, resp.Accounts[0].Locked)
	assert.Equal(t, "2", resp.Accounts[1].Total.String())
	assert.False(t, resp.Accounts[1].Locked)

	require.Len(t, resp.Rejected, 1)
	assert.Equal(t, "withdrawal", resp.Rejected[0].Kind)
	assert.Equal(t, uint32(5), resp.Rejected[0].Tx)
	assert.Equal(t, uint16(2), resp.Rejected[0].Client)
	assert.Contains(t, resp.Rejected[0].Reason, "insufficient")

	assert.Equal(t, 6, resp.Stats.TotalApplied())
	assert.Equal(t, 1, resp.Stats.TotalRejected())

	// Every line logged for the run carries its id.
	entries := logs.FilterMessage("record rejected").All()
	require.Len(t, entries, 1)
	assert.Equal(t, resp.RunID, entries[0].ContextMap()["run_id"])
}

func TestCreateRun_AmountsAreStrings(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := postRun(t, router, "/api/runs", "type,client,tx,amount\ndeposit,1,1,0.0001\n")
	require.Equal(t, http.StatusOK, rec.Code)

	var raw struct {
		Accounts []map[string]any `json:"accounts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	require.Len(t, raw.Accounts, 1)
	assert.Equal(t, "0.0001", raw.Accounts[0]["available"])
}

func TestCreateRun_CSV(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := postRun(t, router, "/api/runs?format=csv", disputeInput)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Run-ID"))
	assert.Equal(t,
		"client,available,held,total,locked\n1,0.5,0,0.5,true\n2,2,0,2,false\n",
		rec.Body.String())
}

func TestCreateRun_EmptyBody(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := postRun(t, router, "/api/runs", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp api.RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Accounts)
	assert.Empty(t, resp.Rejected)
}

func TestCreateRun_MalformedRowsAreListed(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := postRun(t, router, "/api/runs", "type,client,tx,amount\ndeposit,1,1,1.00001\ndeposit,1,2,1\n")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp api.RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Rejected, 1)
	assert.Equal(t, 2, resp.Rejected[0].Line)
	assert.Equal(t, 1, resp.Stats.Malformed)
	require.Len(t, resp.Accounts, 1)
	assert.Equal(t, "1", resp.Accounts[0].Available.String())
}

func TestCreateRun_FatalInput(t *testing.T) {
	tests := map[string]string{
		"bad header": "kind,who,id\ndeposit,1,1\n",
		"overflow":   "type,client,tx,amount\ndeposit,1,1,562949953421311\ndeposit,1,2,1\n",
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			router, _ := newTestRouter(t)

			rec := postRun(t, router, "/api/runs", body)

			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			var resp api.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.RunID)
			assert.NotEmpty(t, resp.Details)
		})
	}
}

func TestCreateRun_SQLiteHistory(t *testing.T) {
	h := api.NewHandler(nil)
	h.History = config.HistorySQLite
	router := api.NewRouter(h)

	rec := postRun(t, router, "/api/runs?format=csv", disputeInput)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t,
		"client,available,held,total,locked\n1,0.5,0,0.5,true\n2,2,0,2,false\n",
		rec.Body.String())
}

func TestCreateRun_MethodNotAllowed(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
