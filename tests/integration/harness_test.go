package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	adaptershttp "github.com/fengq/loanbook/internal/adapter/http"
	"github.com/fengq/loanbook/internal/adapter/http/handler"
	"github.com/fengq/loanbook/internal/adapter/repository/postgres"
	"github.com/fengq/loanbook/internal/usecase"
	"github.com/fengq/loanbook/tests/testutil"
)

// newTestServer wires the full HTTP stack over the test database. The
// report cache and idempotency store are left out so tests hit the
// database directly.
func newTestServer(t *testing.T, db *testutil.TestDB) *httptest.Server {
	t.Helper()

	pool := db.Pool
	txManager := postgres.NewTxManager(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	recordRepo := postgres.NewRecordRepository(pool)
	snapshotRepo := postgres.NewSnapshotRepository(pool)
	historyRepo := postgres.NewHistoryRepository(pool)
	idGen := postgres.NewULIDGenerator()

	ledgerUC := usecase.NewLedgerUseCase(txManager, orderRepo, recordRepo, snapshotRepo, historyRepo, idGen, nil)
	undoUC := usecase.NewUndoUseCase(txManager, orderRepo, recordRepo, snapshotRepo, historyRepo, idGen, nil)
	orderUC := usecase.NewOrderUseCase(orderRepo, historyRepo)
	reportUC := usecase.NewReportUseCase(snapshotRepo, recordRepo, nil)
	rebuildUC := usecase.NewRebuildUseCase(txManager, orderRepo, recordRepo, snapshotRepo)

	router := adaptershttp.NewRouter(adaptershttp.RouterConfig{
		Logger:        zerolog.Nop(),
		OrderHandler:  handler.NewOrderHandler(ledgerUC, orderUC, nil),
		LedgerHandler: handler.NewLedgerHandler(ledgerUC, undoUC, nil),
		ReportHandler: handler.NewReportHandler(reportUC),
		AdminHandler:  handler.NewAdminHandler(rebuildUC, nil),
		HealthHandler: handler.NewHealthHandler(pool, nil),
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return server
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}

	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	return resp
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}

	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}
