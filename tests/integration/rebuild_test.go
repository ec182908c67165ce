package integration

import (
	"context"
	"net/http"
	"testing"

	"github.com/fengq/loanbook/internal/adapter/http/dto"
	"github.com/fengq/loanbook/tests/testutil"
)

func TestConsistencyDetectsDriftAndRebuildRepairs(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	defer testDB.Cleanup()
	testDB.ResetAll(ctx)

	server := newTestServer(t, testDB)

	resp := postJSON(t, server.URL+"/api/v1/orders", map[string]any{
		"group_id": "g1",
		"chat_id":  100,
		"customer": "new",
		"amount":   "1000",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 creating order, got %d", resp.StatusCode)
	}
	resp = postJSON(t, server.URL+"/api/v1/orders/1/interest", map[string]any{"amount": "100"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 booking interest, got %d", resp.StatusCode)
	}

	var report dto.ConsistencyResponse
	getJSON(t, server.URL+"/api/v1/admin/consistency", &report)
	if !report.Consistent {
		t.Fatalf("expected stored snapshots to match the logs, drifts: %+v", report.Drifts)
	}

	// Corrupt the stored aggregate behind the engine's back.
	_, err := testDB.Pool.Exec(ctx, `UPDATE financial_data SET interest = interest + 42 WHERE id = 1`)
	if err != nil {
		t.Fatalf("failed to corrupt snapshot: %v", err)
	}

	getJSON(t, server.URL+"/api/v1/admin/consistency", &report)
	if report.Consistent {
		t.Fatal("expected the check to flag the corrupted field")
	}
	found := false
	for _, d := range report.Drifts {
		if d.Field == "interest" {
			found = true
			if d.Stored.String() != "142" {
				t.Errorf("expected stored interest 142, got %s", d.Stored)
			}
			if d.Computed.String() != "100" {
				t.Errorf("expected computed interest 100, got %s", d.Computed)
			}
		}
	}
	if !found {
		t.Errorf("expected an interest drift, got %+v", report.Drifts)
	}

	resp = postJSON(t, server.URL+"/api/v1/admin/rebuild", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 rebuilding, got %d", resp.StatusCode)
	}

	getJSON(t, server.URL+"/api/v1/admin/consistency", &report)
	if !report.Consistent {
		t.Fatalf("expected consistency after rebuild, drifts: %+v", report.Drifts)
	}

	var summary dto.SnapshotResponse
	getJSON(t, server.URL+"/api/v1/reports/summary", &summary)
	if summary.Interest.String() != "100" {
		t.Errorf("expected interest 100 after rebuild, got %s", summary.Interest)
	}
}

func TestRebuildRestoresGroupedAndDailyRows(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	defer testDB.Cleanup()
	testDB.ResetAll(ctx)

	server := newTestServer(t, testDB)

	for _, o := range []map[string]any{
		{"group_id": "g1", "chat_id": 100, "customer": "new", "amount": "1000"},
		{"group_id": "g2", "chat_id": 200, "customer": "old", "amount": "600"},
	} {
		resp := postJSON(t, server.URL+"/api/v1/orders", o)
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("expected 201 creating order, got %d", resp.StatusCode)
		}
	}
	resp := postJSON(t, server.URL+"/api/v1/orders/2/interest", map[string]any{"amount": "60"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 booking interest, got %d", resp.StatusCode)
	}

	// Wipe the derived tables entirely; the logs are the only source left.
	for _, stmt := range []string{
		`DELETE FROM grouped_data`,
		`DELETE FROM daily_data`,
		`UPDATE financial_data SET active_orders = 0, active_amount = 0, interest = 0, liquid_funds = 0, new_clients = 0, new_client_amount = 0, old_clients = 0, old_client_amount = 0 WHERE id = 1`,
	} {
		if _, err := testDB.Pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("failed to wipe snapshots: %v", err)
		}
	}

	resp = postJSON(t, server.URL+"/api/v1/admin/rebuild", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 rebuilding, got %d", resp.StatusCode)
	}

	var summary dto.SnapshotResponse
	getJSON(t, server.URL+"/api/v1/reports/summary", &summary)
	if summary.ActiveOrders != 2 {
		t.Errorf("expected 2 active orders after rebuild, got %d", summary.ActiveOrders)
	}
	if summary.LiquidFunds.String() != "-1540" {
		t.Errorf("expected liquid funds -1540, got %s", summary.LiquidFunds)
	}

	var grouped dto.SnapshotResponse
	getJSON(t, server.URL+"/api/v1/reports/summary?group_id=g2", &grouped)
	if grouped.Interest.String() != "60" {
		t.Errorf("expected group g2 interest 60, got %s", grouped.Interest)
	}
	if grouped.ActiveAmount.String() != "600" {
		t.Errorf("expected group g2 active amount 600, got %s", grouped.ActiveAmount)
	}

	var groups dto.GroupsResponse
	getJSON(t, server.URL+"/api/v1/reports/groups", &groups)
	if len(groups.Groups) != 2 {
		t.Errorf("expected both groups rebuilt, got %v", groups.Groups)
	}
}
