package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fengq/loanbook/internal/infrastructure/postgres"
)

// TestDB provides isolated test database connections.
type TestDB struct {
	Pool *pgxpool.Pool
	t    *testing.T
}

// NewTestDB connects to the database named by DATABASE_URL and applies
// migrations. Tests are skipped when the variable is unset.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	migrationsPath := "migrations"
	if _, err := os.Stat(migrationsPath); os.IsNotExist(err) {
		// Relative from tests/integration
		migrationsPath = "../../migrations"
	}

	if err := postgres.RunMigrations(dbURL, migrationsPath); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("failed to ping test database: %v", err)
	}

	return &TestDB{Pool: pool, t: t}
}

// Cleanup closes the database connection.
func (db *TestDB) Cleanup() {
	db.Pool.Close()
}

// ResetAll clears every table and reseeds the fixed rows, giving each
// test a pristine book.
func (db *TestDB) ResetAll(ctx context.Context) {
	db.t.Helper()

	_, err := db.Pool.Exec(ctx, `
		TRUNCATE TABLE operation_history RESTART IDENTITY;
		TRUNCATE TABLE daily_data;
		TRUNCATE TABLE grouped_data;
		TRUNCATE TABLE expense_records;
		TRUNCATE TABLE income_records;
		TRUNCATE TABLE orders;
		UPDATE order_counter SET value = 0 WHERE id = 1;
		UPDATE financial_data SET
			active_orders = 0, active_amount = 0, overdue_orders = 0, overdue_amount = 0,
			liquid_funds = 0, new_clients = 0, new_client_amount = 0,
			old_clients = 0, old_client_amount = 0, interest = 0,
			completed_orders = 0, completed_amount = 0,
			breach_orders = 0, breach_amount = 0,
			breach_end_orders = 0, breach_end_amount = 0
		WHERE id = 1;
	`)
	if err != nil {
		db.t.Fatalf("failed to reset tables: %v", err)
	}
}
