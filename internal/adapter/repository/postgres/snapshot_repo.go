package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fengq/loanbook/internal/domain"
	"github.com/fengq/loanbook/internal/usecase"
)

const lifetimeColumns = `active_orders, active_amount, overdue_orders, overdue_amount, liquid_funds,
	new_clients, new_client_amount, old_clients, old_client_amount, interest,
	completed_orders, completed_amount, breach_orders, breach_amount,
	breach_end_orders, breach_end_amount`

const dailyColumns = lifetimeColumns + `, liquid_flow, company_expenses, other_expenses`

// SnapshotRepository implements usecase.SnapshotRepository over the
// incrementally maintained aggregate tables: the single company-wide
// row, the per-group rows, and the per-day rows.
type SnapshotRepository struct {
	pool *pgxpool.Pool
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(pool *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{pool: pool}
}

// Apply folds one event into every scope it touches. All updates are
// plain additions, so concurrent events commute and a replay from the
// logs lands on the same totals.
func (r *SnapshotRepository) Apply(ctx context.Context, tx usecase.Transaction, event domain.Event) error {
	if event.Delta.IsZero() {
		return nil
	}
	pgxTx := tx.(*Tx).PgxTx()

	now := time.Now().UTC()
	d := event.Delta

	lifetimeArgs := []any{
		d.ActiveOrders, decimalToNumeric(d.ActiveAmount),
		d.OverdueOrders, decimalToNumeric(d.OverdueAmount),
		decimalToNumeric(d.LiquidFunds),
		d.NewClients, decimalToNumeric(d.NewClientAmount),
		d.OldClients, decimalToNumeric(d.OldClientAmount),
		decimalToNumeric(d.Interest),
		d.CompletedOrders, decimalToNumeric(d.CompletedAmount),
		d.BreachOrders, decimalToNumeric(d.BreachAmount),
		d.BreachEndOrders, decimalToNumeric(d.BreachEndAmount),
	}

	globalQuery := `
		UPDATE financial_data SET
			active_orders = active_orders + $1,
			active_amount = active_amount + $2,
			overdue_orders = overdue_orders + $3,
			overdue_amount = overdue_amount + $4,
			liquid_funds = liquid_funds + $5,
			new_clients = new_clients + $6,
			new_client_amount = new_client_amount + $7,
			old_clients = old_clients + $8,
			old_client_amount = old_client_amount + $9,
			interest = interest + $10,
			completed_orders = completed_orders + $11,
			completed_amount = completed_amount + $12,
			breach_orders = breach_orders + $13,
			breach_amount = breach_amount + $14,
			breach_end_orders = breach_end_orders + $15,
			breach_end_amount = breach_end_amount + $16,
			updated_at = $17
		WHERE id = 1
	`
	if _, err := pgxTx.Exec(ctx, globalQuery, append(lifetimeArgs, timeToPgTimestamptz(now))...); err != nil {
		return err
	}

	if event.GroupID != "" {
		groupedQuery := `
			INSERT INTO grouped_data (group_id, ` + lifetimeColumns + `, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
			ON CONFLICT (group_id) DO UPDATE SET
				active_orders = grouped_data.active_orders + EXCLUDED.active_orders,
				active_amount = grouped_data.active_amount + EXCLUDED.active_amount,
				overdue_orders = grouped_data.overdue_orders + EXCLUDED.overdue_orders,
				overdue_amount = grouped_data.overdue_amount + EXCLUDED.overdue_amount,
				liquid_funds = grouped_data.liquid_funds + EXCLUDED.liquid_funds,
				new_clients = grouped_data.new_clients + EXCLUDED.new_clients,
				new_client_amount = grouped_data.new_client_amount + EXCLUDED.new_client_amount,
				old_clients = grouped_data.old_clients + EXCLUDED.old_clients,
				old_client_amount = grouped_data.old_client_amount + EXCLUDED.old_client_amount,
				interest = grouped_data.interest + EXCLUDED.interest,
				completed_orders = grouped_data.completed_orders + EXCLUDED.completed_orders,
				completed_amount = grouped_data.completed_amount + EXCLUDED.completed_amount,
				breach_orders = grouped_data.breach_orders + EXCLUDED.breach_orders,
				breach_amount = grouped_data.breach_amount + EXCLUDED.breach_amount,
				breach_end_orders = grouped_data.breach_end_orders + EXCLUDED.breach_end_orders,
				breach_end_amount = grouped_data.breach_end_amount + EXCLUDED.breach_end_amount,
				updated_at = EXCLUDED.updated_at
		`
		args := append([]any{event.GroupID}, lifetimeArgs...)
		args = append(args, timeToPgTimestamptz(now))
		if _, err := pgxTx.Exec(ctx, groupedQuery, args...); err != nil {
			return err
		}
	}

	dailyQuery := `
		INSERT INTO daily_data (date, group_id, ` + dailyColumns + `, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		ON CONFLICT (date, group_id) DO UPDATE SET
			active_orders = daily_data.active_orders + EXCLUDED.active_orders,
			active_amount = daily_data.active_amount + EXCLUDED.active_amount,
			overdue_orders = daily_data.overdue_orders + EXCLUDED.overdue_orders,
			overdue_amount = daily_data.overdue_amount + EXCLUDED.overdue_amount,
			liquid_funds = daily_data.liquid_funds + EXCLUDED.liquid_funds,
			new_clients = daily_data.new_clients + EXCLUDED.new_clients,
			new_client_amount = daily_data.new_client_amount + EXCLUDED.new_client_amount,
			old_clients = daily_data.old_clients + EXCLUDED.old_clients,
			old_client_amount = daily_data.old_client_amount + EXCLUDED.old_client_amount,
			interest = daily_data.interest + EXCLUDED.interest,
			completed_orders = daily_data.completed_orders + EXCLUDED.completed_orders,
			completed_amount = daily_data.completed_amount + EXCLUDED.completed_amount,
			breach_orders = daily_data.breach_orders + EXCLUDED.breach_orders,
			breach_amount = daily_data.breach_amount + EXCLUDED.breach_amount,
			breach_end_orders = daily_data.breach_end_orders + EXCLUDED.breach_end_orders,
			breach_end_amount = daily_data.breach_end_amount + EXCLUDED.breach_end_amount,
			liquid_flow = daily_data.liquid_flow + EXCLUDED.liquid_flow,
			company_expenses = daily_data.company_expenses + EXCLUDED.company_expenses,
			other_expenses = daily_data.other_expenses + EXCLUDED.other_expenses,
			updated_at = EXCLUDED.updated_at
	`
	dailyTail := []any{
		decimalToNumeric(d.LiquidFlow),
		decimalToNumeric(d.CompanyExpenses),
		decimalToNumeric(d.OtherExpenses),
		timeToPgTimestamptz(now),
	}

	// One row for the company-wide day, one for the group's day.
	scopes := []any{nil}
	if event.GroupID != "" {
		scopes = append(scopes, event.GroupID)
	}
	for _, scope := range scopes {
		args := append([]any{dateToPgDate(event.Date), scope}, lifetimeArgs...)
		args = append(args, dailyTail...)
		if _, err := pgxTx.Exec(ctx, dailyQuery, args...); err != nil {
			return err
		}
	}

	return nil
}

// Global retrieves the company-wide lifetime snapshot.
func (r *SnapshotRepository) Global(ctx context.Context) (*domain.Snapshot, error) {
	query := `SELECT ` + lifetimeColumns + `, updated_at FROM financial_data WHERE id = 1`

	return scanLifetime(r.pool.QueryRow(ctx, query))
}

// Grouped retrieves a group's lifetime snapshot. A group with no
// recorded activity yields a zero snapshot.
func (r *SnapshotRepository) Grouped(ctx context.Context, groupID string) (*domain.Snapshot, error) {
	query := `
		SELECT COALESCE(SUM(active_orders), 0), COALESCE(SUM(active_amount), 0),
			COALESCE(SUM(overdue_orders), 0), COALESCE(SUM(overdue_amount), 0),
			COALESCE(SUM(liquid_funds), 0),
			COALESCE(SUM(new_clients), 0), COALESCE(SUM(new_client_amount), 0),
			COALESCE(SUM(old_clients), 0), COALESCE(SUM(old_client_amount), 0),
			COALESCE(SUM(interest), 0),
			COALESCE(SUM(completed_orders), 0), COALESCE(SUM(completed_amount), 0),
			COALESCE(SUM(breach_orders), 0), COALESCE(SUM(breach_amount), 0),
			COALESCE(SUM(breach_end_orders), 0), COALESCE(SUM(breach_end_amount), 0),
			COALESCE(MAX(updated_at), 'epoch'::timestamptz)
		FROM grouped_data WHERE group_id = $1
	`

	return scanLifetime(r.pool.QueryRow(ctx, query, groupID))
}

// Daily retrieves one day's snapshot. Empty groupID selects the
// company-wide row. A day with no activity yields a zero snapshot.
func (r *SnapshotRepository) Daily(ctx context.Context, date time.Time, groupID string) (*domain.Snapshot, error) {
	query := `
		SELECT ` + dailySumExpr + `
		FROM daily_data
		WHERE date = $1 AND group_id IS NOT DISTINCT FROM $2
	`

	return scanDaily(r.pool.QueryRow(ctx, query, dateToPgDate(date), nullableGroup(groupID)))
}

// RangeSum adds up the daily rows in [from, to].
func (r *SnapshotRepository) RangeSum(ctx context.Context, from, to time.Time, groupID string) (*domain.Snapshot, error) {
	query := `
		SELECT ` + dailySumExpr + `
		FROM daily_data
		WHERE date >= $1 AND date <= $2 AND group_id IS NOT DISTINCT FROM $3
	`

	return scanDaily(r.pool.QueryRow(ctx, query, dateToPgDate(from), dateToPgDate(to), nullableGroup(groupID)))
}

// GroupIDs lists every group that has recorded activity.
func (r *SnapshotRepository) GroupIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT group_id FROM grouped_data ORDER BY group_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// Reset zeroes every aggregate scope ahead of a rebuild.
func (r *SnapshotRepository) Reset(ctx context.Context, tx usecase.Transaction) error {
	pgxTx := tx.(*Tx).PgxTx()

	query := `
		UPDATE financial_data SET
			active_orders = 0, active_amount = 0, overdue_orders = 0, overdue_amount = 0,
			liquid_funds = 0, new_clients = 0, new_client_amount = 0,
			old_clients = 0, old_client_amount = 0, interest = 0,
			completed_orders = 0, completed_amount = 0,
			breach_orders = 0, breach_amount = 0,
			breach_end_orders = 0, breach_end_amount = 0,
			updated_at = $1
		WHERE id = 1
	`
	if _, err := pgxTx.Exec(ctx, query, timeToPgTimestamptz(time.Now().UTC())); err != nil {
		return err
	}
	if _, err := pgxTx.Exec(ctx, `DELETE FROM grouped_data`); err != nil {
		return err
	}
	if _, err := pgxTx.Exec(ctx, `DELETE FROM daily_data`); err != nil {
		return err
	}

	return nil
}

const dailySumExpr = `
	COALESCE(SUM(active_orders), 0), COALESCE(SUM(active_amount), 0),
	COALESCE(SUM(overdue_orders), 0), COALESCE(SUM(overdue_amount), 0),
	COALESCE(SUM(liquid_funds), 0),
	COALESCE(SUM(new_clients), 0), COALESCE(SUM(new_client_amount), 0),
	COALESCE(SUM(old_clients), 0), COALESCE(SUM(old_client_amount), 0),
	COALESCE(SUM(interest), 0),
	COALESCE(SUM(completed_orders), 0), COALESCE(SUM(completed_amount), 0),
	COALESCE(SUM(breach_orders), 0), COALESCE(SUM(breach_amount), 0),
	COALESCE(SUM(breach_end_orders), 0), COALESCE(SUM(breach_end_amount), 0),
	COALESCE(SUM(liquid_flow), 0), COALESCE(SUM(company_expenses), 0),
	COALESCE(SUM(other_expenses), 0),
	COALESCE(MAX(updated_at), 'epoch'::timestamptz)`

func nullableGroup(groupID string) any {
	if groupID == "" {
		return nil
	}

	return groupID
}

func scanLifetime(row rowScanner) (*domain.Snapshot, error) {
	var (
		s         domain.Snapshot
		numerics  [9]pgtype.Numeric
		updatedAt pgtype.Timestamptz
	)

	err := row.Scan(
		&s.ActiveOrders, &numerics[0],
		&s.OverdueOrders, &numerics[1],
		&numerics[2],
		&s.NewClients, &numerics[3],
		&s.OldClients, &numerics[4],
		&numerics[5],
		&s.CompletedOrders, &numerics[6],
		&s.BreachOrders, &numerics[7],
		&s.BreachEndOrders, &numerics[8],
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.ActiveAmount = numericToDecimal(numerics[0])
	s.OverdueAmount = numericToDecimal(numerics[1])
	s.LiquidFunds = numericToDecimal(numerics[2])
	s.NewClientAmount = numericToDecimal(numerics[3])
	s.OldClientAmount = numericToDecimal(numerics[4])
	s.Interest = numericToDecimal(numerics[5])
	s.CompletedAmount = numericToDecimal(numerics[6])
	s.BreachAmount = numericToDecimal(numerics[7])
	s.BreachEndAmount = numericToDecimal(numerics[8])
	s.UpdatedAt = updatedAt.Time

	return &s, nil
}

func scanDaily(row rowScanner) (*domain.Snapshot, error) {
	var (
		s         domain.Snapshot
		numerics  [12]pgtype.Numeric
		updatedAt pgtype.Timestamptz
	)

	err := row.Scan(
		&s.ActiveOrders, &numerics[0],
		&s.OverdueOrders, &numerics[1],
		&numerics[2],
		&s.NewClients, &numerics[3],
		&s.OldClients, &numerics[4],
		&numerics[5],
		&s.CompletedOrders, &numerics[6],
		&s.BreachOrders, &numerics[7],
		&s.BreachEndOrders, &numerics[8],
		&numerics[9], &numerics[10], &numerics[11],
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.ActiveAmount = numericToDecimal(numerics[0])
	s.OverdueAmount = numericToDecimal(numerics[1])
	s.LiquidFunds = numericToDecimal(numerics[2])
	s.NewClientAmount = numericToDecimal(numerics[3])
	s.OldClientAmount = numericToDecimal(numerics[4])
	s.Interest = numericToDecimal(numerics[5])
	s.CompletedAmount = numericToDecimal(numerics[6])
	s.BreachAmount = numericToDecimal(numerics[7])
	s.BreachEndAmount = numericToDecimal(numerics[8])
	s.LiquidFlow = numericToDecimal(numerics[9])
	s.CompanyExpenses = numericToDecimal(numerics[10])
	s.OtherExpenses = numericToDecimal(numerics[11])
	s.UpdatedAt = updatedAt.Time

	return &s, nil
}
