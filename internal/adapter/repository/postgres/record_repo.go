package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fengq/loanbook/internal/domain"
	"github.com/fengq/loanbook/internal/usecase"
)

// RecordRepository implements usecase.RecordRepository over the
// append-only income and expense logs.
type RecordRepository struct {
	pool *pgxpool.Pool
}

// NewRecordRepository creates a new RecordRepository.
func NewRecordRepository(pool *pgxpool.Pool) *RecordRepository {
	return &RecordRepository{pool: pool}
}

// AppendIncome inserts an income record.
func (r *RecordRepository) AppendIncome(ctx context.Context, tx usecase.Transaction, record *domain.IncomeRecord) error {
	pgxTx := tx.(*Tx).PgxTx()

	var detail []byte
	if record.Detail != nil {
		var err error
		detail, err = json.Marshal(record.Detail)
		if err != nil {
			return fmt.Errorf("marshal detail: %w", err)
		}
	}

	query := `
		INSERT INTO income_records (id, order_id, group_id, customer_kind, kind, amount, detail, occurred_on, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := pgxTx.Exec(ctx, query,
		record.ID,
		record.OrderID,
		record.GroupID,
		string(record.Customer),
		string(record.Kind),
		decimalToNumeric(record.Amount),
		detail,
		dateToPgDate(record.OccurredOn),
		timeToPgTimestamptz(record.CreatedAt),
	)

	return err
}

// AppendExpense inserts an expense record.
func (r *RecordRepository) AppendExpense(ctx context.Context, tx usecase.Transaction, record *domain.ExpenseRecord) error {
	pgxTx := tx.(*Tx).PgxTx()

	query := `
		INSERT INTO expense_records (id, kind, amount, note, occurred_on, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := pgxTx.Exec(ctx, query,
		record.ID,
		string(record.Kind),
		decimalToNumeric(record.Amount),
		record.Note,
		dateToPgDate(record.OccurredOn),
		timeToPgTimestamptz(record.CreatedAt),
	)

	return err
}

// GetExpense retrieves an expense record by ID.
func (r *RecordRepository) GetExpense(ctx context.Context, id string) (*domain.ExpenseRecord, error) {
	query := `SELECT id, kind, amount, note, occurred_on, created_at FROM expense_records WHERE id = $1`

	return scanExpense(r.pool.QueryRow(ctx, query, id))
}

// DeleteExpense removes an expense row. Only the undo path does this.
func (r *RecordRepository) DeleteExpense(ctx context.Context, tx usecase.Transaction, id string) error {
	pgxTx := tx.(*Tx).PgxTx()

	tag, err := pgxTx.Exec(ctx, `DELETE FROM expense_records WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRecordNotFound
	}

	return nil
}

// ListIncome retrieves income records matching the filter, newest first.
func (r *RecordRepository) ListIncome(ctx context.Context, filter usecase.IncomeFilter) ([]*domain.IncomeRecord, error) {
	query := `
		SELECT id, order_id, group_id, customer_kind, kind, amount, detail, occurred_on, created_at
		FROM income_records WHERE 1=1
	`
	args := []any{}

	if filter.OrderID != 0 {
		args = append(args, filter.OrderID)
		query += fmt.Sprintf(` AND order_id = $%d`, len(args))
	}
	if filter.GroupID != "" {
		args = append(args, filter.GroupID)
		query += fmt.Sprintf(` AND group_id = $%d`, len(args))
	}
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		query += fmt.Sprintf(` AND kind = $%d`, len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, dateToPgDate(filter.From))
		query += fmt.Sprintf(` AND occurred_on >= $%d`, len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, dateToPgDate(filter.To))
		query += fmt.Sprintf(` AND occurred_on <= $%d`, len(args))
	}

	query += ` ORDER BY created_at DESC, id DESC`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.IncomeRecord
	for rows.Next() {
		record, err := scanIncome(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// ListExpenses retrieves expense records, newest first. Empty kind
// matches all kinds; zero bounds are open-ended.
func (r *RecordRepository) ListExpenses(ctx context.Context, kind domain.ExpenseKind, from, to time.Time) ([]*domain.ExpenseRecord, error) {
	query := `SELECT id, kind, amount, note, occurred_on, created_at FROM expense_records WHERE 1=1`
	args := []any{}

	if kind != "" {
		args = append(args, string(kind))
		query += fmt.Sprintf(` AND kind = $%d`, len(args))
	}
	if !from.IsZero() {
		args = append(args, dateToPgDate(from))
		query += fmt.Sprintf(` AND occurred_on >= $%d`, len(args))
	}
	if !to.IsZero() {
		args = append(args, dateToPgDate(to))
		query += fmt.Sprintf(` AND occurred_on <= $%d`, len(args))
	}

	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.ExpenseRecord
	for rows.Next() {
		record, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// SettledTotal sums the order's breach settlements net of reversals,
// inside the caller's transaction so the total is consistent with any
// rows appended earlier in it.
func (r *RecordRepository) SettledTotal(ctx context.Context, tx usecase.Transaction, orderID int64) (decimal.Decimal, error) {
	pgxTx := tx.(*Tx).PgxTx()

	query := `
		SELECT COALESCE(SUM(CASE WHEN kind = 'breach_settlement' THEN amount ELSE -amount END), 0)
		FROM income_records
		WHERE order_id = $1
		  AND (kind = 'breach_settlement'
		       OR (kind = 'adjustment' AND detail->>'reversed_kind' = 'breach_settlement'))
	`

	var total pgtype.Numeric
	if err := pgxTx.QueryRow(ctx, query, orderID).Scan(&total); err != nil {
		return decimal.Zero, err
	}

	return numericToDecimal(total), nil
}

func scanIncome(row rowScanner) (*domain.IncomeRecord, error) {
	var (
		record     domain.IncomeRecord
		customer   string
		kind       string
		amount     pgtype.Numeric
		detail     []byte
		occurredOn pgtype.Date
		createdAt  pgtype.Timestamptz
	)

	err := row.Scan(
		&record.ID,
		&record.OrderID,
		&record.GroupID,
		&customer,
		&kind,
		&amount,
		&detail,
		&occurredOn,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, err
	}

	record.Customer = domain.CustomerKind(customer)
	record.Kind = domain.RecordKind(kind)
	record.Amount = numericToDecimal(amount)
	record.OccurredOn = occurredOn.Time
	record.CreatedAt = createdAt.Time

	if len(detail) > 0 {
		record.Detail = &domain.AdjustmentDetail{}
		if err := json.Unmarshal(detail, record.Detail); err != nil {
			return nil, fmt.Errorf("unmarshal detail: %w", err)
		}
	}

	return &record, nil
}

func scanExpense(row rowScanner) (*domain.ExpenseRecord, error) {
	var (
		record     domain.ExpenseRecord
		kind       string
		amount     pgtype.Numeric
		occurredOn pgtype.Date
		createdAt  pgtype.Timestamptz
	)

	err := row.Scan(
		&record.ID,
		&kind,
		&amount,
		&record.Note,
		&occurredOn,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, err
	}

	record.Kind = domain.ExpenseKind(kind)
	record.Amount = numericToDecimal(amount)
	record.OccurredOn = occurredOn.Time
	record.CreatedAt = createdAt.Time

	return &record, nil
}
