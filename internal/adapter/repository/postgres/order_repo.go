package postgres

import (
	"context"
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

const orderColumns = `id, group_id, chat_id, customer_kind, amount, outstanding, state, weekday_label, created_at, updated_at`

// OrderRepository implements usecase.OrderRepository.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository creates a new OrderRepository.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts a new order.
func (r *OrderRepository) Create(ctx context.Context, tx usecase.Transaction, order *domain.Order) error {
	pgxTx := tx.(*Tx).PgxTx()

	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := pgxTx.Exec(ctx, query,
		order.ID,
		order.GroupID,
		order.ChatID,
		string(order.Customer),
		decimalToNumeric(order.Amount),
		decimalToNumeric(order.Outstanding),
		string(order.State),
		order.WeekdayLabel,
		timeToPgTimestamptz(order.CreatedAt),
		timeToPgTimestamptz(order.UpdatedAt),
	)

	return err
}

// GetByID retrieves an order by its sequence number.
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	return scanOrder(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate retrieves an order with a FOR UPDATE lock.
func (r *OrderRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id int64) (*domain.Order, error) {
	pgxTx := tx.(*Tx).PgxTx()

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

	return scanOrder(pgxTx.QueryRow(ctx, query, id))
}

// GetActiveByChat retrieves the chat's active order, if any.
func (r *OrderRepository) GetActiveByChat(ctx context.Context, chatID int64) (*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + ` FROM orders
		WHERE chat_id = $1 AND state IN ('normal', 'overdue')
	`

	return scanOrder(r.pool.QueryRow(ctx, query, chatID))
}

// GetActiveByChatForUpdate retrieves the chat's active order with a
// FOR UPDATE lock, serializing creations against the same chat.
func (r *OrderRepository) GetActiveByChatForUpdate(ctx context.Context, tx usecase.Transaction, chatID int64) (*domain.Order, error) {
	pgxTx := tx.(*Tx).PgxTx()

	query := `
		SELECT ` + orderColumns + ` FROM orders
		WHERE chat_id = $1 AND state IN ('normal', 'overdue')
		FOR UPDATE
	`

	return scanOrder(pgxTx.QueryRow(ctx, query, chatID))
}

// UpdateState updates the lifecycle state of an order.
func (r *OrderRepository) UpdateState(ctx context.Context, tx usecase.Transaction, id int64, state domain.OrderState, updatedAt time.Time) error {
	pgxTx := tx.(*Tx).PgxTx()

	tag, err := pgxTx.Exec(ctx,
		`UPDATE orders SET state = $2, updated_at = $3 WHERE id = $1`,
		id, string(state), timeToPgTimestamptz(updatedAt),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}

	return nil
}

// UpdateOutstanding updates the outstanding principal of an order.
func (r *OrderRepository) UpdateOutstanding(ctx context.Context, tx usecase.Transaction, id int64, outstanding decimal.Decimal, updatedAt time.Time) error {
	pgxTx := tx.(*Tx).PgxTx()

	tag, err := pgxTx.Exec(ctx,
		`UPDATE orders SET outstanding = $2, updated_at = $3 WHERE id = $1`,
		id, decimalToNumeric(outstanding), timeToPgTimestamptz(updatedAt),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}

	return nil
}

// Delete removes an order row. Only the undo path does this, to unwind
// a creation.
func (r *OrderRepository) Delete(ctx context.Context, tx usecase.Transaction, id int64) error {
	pgxTx := tx.(*Tx).PgxTx()

	tag, err := pgxTx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}

	return nil
}

// List retrieves orders matching the filter, ordered by sequence number.
func (r *OrderRepository) List(ctx context.Context, filter usecase.OrderFilter) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE 1=1`
	args := []any{}

	if filter.GroupID != "" {
		args = append(args, filter.GroupID)
		query += fmt.Sprintf(` AND group_id = $%d`, len(args))
	}
	if filter.ChatID != 0 {
		args = append(args, filter.ChatID)
		query += fmt.Sprintf(` AND chat_id = $%d`, len(args))
	}
	if filter.Customer != "" {
		args = append(args, string(filter.Customer))
		query += fmt.Sprintf(` AND customer_kind = $%d`, len(args))
	}
	if filter.State != "" {
		args = append(args, string(filter.State))
		query += fmt.Sprintf(` AND state = $%d`, len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, timeToPgTimestamptz(filter.From))
		query += fmt.Sprintf(` AND created_at >= $%d`, len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, timeToPgTimestamptz(filter.To))
		query += fmt.Sprintf(` AND created_at <= $%d`, len(args))
	}

	query += ` ORDER BY id`

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

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	return orders, rows.Err()
}

// NextID advances the order counter and returns the new value.
func (r *OrderRepository) NextID(ctx context.Context, tx usecase.Transaction) (int64, error) {
	pgxTx := tx.(*Tx).PgxTx()

	var id int64
	err := pgxTx.QueryRow(ctx,
		`UPDATE order_counter SET value = value + 1 WHERE id = 1 RETURNING value`,
	).Scan(&id)

	return id, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order       domain.Order
		customer    string
		state       string
		amount      pgtype.Numeric
		outstanding pgtype.Numeric
		createdAt   pgtype.Timestamptz
		updatedAt   pgtype.Timestamptz
	)

	err := row.Scan(
		&order.ID,
		&order.GroupID,
		&order.ChatID,
		&customer,
		&amount,
		&outstanding,
		&state,
		&order.WeekdayLabel,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}

		return nil, err
	}

	order.Customer = domain.CustomerKind(customer)
	order.State = domain.OrderState(state)
	order.Amount = numericToDecimal(amount)
	order.Outstanding = numericToDecimal(outstanding)
	order.CreatedAt = createdAt.Time
	order.UpdatedAt = updatedAt.Time

	return &order, nil
}

// Type conversion helpers.
func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric

	_ = n.Scan(d.String())

	return n
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}

	d, _ := decimal.NewFromString(n.Int.String())
	if n.Exp != 0 {
		d = d.Shift(n.Exp)
	}

	return d
}

func timeToPgTimestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func dateToPgDate(t time.Time) pgtype.Date {
	return pgtype.Date{Time: t, Valid: true}
}
