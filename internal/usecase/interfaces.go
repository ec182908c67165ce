package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fengq/loanbook/internal/domain"
)

// OrderFilter narrows order queries. Zero fields are ignored.
type OrderFilter struct {
	GroupID  string
	ChatID   int64
	Customer domain.CustomerKind
	State    domain.OrderState
	From     time.Time
	To       time.Time
	Limit    int
	Offset   int
}

// OrderRepository defines data access for loan orders.
type OrderRepository interface {
	Create(ctx context.Context, tx Transaction, order *domain.Order) error
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id int64) (*domain.Order, error)
	GetActiveByChat(ctx context.Context, chatID int64) (*domain.Order, error)
	GetActiveByChatForUpdate(ctx context.Context, tx Transaction, chatID int64) (*domain.Order, error)
	UpdateState(ctx context.Context, tx Transaction, id int64, state domain.OrderState, updatedAt time.Time) error
	UpdateOutstanding(ctx context.Context, tx Transaction, id int64, outstanding decimal.Decimal, updatedAt time.Time) error
	Delete(ctx context.Context, tx Transaction, id int64) error
	List(ctx context.Context, filter OrderFilter) ([]*domain.Order, error)
	// NextID advances the order counter; only called once an order is
	// certain to be created inside the same transaction.
	NextID(ctx context.Context, tx Transaction) (int64, error)
}

// IncomeFilter narrows income record queries. Zero fields are ignored.
type IncomeFilter struct {
	OrderID int64
	GroupID string
	Kind    domain.RecordKind
	From    time.Time
	To      time.Time
	Limit   int
	Offset  int
}

// RecordRepository defines data access for the append-only income and
// expense logs.
type RecordRepository interface {
	AppendIncome(ctx context.Context, tx Transaction, record *domain.IncomeRecord) error
	AppendExpense(ctx context.Context, tx Transaction, record *domain.ExpenseRecord) error
	GetExpense(ctx context.Context, id string) (*domain.ExpenseRecord, error)
	DeleteExpense(ctx context.Context, tx Transaction, id string) error
	ListIncome(ctx context.Context, filter IncomeFilter) ([]*domain.IncomeRecord, error)
	ListExpenses(ctx context.Context, kind domain.ExpenseKind, from, to time.Time) ([]*domain.ExpenseRecord, error)
	// SettledTotal sums breach settlements for an order, net of reversals.
	SettledTotal(ctx context.Context, tx Transaction, orderID int64) (decimal.Decimal, error)
}

// SnapshotRepository maintains the incrementally aggregated views.
type SnapshotRepository interface {
	// Apply folds one event into every scope it touches: global,
	// grouped (when the event carries a group) and the daily rows.
	Apply(ctx context.Context, tx Transaction, event domain.Event) error
	Global(ctx context.Context) (*domain.Snapshot, error)
	Grouped(ctx context.Context, groupID string) (*domain.Snapshot, error)
	Daily(ctx context.Context, date time.Time, groupID string) (*domain.Snapshot, error)
	// RangeSum adds up daily rows in [from, to]. Empty groupID sums the
	// company-wide daily rows.
	RangeSum(ctx context.Context, from, to time.Time, groupID string) (*domain.Snapshot, error)
	GroupIDs(ctx context.Context) ([]string, error)
	Reset(ctx context.Context, tx Transaction) error
}

// HistoryRepository defines data access for the per-chat operation history.
type HistoryRepository interface {
	Append(ctx context.Context, tx Transaction, entry *domain.OperationEntry) error
	// LastUndoable returns the most recent unconsumed, non-undo entry
	// for the chat, locked for update.
	LastUndoable(ctx context.Context, tx Transaction, chatID int64) (*domain.OperationEntry, error)
	MarkConsumed(ctx context.Context, tx Transaction, id int64) error
	// RecentTypes returns the types of the chat's newest entries,
	// newest first, up to limit.
	RecentTypes(ctx context.Context, chatID int64, limit int) ([]domain.OperationType, error)
	ListByChat(ctx context.Context, chatID int64, limit, offset int) ([]*domain.OperationEntry, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs for log records.
type IDGenerator interface {
	Generate() string
}

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
}
