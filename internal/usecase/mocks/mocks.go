package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fengq/loanbook/internal/domain"
	"github.com/fengq/loanbook/internal/usecase"
)

// MockOrderRepository is a mock implementation of OrderRepository backed
// by an in-memory map.
type MockOrderRepository struct {
	mu      sync.RWMutex
	orders  map[int64]*domain.Order
	counter int64

	CreateFunc                   func(ctx context.Context, tx usecase.Transaction, order *domain.Order) error
	GetByIDFunc                  func(ctx context.Context, id int64) (*domain.Order, error)
	GetByIDForUpdateFunc         func(ctx context.Context, tx usecase.Transaction, id int64) (*domain.Order, error)
	GetActiveByChatFunc          func(ctx context.Context, chatID int64) (*domain.Order, error)
	GetActiveByChatForUpdateFunc func(ctx context.Context, tx usecase.Transaction, chatID int64) (*domain.Order, error)
	UpdateStateFunc              func(ctx context.Context, tx usecase.Transaction, id int64, state domain.OrderState, updatedAt time.Time) error
	UpdateOutstandingFunc        func(ctx context.Context, tx usecase.Transaction, id int64, outstanding decimal.Decimal, updatedAt time.Time) error
	DeleteFunc                   func(ctx context.Context, tx usecase.Transaction, id int64) error
	ListFunc                     func(ctx context.Context, filter usecase.OrderFilter) ([]*domain.Order, error)
	NextIDFunc                   func(ctx context.Context, tx usecase.Transaction) (int64, error)
}

func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders: make(map[int64]*domain.Order),
	}
}

func (m *MockOrderRepository) Create(ctx context.Context, tx usecase.Transaction, order *domain.Order) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, order)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *order
	m.orders[order.ID] = &cp
	return nil
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if order, ok := m.orders[id]; ok {
		cp := *order
		return &cp, nil
	}
	return nil, domain.ErrOrderNotFound
}

func (m *MockOrderRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id int64) (*domain.Order, error) {
	if m.GetByIDForUpdateFunc != nil {
		return m.GetByIDForUpdateFunc(ctx, tx, id)
	}
	return m.GetByID(ctx, id)
}

func (m *MockOrderRepository) GetActiveByChat(ctx context.Context, chatID int64) (*domain.Order, error) {
	if m.GetActiveByChatFunc != nil {
		return m.GetActiveByChatFunc(ctx, chatID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, order := range m.orders {
		if order.ChatID == chatID && order.State.Active() {
			cp := *order
			return &cp, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (m *MockOrderRepository) GetActiveByChatForUpdate(ctx context.Context, tx usecase.Transaction, chatID int64) (*domain.Order, error) {
	if m.GetActiveByChatForUpdateFunc != nil {
		return m.GetActiveByChatForUpdateFunc(ctx, tx, chatID)
	}
	return m.GetActiveByChat(ctx, chatID)
}

func (m *MockOrderRepository) UpdateState(ctx context.Context, tx usecase.Transaction, id int64, state domain.OrderState, updatedAt time.Time) error {
	if m.UpdateStateFunc != nil {
		return m.UpdateStateFunc(ctx, tx, id, state, updatedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	order.State = state
	order.UpdatedAt = updatedAt
	return nil
}

func (m *MockOrderRepository) UpdateOutstanding(ctx context.Context, tx usecase.Transaction, id int64, outstanding decimal.Decimal, updatedAt time.Time) error {
	if m.UpdateOutstandingFunc != nil {
		return m.UpdateOutstandingFunc(ctx, tx, id, outstanding, updatedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	order.Outstanding = outstanding
	order.UpdatedAt = updatedAt
	return nil
}

func (m *MockOrderRepository) Delete(ctx context.Context, tx usecase.Transaction, id int64) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return domain.ErrOrderNotFound
	}
	delete(m.orders, id)
	return nil
}

func (m *MockOrderRepository) List(ctx context.Context, filter usecase.OrderFilter) ([]*domain.Order, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*domain.Order
	for _, order := range m.orders {
		if filter.GroupID != "" && order.GroupID != filter.GroupID {
			continue
		}
		if filter.ChatID != 0 && order.ChatID != filter.ChatID {
			continue
		}
		if filter.Customer != "" && order.Customer != filter.Customer {
			continue
		}
		if filter.State != "" && order.State != filter.State {
			continue
		}
		if !filter.From.IsZero() && order.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && order.CreatedAt.After(filter.To) {
			continue
		}
		cp := *order
		matched = append(matched, &cp)
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	if filter.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (m *MockOrderRepository) NextID(ctx context.Context, tx usecase.Transaction) (int64, error) {
	if m.NextIDFunc != nil {
		return m.NextIDFunc(ctx, tx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return m.counter, nil
}

// Counter reports the current order counter value.
func (m *MockOrderRepository) Counter() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counter
}

// MockRecordRepository is a mock implementation of RecordRepository.
type MockRecordRepository struct {
	mu       sync.RWMutex
	income   []*domain.IncomeRecord
	expenses map[string]*domain.ExpenseRecord

	AppendIncomeFunc  func(ctx context.Context, tx usecase.Transaction, record *domain.IncomeRecord) error
	AppendExpenseFunc func(ctx context.Context, tx usecase.Transaction, record *domain.ExpenseRecord) error
	SettledTotalFunc  func(ctx context.Context, tx usecase.Transaction, orderID int64) (decimal.Decimal, error)
}

func NewMockRecordRepository() *MockRecordRepository {
	return &MockRecordRepository{
		expenses: make(map[string]*domain.ExpenseRecord),
	}
}

func (m *MockRecordRepository) AppendIncome(ctx context.Context, tx usecase.Transaction, record *domain.IncomeRecord) error {
	if m.AppendIncomeFunc != nil {
		return m.AppendIncomeFunc(ctx, tx, record)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *record
	m.income = append(m.income, &cp)
	return nil
}

func (m *MockRecordRepository) AppendExpense(ctx context.Context, tx usecase.Transaction, record *domain.ExpenseRecord) error {
	if m.AppendExpenseFunc != nil {
		return m.AppendExpenseFunc(ctx, tx, record)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *record
	m.expenses[record.ID] = &cp
	return nil
}

func (m *MockRecordRepository) GetExpense(ctx context.Context, id string) (*domain.ExpenseRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if expense, ok := m.expenses[id]; ok {
		cp := *expense
		return &cp, nil
	}
	return nil, domain.ErrRecordNotFound
}

func (m *MockRecordRepository) DeleteExpense(ctx context.Context, tx usecase.Transaction, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.expenses[id]; !ok {
		return domain.ErrRecordNotFound
	}
	delete(m.expenses, id)
	return nil
}

func (m *MockRecordRepository) ListIncome(ctx context.Context, filter usecase.IncomeFilter) ([]*domain.IncomeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*domain.IncomeRecord
	for _, record := range m.income {
		if filter.OrderID != 0 && record.OrderID != filter.OrderID {
			continue
		}
		if filter.GroupID != "" && record.GroupID != filter.GroupID {
			continue
		}
		if filter.Kind != "" && record.Kind != filter.Kind {
			continue
		}
		if !filter.From.IsZero() && record.OccurredOn.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && record.OccurredOn.After(filter.To) {
			continue
		}
		cp := *record
		matched = append(matched, &cp)
	}

	if filter.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (m *MockRecordRepository) ListExpenses(ctx context.Context, kind domain.ExpenseKind, from, to time.Time) ([]*domain.ExpenseRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*domain.ExpenseRecord
	for _, expense := range m.expenses {
		if kind != "" && expense.Kind != kind {
			continue
		}
		if !from.IsZero() && expense.OccurredOn.Before(from) {
			continue
		}
		if !to.IsZero() && expense.OccurredOn.After(to) {
			continue
		}
		cp := *expense
		matched = append(matched, &cp)
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return matched, nil
}

func (m *MockRecordRepository) SettledTotal(ctx context.Context, tx usecase.Transaction, orderID int64) (decimal.Decimal, error) {
	if m.SettledTotalFunc != nil {
		return m.SettledTotalFunc(ctx, tx, orderID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := decimal.Zero
	for _, record := range m.income {
		if record.OrderID != orderID {
			continue
		}
		switch {
		case record.Kind == domain.KindBreachSettlement:
			total = total.Add(record.Amount)
		case record.Kind == domain.KindAdjustment && record.Detail != nil &&
			record.Detail.ReversedKind == domain.KindBreachSettlement:
			total = total.Sub(record.Amount)
		}
	}
	return total, nil
}

// IncomeRecords returns a copy of every appended income record.
func (m *MockRecordRepository) IncomeRecords() []*domain.IncomeRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.IncomeRecord, 0, len(m.income))
	for _, record := range m.income {
		cp := *record
		out = append(out, &cp)
	}
	return out
}

// MockSnapshotRepository is a mock implementation of SnapshotRepository
// that maintains real in-memory aggregates, so usecase tests exercise
// the same arithmetic as the database rows.
type MockSnapshotRepository struct {
	mu      sync.RWMutex
	global  domain.Snapshot
	grouped map[string]*domain.Snapshot
	daily   map[string]*domain.Snapshot

	ApplyFunc func(ctx context.Context, tx usecase.Transaction, event domain.Event) error
}

func NewMockSnapshotRepository() *MockSnapshotRepository {
	return &MockSnapshotRepository{
		grouped: make(map[string]*domain.Snapshot),
		daily:   make(map[string]*domain.Snapshot),
	}
}

func dailyKey(date time.Time, groupID string) string {
	return fmt.Sprintf("%s|%s", date.Format("2006-01-02"), groupID)
}

// lifetimeDelta strips the daily-only fields; lifetime rows do not carry
// them.
func lifetimeDelta(d domain.Delta) domain.Delta {
	d.LiquidFlow = decimal.Zero
	d.CompanyExpenses = decimal.Zero
	d.OtherExpenses = decimal.Zero
	return d
}

func (m *MockSnapshotRepository) Apply(ctx context.Context, tx usecase.Transaction, event domain.Event) error {
	if m.ApplyFunc != nil {
		return m.ApplyFunc(ctx, tx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.global.Apply(lifetimeDelta(event.Delta))

	if event.GroupID != "" {
		snap, ok := m.grouped[event.GroupID]
		if !ok {
			snap = &domain.Snapshot{}
			m.grouped[event.GroupID] = snap
		}
		snap.Apply(lifetimeDelta(event.Delta))
	}

	keys := []string{dailyKey(event.Date, "")}
	if event.GroupID != "" {
		keys = append(keys, dailyKey(event.Date, event.GroupID))
	}
	for _, key := range keys {
		snap, ok := m.daily[key]
		if !ok {
			snap = &domain.Snapshot{}
			m.daily[key] = snap
		}
		snap.Apply(event.Delta)
	}

	return nil
}

func (m *MockSnapshotRepository) Global(ctx context.Context) (*domain.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp := m.global
	return &cp, nil
}

func (m *MockSnapshotRepository) Grouped(ctx context.Context, groupID string) (*domain.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if snap, ok := m.grouped[groupID]; ok {
		cp := *snap
		return &cp, nil
	}
	return &domain.Snapshot{}, nil
}

func (m *MockSnapshotRepository) Daily(ctx context.Context, date time.Time, groupID string) (*domain.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if snap, ok := m.daily[dailyKey(date, groupID)]; ok {
		cp := *snap
		return &cp, nil
	}
	return &domain.Snapshot{}, nil
}

func (m *MockSnapshotRepository) RangeSum(ctx context.Context, from, to time.Time, groupID string) (*domain.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total domain.Snapshot
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if snap, ok := m.daily[dailyKey(day, groupID)]; ok {
			total.Add(snap)
		}
	}
	return &total, nil
}

func (m *MockSnapshotRepository) GroupIDs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.grouped))
	for id := range m.grouped {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MockSnapshotRepository) Reset(ctx context.Context, tx usecase.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.global = domain.Snapshot{}
	m.grouped = make(map[string]*domain.Snapshot)
	m.daily = make(map[string]*domain.Snapshot)
	return nil
}

// MockHistoryRepository is a mock implementation of HistoryRepository.
type MockHistoryRepository struct {
	mu      sync.RWMutex
	entries []*domain.OperationEntry
	nextID  int64

	AppendFunc       func(ctx context.Context, tx usecase.Transaction, entry *domain.OperationEntry) error
	LastUndoableFunc func(ctx context.Context, tx usecase.Transaction, chatID int64) (*domain.OperationEntry, error)
}

func NewMockHistoryRepository() *MockHistoryRepository {
	return &MockHistoryRepository{}
}

func (m *MockHistoryRepository) Append(ctx context.Context, tx usecase.Transaction, entry *domain.OperationEntry) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, tx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	entry.ID = m.nextID
	cp := *entry
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *MockHistoryRepository) LastUndoable(ctx context.Context, tx usecase.Transaction, chatID int64) (*domain.OperationEntry, error) {
	if m.LastUndoableFunc != nil {
		return m.LastUndoableFunc(ctx, tx, chatID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.entries) - 1; i >= 0; i-- {
		entry := m.entries[i]
		if entry.ChatID != chatID || entry.Consumed || entry.Type == domain.OpUndo {
			continue
		}
		cp := *entry
		return &cp, nil
	}
	return nil, domain.ErrNothingToUndo
}

func (m *MockHistoryRepository) MarkConsumed(ctx context.Context, tx usecase.Transaction, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entry := range m.entries {
		if entry.ID == id {
			entry.Consumed = true
			return nil
		}
	}
	return domain.ErrRecordNotFound
}

func (m *MockHistoryRepository) RecentTypes(ctx context.Context, chatID int64, limit int) ([]domain.OperationType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var types []domain.OperationType
	for i := len(m.entries) - 1; i >= 0 && len(types) < limit; i-- {
		if m.entries[i].ChatID == chatID {
			types = append(types, m.entries[i].Type)
		}
	}
	return types, nil
}

func (m *MockHistoryRepository) ListByChat(ctx context.Context, chatID int64, limit, offset int) ([]*domain.OperationEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []*domain.OperationEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].ChatID == chatID {
			cp := *m.entries[i]
			matched = append(matched, &cp)
		}
	}
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// Entries returns a copy of every appended entry.
func (m *MockHistoryRepository) Entries() []*domain.OperationEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.OperationEntry, 0, len(m.entries))
	for _, entry := range m.entries {
		cp := *entry
		out = append(out, &cp)
	}
	return out
}

// MockTransaction is a mock implementation of Transaction.
type MockTransaction struct {
	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error

	Committed  bool
	RolledBack bool
}

func (m *MockTransaction) Commit(ctx context.Context) error {
	if m.CommitFunc != nil {
		return m.CommitFunc(ctx)
	}
	m.Committed = true
	return nil
}

func (m *MockTransaction) Rollback(ctx context.Context) error {
	if m.RollbackFunc != nil {
		return m.RollbackFunc(ctx)
	}
	if !m.Committed {
		m.RolledBack = true
	}
	return nil
}

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return &MockTransaction{}, nil
}

// MockIDGenerator is a mock implementation of IDGenerator producing
// deterministic sequential IDs.
type MockIDGenerator struct {
	mu      sync.Mutex
	counter int

	GenerateFunc func() string
}

func NewMockIDGenerator() *MockIDGenerator {
	return &MockIDGenerator{}
}

func (m *MockIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return fmt.Sprintf("rec-%04d", m.counter)
}

// MockCache is a mock implementation of Cache.
type MockCache struct {
	mu    sync.RWMutex
	items map[string][]byte

	GetFunc    func(ctx context.Context, key string) ([]byte, error)
	SetFunc    func(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteFunc func(ctx context.Context, key string) error
}

func NewMockCache() *MockCache {
	return &MockCache{items: make(map[string][]byte)}
}

func (m *MockCache) Get(ctx context.Context, key string) ([]byte, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.items[key], nil
}

func (m *MockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// MockIdempotencyStore is a mock implementation of IdempotencyStore.
type MockIdempotencyStore struct {
	mu    sync.Mutex
	items map[string][]byte
}

func NewMockIdempotencyStore() *MockIdempotencyStore {
	return &MockIdempotencyStore{items: make(map[string][]byte)}
}

func (m *MockIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.items[key]; ok {
		return true, existing, nil
	}
	m.items[key] = response
	return false, nil, nil
}

func (m *MockIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = response
	return nil
}
