package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fengq/loanbook/internal/domain"
	"github.com/fengq/loanbook/internal/usecase"
	"github.com/fengq/loanbook/internal/usecase/mocks"
)

type ledgerFixture struct {
	orders    *mocks.MockOrderRepository
	records   *mocks.MockRecordRepository
	snapshots *mocks.MockSnapshotRepository
	history   *mocks.MockHistoryRepository
	ledger    *usecase.LedgerUseCase
	undo      *usecase.UndoUseCase
}

func newLedgerFixture() *ledgerFixture {
	orders := mocks.NewMockOrderRepository()
	records := mocks.NewMockRecordRepository()
	snapshots := mocks.NewMockSnapshotRepository()
	history := mocks.NewMockHistoryRepository()
	txMgr := mocks.NewMockTransactionManager()
	idGen := mocks.NewMockIDGenerator()
	cache := mocks.NewMockCache()

	return &ledgerFixture{
		orders:    orders,
		records:   records,
		snapshots: snapshots,
		history:   history,
		ledger:    usecase.NewLedgerUseCase(txMgr, orders, records, snapshots, history, idGen, cache),
		undo:      usecase.NewUndoUseCase(txMgr, orders, records, snapshots, history, idGen, cache),
	}
}

func TestLedgerUseCase_CreateOrder(t *testing.T) {
	tests := []struct {
		name        string
		input       usecase.CreateOrderInput
		expectError error
	}{
		{
			name: "valid order",
			input: usecase.CreateOrderInput{
				GroupID:  "g1",
				ChatID:   100,
				Customer: domain.CustomerNew,
				Amount:   decimal.NewFromInt(500),
			},
		},
		{
			name: "missing group",
			input: usecase.CreateOrderInput{
				ChatID:   100,
				Customer: domain.CustomerNew,
				Amount:   decimal.NewFromInt(500),
			},
			expectError: domain.ErrInvalidGroupID,
		},
		{
			name: "zero amount",
			input: usecase.CreateOrderInput{
				GroupID:  "g1",
				ChatID:   100,
				Customer: domain.CustomerNew,
				Amount:   decimal.Zero,
			},
			expectError: domain.ErrInvalidAmount,
		},
		{
			name: "missing chat",
			input: usecase.CreateOrderInput{
				GroupID:  "g1",
				Customer: domain.CustomerNew,
				Amount:   decimal.NewFromInt(500),
			},
			expectError: domain.ErrInvalidChatID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLedgerFixture()

			order, err := f.ledger.CreateOrder(context.Background(), tt.input)

			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Fatalf("expected %v, got %v", tt.expectError, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if order.ID != 1 {
				t.Errorf("expected first sequence number 1, got %d", order.ID)
			}
			if order.State != domain.StateNormal {
				t.Errorf("expected state normal, got %s", order.State)
			}
			if !order.Outstanding.Equal(order.Amount) {
				t.Errorf("outstanding must start at principal")
			}
			if order.WeekdayLabel == "" {
				t.Error("expected weekday label")
			}

			snap, _ := f.snapshots.Grouped(context.Background(), "g1")
			if snap.ActiveOrders != 1 || !snap.ActiveAmount.Equal(decimal.NewFromInt(500)) {
				t.Errorf("grouped snapshot not updated: %+v", snap)
			}
			if !snap.LiquidFunds.Equal(decimal.NewFromInt(-500)) {
				t.Errorf("expected liquid funds -500, got %s", snap.LiquidFunds)
			}
		})
	}
}

func TestLedgerUseCase_CreateOrder_ConflictKeepsCounter(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	input := usecase.CreateOrderInput{
		GroupID:  "g1",
		ChatID:   100,
		Customer: domain.CustomerNew,
		Amount:   decimal.NewFromInt(500),
	}

	if _, err := f.ledger.CreateOrder(ctx, input); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := f.ledger.CreateOrder(ctx, input)
	if !errors.Is(err, domain.ErrActiveOrderExists) {
		t.Fatalf("expected ErrActiveOrderExists, got %v", err)
	}

	if got := f.orders.Counter(); got != 1 {
		t.Errorf("rejected creation must not advance the counter, got %d", got)
	}

	// Another chat in the same group is unaffected.
	other := input
	other.ChatID = 200
	order, err := f.ledger.CreateOrder(ctx, other)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.ID != 2 {
		t.Errorf("expected sequence number 2, got %d", order.ID)
	}
}

func TestLedgerUseCase_CreateOrder_AfterCloseAllowsNew(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	input := usecase.CreateOrderInput{
		GroupID:  "g1",
		ChatID:   100,
		Customer: domain.CustomerReturning,
		Amount:   decimal.NewFromInt(300),
	}

	order, err := f.ledger.CreateOrder(ctx, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := f.ledger.CompleteOrder(ctx, order.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := f.ledger.CreateOrder(ctx, input); err != nil {
		t.Errorf("closed order must not block a new one: %v", err)
	}
}

func TestLedgerUseCase_RecordInterest(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	order, err := f.ledger.CreateOrder(ctx, usecase.CreateOrderInput{
		GroupID:  "g1",
		ChatID:   100,
		Customer: domain.CustomerNew,
		Amount:   decimal.NewFromInt(500),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	record, err := f.ledger.RecordInterest(ctx, usecase.PaymentInput{OrderID: order.ID, Amount: decimal.NewFromInt(30)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.Kind != domain.KindInterest {
		t.Errorf("expected interest record, got %s", record.Kind)
	}

	snap, _ := f.snapshots.Grouped(ctx, "g1")
	if !snap.Interest.Equal(decimal.NewFromInt(30)) {
		t.Errorf("expected interest 30, got %s", snap.Interest)
	}
	if !snap.LiquidFunds.Equal(decimal.NewFromInt(-470)) {
		t.Errorf("expected liquid funds -470, got %s", snap.LiquidFunds)
	}

	// Interest never touches the principal.
	got, _ := f.orders.GetByID(ctx, order.ID)
	if !got.Outstanding.Equal(decimal.NewFromInt(500)) {
		t.Errorf("interest must not reduce outstanding, got %s", got.Outstanding)
	}
}

func TestLedgerUseCase_RecordInterest_InactiveOrder(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	order, _ := f.ledger.CreateOrder(ctx, usecase.CreateOrderInput{
		GroupID:  "g1",
		ChatID:   100,
		Customer: domain.CustomerNew,
		Amount:   decimal.NewFromInt(500),
	})
	if _, err := f.ledger.CompleteOrder(ctx, order.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := f.ledger.RecordInterest(ctx, usecase.PaymentInput{OrderID: order.ID, Amount: decimal.NewFromInt(30)})
	if !errors.Is(err, domain.ErrOrderNotActive) {
		t.Errorf("expected ErrOrderNotActive, got %v", err)
	}
}

func TestLedgerUseCase_ReducePrincipal(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	order, _ := f.ledger.CreateOrder(ctx, usecase.CreateOrderInput{
		GroupID:  "g1",
		ChatID:   100,
		Customer: domain.CustomerNew,
		Amount:   decimal.NewFromInt(500),
	})

	updated, err := f.ledger.ReducePrincipal(ctx, usecase.PaymentInput{OrderID: order.ID, Amount: decimal.NewFromInt(200)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !updated.Outstanding.Equal(decimal.NewFromInt(300)) {
		t.Errorf("expected outstanding 300, got %s", updated.Outstanding)
	}

	snap, _ := f.snapshots.Grouped(ctx, "g1")
	if !snap.ActiveAmount.Equal(decimal.NewFromInt(300)) {
		t.Errorf("expected active amount 300, got %s", snap.ActiveAmount)
	}
	if !snap.CompletedAmount.Equal(decimal.NewFromInt(200)) {
		t.Errorf("expected completed amount 200, got %s", snap.CompletedAmount)
	}
	if snap.ActiveOrders != 1 {
		t.Errorf("partial repayment must not close the order")
	}

	// Repaying more than what is left is rejected.
	_, err = f.ledger.ReducePrincipal(ctx, usecase.PaymentInput{OrderID: order.ID, Amount: decimal.NewFromInt(301)})
	if !errors.Is(err, domain.ErrExceedsOutstanding) {
		t.Errorf("expected ErrExceedsOutstanding, got %v", err)
	}

	// Exactly the remainder is fine; the order stays active until an
	// explicit completion.
	if _, err := f.ledger.ReducePrincipal(ctx, usecase.PaymentInput{OrderID: order.ID, Amount: decimal.NewFromInt(300)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := f.orders.GetByID(ctx, order.ID)
	if !got.Outstanding.IsZero() || got.State != domain.StateNormal {
		t.Errorf("expected zero outstanding and active state, got %s %s", got.Outstanding, got.State)
	}
}

func TestLedgerUseCase_ReducePrincipalWhileOverdue(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	order, _ := f.ledger.CreateOrder(ctx, usecase.CreateOrderInput{
		GroupID:  "g1",
		ChatID:   100,
		Customer: domain.CustomerNew,
		Amount:   decimal.NewFromInt(1000),
	})
	if _, err := f.ledger.ChangeState(ctx, order.ID, domain.StateOverdue); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := f.ledger.ReducePrincipal(ctx, usecase.PaymentInput{OrderID: order.ID, Amount: decimal.NewFromInt(400)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The overdue exposure shrinks with the principal, so it tracks the
	// outstanding amount exactly.
	snap, _ := f.snapshots.Grouped(ctx, "g1")
	if !snap.OverdueAmount.Equal(decimal.NewFromInt(600)) {
		t.Errorf("expected overdue amount 600, got %s", snap.OverdueAmount)
	}
	if !snap.ActiveAmount.Equal(decimal.NewFromInt(600)) {
		t.Errorf("expected active amount 600, got %s", snap.ActiveAmount)
	}

	// Returning to normal drains the bucket completely; nothing is stranded.
	if _, err := f.ledger.ChangeState(ctx, order.ID, domain.StateNormal); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap, _ = f.snapshots.Grouped(ctx, "g1")
	if snap.OverdueOrders != 0 {
		t.Errorf("expected 0 overdue orders, got %d", snap.OverdueOrders)
	}
	if !snap.OverdueAmount.IsZero() {
		t.Errorf("expected zero overdue amount, got %s", snap.OverdueAmount)
	}
}

func TestLedgerUseCase_CompleteOrder(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	order, _ := f.ledger.CreateOrder(ctx, usecase.CreateOrderInput{
		GroupID:  "g1",
		ChatID:   100,
		Customer: domain.CustomerNew,
		Amount:   decimal.NewFromInt(500),
	})

	closed, err := f.ledger.CompleteOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if closed.State != domain.StateEnd {
		t.Errorf("expected end, got %s", closed.State)
	}

	snap, _ := f.snapshots.Grouped(ctx, "g1")
	if snap.ActiveOrders != 0 || !snap.ActiveAmount.IsZero() {
		t.Errorf("completion must clear active bucket: %+v", snap)
	}
	if snap.CompletedOrders != 1 || !snap.CompletedAmount.Equal(decimal.NewFromInt(500)) {
		t.Errorf("completion must fill completed bucket: %+v", snap)
	}
	if !snap.LiquidFunds.IsZero() {
		t.Errorf("full cycle should return the principal, got %s", snap.LiquidFunds)
	}

	// Closed orders cannot transition again.
	if _, err := f.ledger.CompleteOrder(ctx, order.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestLedgerUseCase_OverdueRoundTrip(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	order, _ := f.ledger.CreateOrder(ctx, usecase.CreateOrderInput{
		GroupID:  "g1",
		ChatID:   100,
		Customer: domain.CustomerNew,
		Amount:   decimal.NewFromInt(500),
	})

	if _, err := f.ledger.ChangeState(ctx, order.ID, domain.StateOverdue); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap, _ := f.snapshots.Grouped(ctx, "g1")
	if snap.OverdueOrders != 1 || !snap.OverdueAmount.Equal(decimal.NewFromInt(500)) {
		t.Errorf("expected overdue bucket filled: %+v", snap)
	}
	if snap.ActiveOrders != 1 {
		t.Errorf("overdue orders are still active: %+v", snap)
	}

	if _, err := f.ledger.ChangeState(ctx, order.ID, domain.StateNormal); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap, _ = f.snapshots.Grouped(ctx, "g1")
	if snap.OverdueOrders != 0 || !snap.OverdueAmount.IsZero() {
		t.Errorf("round trip must clear overdue bucket: %+v", snap)
	}
}

func TestLedgerUseCase_BreachLifecycle(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	order, _ := f.ledger.CreateOrder(ctx, usecase.CreateOrderInput{
		GroupID:  "g1",
		ChatID:   100,
		Customer: domain.CustomerNew,
		Amount:   decimal.NewFromInt(500),
	})

	if _, err := f.ledger.ChangeState(ctx, order.ID, domain.StateBreach); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap, _ := f.snapshots.Grouped(ctx, "g1")
	if snap.ActiveOrders != 0 || snap.BreachOrders != 1 || !snap.BreachAmount.Equal(decimal.NewFromInt(500)) {
		t.Errorf("breach must move the order out of active: %+v", snap)
	}

	// Settlements while in breach.
	if _, err := f.ledger.RecordSettlement(ctx, usecase.PaymentInput{OrderID: order.ID, Amount: decimal.NewFromInt(120)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.ledger.RecordSettlement(ctx, usecase.PaymentInput{OrderID: order.ID, Amount: decimal.NewFromInt(80)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap, _ = f.snapshots.Grouped(ctx, "g1")
	if !snap.BreachEndAmount.Equal(decimal.NewFromInt(200)) {
		t.Errorf("expected recovered 200, got %s", snap.BreachEndAmount)
	}

	closed, err := f.ledger.CompleteBreach(ctx, order.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if closed.State != domain.StateBreachEnd {
		t.Errorf("expected breach_end, got %s", closed.State)
	}

	snap, _ = f.snapshots.Grouped(ctx, "g1")
	if snap.BreachEndOrders != 1 {
		t.Errorf("expected one closed breach, got %d", snap.BreachEndOrders)
	}
	// Closing must not double count the settled money.
	if !snap.BreachEndAmount.Equal(decimal.NewFromInt(200)) {
		t.Errorf("expected recovered still 200, got %s", snap.BreachEndAmount)
	}

	// No settlements after close.
	_, err = f.ledger.RecordSettlement(ctx, usecase.PaymentInput{OrderID: order.ID, Amount: decimal.NewFromInt(10)})
	if !errors.Is(err, domain.ErrOrderNotBreached) {
		t.Errorf("expected ErrOrderNotBreached, got %v", err)
	}
}

func TestLedgerUseCase_CompleteBreach_RequiresBreach(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	order, _ := f.ledger.CreateOrder(ctx, usecase.CreateOrderInput{
		GroupID:  "g1",
		ChatID:   100,
		Customer: domain.CustomerNew,
		Amount:   decimal.NewFromInt(500),
	})

	if _, err := f.ledger.CompleteBreach(ctx, order.ID); !errors.Is(err, domain.ErrOrderNotBreached) {
		t.Errorf("expected ErrOrderNotBreached, got %v", err)
	}
}

func TestLedgerUseCase_RecordExpense(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	record, err := f.ledger.RecordExpense(ctx, usecase.ExpenseInput{
		ChatID: 100,
		Kind:   domain.ExpenseCompany,
		Amount: decimal.NewFromInt(80),
		Note:   "office rent",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	global, _ := f.snapshots.Global(ctx)
	if !global.LiquidFunds.Equal(decimal.NewFromInt(-80)) {
		t.Errorf("expected liquid funds -80, got %s", global.LiquidFunds)
	}

	day, _ := f.snapshots.Daily(ctx, record.OccurredOn, "")
	if !day.CompanyExpenses.Equal(decimal.NewFromInt(80)) {
		t.Errorf("expected daily company expenses 80, got %s", day.CompanyExpenses)
	}

	// Expenses never reach group scope.
	groups, _ := f.snapshots.GroupIDs(ctx)
	if len(groups) != 0 {
		t.Errorf("expense must not create group rows, got %v", groups)
	}
}

func TestLedgerUseCase_Surplus(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()
	report := usecase.NewReportUseCase(f.snapshots, f.records, nil)

	// Interest 300 on one order, 150 written to breach, 200 recovered.
	order, _ := f.ledger.CreateOrder(ctx, usecase.CreateOrderInput{
		GroupID:  "g1",
		ChatID:   100,
		Customer: domain.CustomerNew,
		Amount:   decimal.NewFromInt(1000),
	})
	if _, err := f.ledger.RecordInterest(ctx, usecase.PaymentInput{OrderID: order.ID, Amount: decimal.NewFromInt(300)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	breached, _ := f.ledger.CreateOrder(ctx, usecase.CreateOrderInput{
		GroupID:  "g1",
		ChatID:   200,
		Customer: domain.CustomerReturning,
		Amount:   decimal.NewFromInt(150),
	})
	if _, err := f.ledger.ChangeState(ctx, breached.ID, domain.StateBreach); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.ledger.RecordSettlement(ctx, usecase.PaymentInput{OrderID: breached.ID, Amount: decimal.NewFromInt(200)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	surplus, err := report.Surplus(ctx, "g1", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !surplus.Equal(decimal.NewFromInt(350)) {
		t.Errorf("expected surplus 350, got %s", surplus)
	}

	// Company-wide surplus is not a thing.
	if _, err := report.Surplus(ctx, "", time.Time{}, time.Time{}); !errors.Is(err, domain.ErrInvalidGroupID) {
		t.Errorf("expected ErrInvalidGroupID, got %v", err)
	}
}
