package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fengq/loanbook/internal/domain"
	"github.com/fengq/loanbook/internal/usecase"
)

// snapshotsEqual compares the lifetime fields two mock snapshots expose.
func snapshotsEqual(a, b *domain.Snapshot) bool {
	return a.ActiveOrders == b.ActiveOrders && a.ActiveAmount.Equal(b.ActiveAmount) &&
		a.OverdueOrders == b.OverdueOrders && a.OverdueAmount.Equal(b.OverdueAmount) &&
		a.LiquidFunds.Equal(b.LiquidFunds) &&
		a.NewClients == b.NewClients && a.NewClientAmount.Equal(b.NewClientAmount) &&
		a.OldClients == b.OldClients && a.OldClientAmount.Equal(b.OldClientAmount) &&
		a.Interest.Equal(b.Interest) &&
		a.CompletedOrders == b.CompletedOrders && a.CompletedAmount.Equal(b.CompletedAmount) &&
		a.BreachOrders == b.BreachOrders && a.BreachAmount.Equal(b.BreachAmount) &&
		a.BreachEndOrders == b.BreachEndOrders && a.BreachEndAmount.Equal(b.BreachEndAmount)
}

func TestUndoUseCase_NothingToUndo(t *testing.T) {
	f := newLedgerFixture()

	_, err := f.undo.UndoLast(context.Background(), 100)
	if !errors.Is(err, domain.ErrNothingToUndo) {
		t.Errorf("expected ErrNothingToUndo, got %v", err)
	}
}

func TestUndoUseCase_UndoCreate(t *testing.T) {
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

	result, err := f.undo.UndoLast(ctx, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.UndoneType != domain.OpOrderCreated {
		t.Errorf("expected order_created, got %s", result.UndoneType)
	}

	if _, err := f.orders.GetByID(ctx, order.ID); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("undone creation must delete the order, got %v", err)
	}

	snap, _ := f.snapshots.Grouped(ctx, "g1")
	if !snapshotsEqual(snap, &domain.Snapshot{}) {
		t.Errorf("undo must restore the empty snapshot: %+v", snap)
	}

	// The chat can issue again.
	if _, err := f.ledger.CreateOrder(ctx, usecase.CreateOrderInput{
		GroupID:  "g1",
		ChatID:   100,
		Customer: domain.CustomerNew,
		Amount:   decimal.NewFromInt(400),
	}); err != nil {
		t.Errorf("expected creation after undo to succeed: %v", err)
	}
}

func TestUndoUseCase_InverseProperty(t *testing.T) {
	// For each operation type: capture the snapshot, run the operation,
	// undo it, and expect the original aggregate state back.
	tests := []struct {
		name    string
		prepare func(t *testing.T, f *ledgerFixture, orderID int64)
		operate func(t *testing.T, f *ledgerFixture, orderID int64)
	}{
		{
			name: "interest",
			operate: func(t *testing.T, f *ledgerFixture, orderID int64) {
				if _, err := f.ledger.RecordInterest(context.Background(), usecase.PaymentInput{OrderID: orderID, Amount: decimal.NewFromInt(30)}); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			},
		},
		{
			name: "principal reduction",
			operate: func(t *testing.T, f *ledgerFixture, orderID int64) {
				if _, err := f.ledger.ReducePrincipal(context.Background(), usecase.PaymentInput{OrderID: orderID, Amount: decimal.NewFromInt(200)}); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			},
		},
		{
			name: "state change to overdue",
			operate: func(t *testing.T, f *ledgerFixture, orderID int64) {
				if _, err := f.ledger.ChangeState(context.Background(), orderID, domain.StateOverdue); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			},
		},
		{
			name: "state change to breach",
			operate: func(t *testing.T, f *ledgerFixture, orderID int64) {
				if _, err := f.ledger.ChangeState(context.Background(), orderID, domain.StateBreach); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			},
		},
		{
			name: "completion",
			operate: func(t *testing.T, f *ledgerFixture, orderID int64) {
				if _, err := f.ledger.CompleteOrder(context.Background(), orderID); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			},
		},
		{
			name: "breach settlement",
			prepare: func(t *testing.T, f *ledgerFixture, orderID int64) {
				if _, err := f.ledger.ChangeState(context.Background(), orderID, domain.StateBreach); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			},
			operate: func(t *testing.T, f *ledgerFixture, orderID int64) {
				if _, err := f.ledger.RecordSettlement(context.Background(), usecase.PaymentInput{OrderID: orderID, Amount: decimal.NewFromInt(120)}); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			},
		},
		{
			name: "breach close",
			prepare: func(t *testing.T, f *ledgerFixture, orderID int64) {
				ctx := context.Background()
				if _, err := f.ledger.ChangeState(ctx, orderID, domain.StateBreach); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if _, err := f.ledger.RecordSettlement(ctx, usecase.PaymentInput{OrderID: orderID, Amount: decimal.NewFromInt(120)}); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			},
			operate: func(t *testing.T, f *ledgerFixture, orderID int64) {
				if _, err := f.ledger.CompleteBreach(context.Background(), orderID); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
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

			if tt.prepare != nil {
				tt.prepare(t, f, order.ID)
			}

			before, _ := f.snapshots.Grouped(ctx, "g1")
			orderBefore, _ := f.orders.GetByID(ctx, order.ID)

			tt.operate(t, f, order.ID)

			if _, err := f.undo.UndoLast(ctx, 100); err != nil {
				t.Fatalf("undo failed: %v", err)
			}

			after, _ := f.snapshots.Grouped(ctx, "g1")
			if !snapshotsEqual(before, after) {
				t.Errorf("undo did not restore the snapshot:\nbefore %+v\nafter  %+v", before, after)
			}

			orderAfter, _ := f.orders.GetByID(ctx, order.ID)
			if orderAfter.State != orderBefore.State {
				t.Errorf("undo did not restore state: %s != %s", orderAfter.State, orderBefore.State)
			}
			if !orderAfter.Outstanding.Equal(orderBefore.Outstanding) {
				t.Errorf("undo did not restore outstanding: %s != %s", orderAfter.Outstanding, orderBefore.Outstanding)
			}
		})
	}
}

func TestUndoUseCase_UndoExpense(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	record, err := f.ledger.RecordExpense(ctx, usecase.ExpenseInput{
		ChatID: 100,
		Kind:   domain.ExpenseOther,
		Amount: decimal.NewFromInt(40),
		Note:   "courier",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := f.undo.UndoLast(ctx, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := f.records.GetExpense(ctx, record.ID); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Errorf("undone expense must be deleted, got %v", err)
	}

	global, _ := f.snapshots.Global(ctx)
	if !global.LiquidFunds.IsZero() {
		t.Errorf("expected liquid funds restored, got %s", global.LiquidFunds)
	}

	day, _ := f.snapshots.Daily(ctx, record.OccurredOn, "")
	if !day.OtherExpenses.IsZero() || !day.LiquidFlow.IsZero() {
		t.Errorf("expected daily row restored: %+v", day)
	}
}

func TestUndoUseCase_ConsecutiveLimit(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	order, _ := f.ledger.CreateOrder(ctx, usecase.CreateOrderInput{
		GroupID:  "g1",
		ChatID:   100,
		Customer: domain.CustomerNew,
		Amount:   decimal.NewFromInt(500),
	})
	for i := 0; i < 3; i++ {
		if _, err := f.ledger.RecordInterest(ctx, usecase.PaymentInput{OrderID: order.ID, Amount: decimal.NewFromInt(10)}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	for i := 0; i < 3; i++ {
		if _, err := f.undo.UndoLast(ctx, 100); err != nil {
			t.Fatalf("undo %d failed: %v", i+1, err)
		}
	}

	_, err := f.undo.UndoLast(ctx, 100)
	if !errors.Is(err, domain.ErrUndoLimitReached) {
		t.Fatalf("expected ErrUndoLimitReached, got %v", err)
	}

	// A fresh operation resets the window.
	if _, err := f.ledger.RecordInterest(ctx, usecase.PaymentInput{OrderID: order.ID, Amount: decimal.NewFromInt(10)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.undo.UndoLast(ctx, 100); err != nil {
		t.Errorf("expected undo after fresh operation to succeed: %v", err)
	}
}

func TestUndoUseCase_ChatScoped(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	orderA, _ := f.ledger.CreateOrder(ctx, usecase.CreateOrderInput{
		GroupID:  "g1",
		ChatID:   100,
		Customer: domain.CustomerNew,
		Amount:   decimal.NewFromInt(500),
	})
	orderB, _ := f.ledger.CreateOrder(ctx, usecase.CreateOrderInput{
		GroupID:  "g1",
		ChatID:   200,
		Customer: domain.CustomerReturning,
		Amount:   decimal.NewFromInt(300),
	})

	// Chat 200 acted last globally, but chat 100's undo targets its own
	// newest operation.
	result, err := f.undo.UndoLast(ctx, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.OrderID != orderA.ID {
		t.Errorf("expected undo of order %d, got %d", orderA.ID, result.OrderID)
	}

	if _, err := f.orders.GetByID(ctx, orderB.ID); err != nil {
		t.Errorf("chat 200's order must survive: %v", err)
	}
}

func TestUndoUseCase_UndoIsNotUndoable(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	order, _ := f.ledger.CreateOrder(ctx, usecase.CreateOrderInput{
		GroupID:  "g1",
		ChatID:   100,
		Customer: domain.CustomerNew,
		Amount:   decimal.NewFromInt(500),
	})
	if _, err := f.ledger.RecordInterest(ctx, usecase.PaymentInput{OrderID: order.ID, Amount: decimal.NewFromInt(10)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := f.undo.UndoLast(ctx, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The next undo target is the creation, not the undo entry itself.
	result, err := f.undo.UndoLast(ctx, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.UndoneType != domain.OpOrderCreated {
		t.Errorf("expected order_created, got %s", result.UndoneType)
	}
}

func TestUndoUseCase_AppendsReversalRecord(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	order, _ := f.ledger.CreateOrder(ctx, usecase.CreateOrderInput{
		GroupID:  "g1",
		ChatID:   100,
		Customer: domain.CustomerNew,
		Amount:   decimal.NewFromInt(500),
	})
	interest, _ := f.ledger.RecordInterest(ctx, usecase.PaymentInput{OrderID: order.ID, Amount: decimal.NewFromInt(30)})

	if _, err := f.undo.UndoLast(ctx, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The interest record survives; a reversal was appended next to it.
	records := f.records.IncomeRecords()
	var reversal *domain.IncomeRecord
	for _, r := range records {
		if r.Kind == domain.KindAdjustment && r.Detail != nil && r.Detail.Reverses == interest.ID {
			reversal = r
		}
	}
	if reversal == nil {
		t.Fatalf("expected a reversal record, got %d records", len(records))
	}
	if reversal.Detail.ReversedKind != domain.KindInterest {
		t.Errorf("expected reversed kind interest, got %s", reversal.Detail.ReversedKind)
	}

	mocksContainOriginal := false
	for _, r := range records {
		if r.ID == interest.ID {
			mocksContainOriginal = true
		}
	}
	if !mocksContainOriginal {
		t.Error("original record must never be deleted")
	}
}

func TestUndoUseCase_ReductionWhileOverdueRestoresBucket(t *testing.T) {
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

	if _, err := f.undo.UndoLast(ctx, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := f.orders.GetByID(ctx, order.ID)
	if !got.Outstanding.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("expected outstanding 1000, got %s", got.Outstanding)
	}

	// The reversal puts the reduction back into the overdue bucket too.
	snap, _ := f.snapshots.Grouped(ctx, "g1")
	if !snap.OverdueAmount.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("expected overdue amount 1000, got %s", snap.OverdueAmount)
	}
	if !snap.ActiveAmount.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("expected active amount 1000, got %s", snap.ActiveAmount)
	}
}
