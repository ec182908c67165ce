package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fengq/loanbook/internal/domain"
	"github.com/fengq/loanbook/internal/usecase"
)

func seedOrders(t *testing.T, f *ledgerFixture, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		order, err := f.ledger.CreateOrder(ctx, usecase.CreateOrderInput{
			GroupID:  "g1",
			ChatID:   int64(100 + i),
			Customer: domain.CustomerNew,
			Amount:   decimal.NewFromInt(100),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// Close every other order so the filter has something to split.
		if i%2 == 1 {
			if _, err := f.ledger.CompleteOrder(ctx, order.ID); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
	}
}

func TestOrderUseCase_ActiveForChat(t *testing.T) {
	f := newLedgerFixture()
	seedOrders(t, f, 4)
	ctx := context.Background()

	uc := usecase.NewOrderUseCase(f.orders, f.history)

	order, err := uc.ActiveForChat(ctx, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.ChatID != 100 {
		t.Errorf("expected chat 100's order, got %d", order.ChatID)
	}

	// Chat 101's order was completed.
	if _, err := uc.ActiveForChat(ctx, 101); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderUseCase_ListOrders(t *testing.T) {
	f := newLedgerFixture()
	seedOrders(t, f, 6)
	ctx := context.Background()

	uc := usecase.NewOrderUseCase(f.orders, f.history)

	closed, err := uc.ListOrders(ctx, usecase.OrderFilter{State: domain.StateEnd})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(closed) != 3 {
		t.Errorf("expected 3 closed orders, got %d", len(closed))
	}

	page, err := uc.ListOrders(ctx, usecase.OrderFilter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page) != 2 {
		t.Errorf("expected page of 2, got %d", len(page))
	}
	if page[0].ID != 3 {
		t.Errorf("expected page to start at order 3, got %d", page[0].ID)
	}
}

func TestOrderUseCase_Find(t *testing.T) {
	f := newLedgerFixture()
	seedOrders(t, f, 5)
	ctx := context.Background()

	uc := usecase.NewOrderUseCase(f.orders, f.history)
	seq := uc.Find(ctx, usecase.OrderFilter{GroupID: "g1"})

	var ids []int64
	for order, err := range seq {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ids = append(ids, order.ID)
	}
	if len(ids) != 5 {
		t.Fatalf("expected 5 orders, got %d", len(ids))
	}

	// Early break, then ranging again restarts from the beginning.
	var first int64
	for order, err := range seq {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		first = order.ID
		break
	}
	if first != ids[0] {
		t.Errorf("re-ranging must restart the query: got %d, want %d", first, ids[0])
	}
}

func TestOrderUseCase_ChatHistory(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	order, _ := f.ledger.CreateOrder(ctx, usecase.CreateOrderInput{
		GroupID:  "g1",
		ChatID:   100,
		Customer: domain.CustomerNew,
		Amount:   decimal.NewFromInt(500),
	})
	if _, err := f.ledger.RecordInterest(ctx, usecase.PaymentInput{OrderID: order.ID, Amount: decimal.NewFromInt(30)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	uc := usecase.NewOrderUseCase(f.orders, f.history)

	entries, err := uc.ChatHistory(ctx, 100, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	// Newest first.
	if entries[0].Type != domain.OpInterest || entries[1].Type != domain.OpOrderCreated {
		t.Errorf("unexpected order: %s, %s", entries[0].Type, entries[1].Type)
	}
}
