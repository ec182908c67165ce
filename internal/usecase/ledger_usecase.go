package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fengq/loanbook/internal/domain"
)

// LedgerUseCase handles every bookkeeping mutation: issuing orders,
// booking payments, state changes and expenses. Each operation runs in
// one transaction that touches the source of truth (orders plus the
// append-only logs), the aggregate snapshots and the operation history
// together.
type LedgerUseCase struct {
	txManager TransactionManager
	orders    OrderRepository
	records   RecordRepository
	snapshots SnapshotRepository
	history   HistoryRepository
	idGen     IDGenerator
	cache     Cache
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(
	txManager TransactionManager,
	orders OrderRepository,
	records RecordRepository,
	snapshots SnapshotRepository,
	history HistoryRepository,
	idGen IDGenerator,
	cache Cache,
) *LedgerUseCase {
	return &LedgerUseCase{
		txManager: txManager,
		orders:    orders,
		records:   records,
		snapshots: snapshots,
		history:   history,
		idGen:     idGen,
		cache:     cache,
	}
}

// CreateOrderInput represents input for issuing an order.
type CreateOrderInput struct {
	GroupID  string
	ChatID   int64
	Customer domain.CustomerKind
	Amount   decimal.Decimal
}

// CreateOrder issues a new loan order in a chat. The chat must not have
// another active order; a rejected creation does not consume a sequence
// number.
func (uc *LedgerUseCase) CreateOrder(ctx context.Context, input CreateOrderInput) (*domain.Order, error) {
	if err := domain.ValidateGroupID(input.GroupID); err != nil {
		return nil, err
	}
	if err := domain.ValidateChatID(input.ChatID); err != nil {
		return nil, err
	}
	if err := domain.ValidateAmount(input.Amount); err != nil {
		return nil, err
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	existing, err := uc.orders.GetActiveByChatForUpdate(ctx, tx, input.ChatID)
	if err != nil && !errors.Is(err, domain.ErrOrderNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: order %d", domain.ErrActiveOrderExists, existing.ID)
	}

	id, err := uc.orders.NextID(ctx, tx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:           id,
		GroupID:      input.GroupID,
		ChatID:       input.ChatID,
		Customer:     input.Customer,
		Amount:       input.Amount,
		Outstanding:  input.Amount,
		State:        domain.StateNormal,
		WeekdayLabel: domain.WeekdayLabelFor(now),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := uc.orders.Create(ctx, tx, order); err != nil {
		return nil, err
	}

	if err := uc.snapshots.Apply(ctx, tx, domain.CreationEvent(order)); err != nil {
		return nil, err
	}

	entry := &domain.OperationEntry{
		ChatID: input.ChatID,
		Type:   domain.OpOrderCreated,
		Payload: domain.OperationPayload{
			OrderID:  order.ID,
			GroupID:  order.GroupID,
			Customer: order.Customer,
			Amount:   order.Amount,
		},
		PerformedAt: now,
	}
	if err := uc.history.Append(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	uc.invalidateReports(ctx, order.GroupID)

	return order, nil
}

// PaymentInput represents a monetary operation against one order.
type PaymentInput struct {
	OrderID int64
	Amount  decimal.Decimal
}

// RecordInterest books an interest payment on an active order.
func (uc *LedgerUseCase) RecordInterest(ctx context.Context, input PaymentInput) (*domain.IncomeRecord, error) {
	if err := domain.ValidateAmount(input.Amount); err != nil {
		return nil, err
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	order, err := uc.orders.GetByIDForUpdate(ctx, tx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if !order.State.Active() {
		return nil, fmt.Errorf("%w: order %d is %s", domain.ErrOrderNotActive, order.ID, order.State)
	}

	now := time.Now().UTC()
	record := &domain.IncomeRecord{
		ID:         uc.idGen.Generate(),
		OrderID:    order.ID,
		GroupID:    order.GroupID,
		Customer:   order.Customer,
		Kind:       domain.KindInterest,
		Amount:     input.Amount,
		OccurredOn: domain.DateOf(now),
		CreatedAt:  now,
	}

	if err := uc.bookIncome(ctx, tx, record); err != nil {
		return nil, err
	}

	entry := &domain.OperationEntry{
		ChatID: order.ChatID,
		Type:   domain.OpInterest,
		Payload: domain.OperationPayload{
			OrderID:  order.ID,
			GroupID:  order.GroupID,
			Amount:   input.Amount,
			RecordID: record.ID,
		},
		PerformedAt: now,
	}
	if err := uc.history.Append(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	uc.invalidateReports(ctx, order.GroupID)

	return record, nil
}

// ReducePrincipal books a partial repayment on an active order. The
// repayment may not exceed the outstanding principal.
func (uc *LedgerUseCase) ReducePrincipal(ctx context.Context, input PaymentInput) (*domain.Order, error) {
	if err := domain.ValidateAmount(input.Amount); err != nil {
		return nil, err
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	order, err := uc.orders.GetByIDForUpdate(ctx, tx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if !order.State.Active() {
		return nil, fmt.Errorf("%w: order %d is %s", domain.ErrOrderNotActive, order.ID, order.State)
	}
	if err := order.ValidateReduction(input.Amount); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	prevOutstanding := order.Outstanding
	order.Outstanding = order.Outstanding.Sub(input.Amount)
	order.UpdatedAt = now

	if err := uc.orders.UpdateOutstanding(ctx, tx, order.ID, order.Outstanding, now); err != nil {
		return nil, err
	}

	record := &domain.IncomeRecord{
		ID:       uc.idGen.Generate(),
		OrderID:  order.ID,
		GroupID:  order.GroupID,
		Customer: order.Customer,
		Kind:     domain.KindPrincipalReduction,
		Amount:   input.Amount,
		// The order state rides along so an overdue reduction books against
		// the overdue bucket, on replay as well as live.
		Detail:     &domain.AdjustmentDetail{FromState: order.State},
		OccurredOn: domain.DateOf(now),
		CreatedAt:  now,
	}
	if err := uc.bookIncome(ctx, tx, record); err != nil {
		return nil, err
	}

	entry := &domain.OperationEntry{
		ChatID: order.ChatID,
		Type:   domain.OpPrincipalReduction,
		Payload: domain.OperationPayload{
			OrderID:         order.ID,
			GroupID:         order.GroupID,
			Amount:          input.Amount,
			PrevState:       order.State,
			PrevOutstanding: prevOutstanding,
			RecordID:        record.ID,
		},
		PerformedAt: now,
	}
	if err := uc.history.Append(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	uc.invalidateReports(ctx, order.GroupID)

	return order, nil
}

// RecordSettlement books a recovery payment on a breached order.
func (uc *LedgerUseCase) RecordSettlement(ctx context.Context, input PaymentInput) (*domain.IncomeRecord, error) {
	if err := domain.ValidateAmount(input.Amount); err != nil {
		return nil, err
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	order, err := uc.orders.GetByIDForUpdate(ctx, tx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.State != domain.StateBreach {
		return nil, fmt.Errorf("%w: order %d is %s", domain.ErrOrderNotBreached, order.ID, order.State)
	}

	now := time.Now().UTC()
	record := &domain.IncomeRecord{
		ID:         uc.idGen.Generate(),
		OrderID:    order.ID,
		GroupID:    order.GroupID,
		Customer:   order.Customer,
		Kind:       domain.KindBreachSettlement,
		Amount:     input.Amount,
		OccurredOn: domain.DateOf(now),
		CreatedAt:  now,
	}
	if err := uc.bookIncome(ctx, tx, record); err != nil {
		return nil, err
	}

	entry := &domain.OperationEntry{
		ChatID: order.ChatID,
		Type:   domain.OpBreachSettlement,
		Payload: domain.OperationPayload{
			OrderID:  order.ID,
			GroupID:  order.GroupID,
			Amount:   input.Amount,
			RecordID: record.ID,
		},
		PerformedAt: now,
	}
	if err := uc.history.Append(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	uc.invalidateReports(ctx, order.GroupID)

	return record, nil
}

// ChangeState moves an order through its lifecycle. Closing transitions
// (end, breach_end) carry their own bookkeeping and are routed to the
// dedicated paths.
func (uc *LedgerUseCase) ChangeState(ctx context.Context, orderID int64, target domain.OrderState) (*domain.Order, error) {
	switch target {
	case domain.StateEnd:
		return uc.CompleteOrder(ctx, orderID)
	case domain.StateBreachEnd:
		return uc.CompleteBreach(ctx, orderID)
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	order, err := uc.orders.GetByIDForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	prevState := order.State
	if err := order.Transition(target); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order.UpdatedAt = now
	if err := uc.orders.UpdateState(ctx, tx, order.ID, target, now); err != nil {
		return nil, err
	}

	// The transition itself goes into the record log as an adjustment,
	// so a replay reproduces the bucket moves.
	record := &domain.IncomeRecord{
		ID:       uc.idGen.Generate(),
		OrderID:  order.ID,
		GroupID:  order.GroupID,
		Customer: order.Customer,
		Kind:     domain.KindAdjustment,
		Amount:   order.Outstanding,
		Detail: &domain.AdjustmentDetail{
			FromState: prevState,
			ToState:   target,
		},
		OccurredOn: domain.DateOf(now),
		CreatedAt:  now,
	}
	if err := uc.bookIncome(ctx, tx, record); err != nil {
		return nil, err
	}

	entry := &domain.OperationEntry{
		ChatID: order.ChatID,
		Type:   domain.OpStateChanged,
		Payload: domain.OperationPayload{
			OrderID:   order.ID,
			GroupID:   order.GroupID,
			Amount:    order.Outstanding,
			PrevState: prevState,
			NewState:  target,
			RecordID:  record.ID,
		},
		PerformedAt: now,
	}
	if err := uc.history.Append(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	uc.invalidateReports(ctx, order.GroupID)

	return order, nil
}

// CompleteOrder closes an active order as repaid in full. The remaining
// outstanding principal is booked as returned.
func (uc *LedgerUseCase) CompleteOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	order, err := uc.orders.GetByIDForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	prevState := order.State
	if err := order.Transition(domain.StateEnd); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order.UpdatedAt = now
	if err := uc.orders.UpdateState(ctx, tx, order.ID, domain.StateEnd, now); err != nil {
		return nil, err
	}

	record := &domain.IncomeRecord{
		ID:       uc.idGen.Generate(),
		OrderID:  order.ID,
		GroupID:  order.GroupID,
		Customer: order.Customer,
		Kind:     domain.KindCompleted,
		Amount:   order.Outstanding,
		Detail: &domain.AdjustmentDetail{
			FromState: prevState,
			ToState:   domain.StateEnd,
		},
		OccurredOn: domain.DateOf(now),
		CreatedAt:  now,
	}
	if err := uc.bookIncome(ctx, tx, record); err != nil {
		return nil, err
	}

	entry := &domain.OperationEntry{
		ChatID: order.ChatID,
		Type:   domain.OpOrderCompleted,
		Payload: domain.OperationPayload{
			OrderID:   order.ID,
			GroupID:   order.GroupID,
			Amount:    order.Outstanding,
			PrevState: prevState,
			RecordID:  record.ID,
		},
		PerformedAt: now,
	}
	if err := uc.history.Append(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	uc.invalidateReports(ctx, order.GroupID)

	return order, nil
}

// CompleteBreach closes a breached order. The closing record carries the
// total recovered so far for reporting; the money itself was already
// booked settlement by settlement.
func (uc *LedgerUseCase) CompleteBreach(ctx context.Context, orderID int64) (*domain.Order, error) {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	order, err := uc.orders.GetByIDForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if order.State != domain.StateBreach {
		return nil, fmt.Errorf("%w: order %d is %s", domain.ErrOrderNotBreached, order.ID, order.State)
	}

	settled, err := uc.records.SettledTotal(ctx, tx, order.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order.State = domain.StateBreachEnd
	order.UpdatedAt = now
	if err := uc.orders.UpdateState(ctx, tx, order.ID, domain.StateBreachEnd, now); err != nil {
		return nil, err
	}

	record := &domain.IncomeRecord{
		ID:       uc.idGen.Generate(),
		OrderID:  order.ID,
		GroupID:  order.GroupID,
		Customer: order.Customer,
		Kind:     domain.KindBreachEnd,
		Amount:   settled,
		Detail: &domain.AdjustmentDetail{
			FromState: domain.StateBreach,
			ToState:   domain.StateBreachEnd,
		},
		OccurredOn: domain.DateOf(now),
		CreatedAt:  now,
	}
	if err := uc.bookIncome(ctx, tx, record); err != nil {
		return nil, err
	}

	entry := &domain.OperationEntry{
		ChatID: order.ChatID,
		Type:   domain.OpBreachCompleted,
		Payload: domain.OperationPayload{
			OrderID:   order.ID,
			GroupID:   order.GroupID,
			Amount:    settled,
			PrevState: domain.StateBreach,
			RecordID:  record.ID,
		},
		PerformedAt: now,
	}
	if err := uc.history.Append(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	uc.invalidateReports(ctx, order.GroupID)

	return order, nil
}

// ExpenseInput represents input for booking an operating expense.
type ExpenseInput struct {
	ChatID int64
	Kind   domain.ExpenseKind
	Amount decimal.Decimal
	Note   string
}

// RecordExpense books a company-scope operating expense.
func (uc *LedgerUseCase) RecordExpense(ctx context.Context, input ExpenseInput) (*domain.ExpenseRecord, error) {
	if err := domain.ValidateAmount(input.Amount); err != nil {
		return nil, err
	}
	if err := domain.ValidateNote(input.Note); err != nil {
		return nil, err
	}
	if err := domain.ValidateChatID(input.ChatID); err != nil {
		return nil, err
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	record := &domain.ExpenseRecord{
		ID:         uc.idGen.Generate(),
		Kind:       input.Kind,
		Amount:     input.Amount,
		Note:       input.Note,
		OccurredOn: domain.DateOf(now),
		CreatedAt:  now,
	}

	if err := uc.records.AppendExpense(ctx, tx, record); err != nil {
		return nil, err
	}

	if err := uc.snapshots.Apply(ctx, tx, domain.ExpenseEvent(record)); err != nil {
		return nil, err
	}

	entry := &domain.OperationEntry{
		ChatID: input.ChatID,
		Type:   domain.OpExpense,
		Payload: domain.OperationPayload{
			Amount:      input.Amount,
			ExpenseID:   record.ID,
			ExpenseKind: input.Kind,
		},
		PerformedAt: now,
	}
	if err := uc.history.Append(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	uc.invalidateReports(ctx, "")

	return record, nil
}

func (uc *LedgerUseCase) bookIncome(ctx context.Context, tx Transaction, record *domain.IncomeRecord) error {
	if err := uc.records.AppendIncome(ctx, tx, record); err != nil {
		return err
	}

	return uc.snapshots.Apply(ctx, tx, domain.RecordEvent(record))
}

// invalidateReports drops cached report payloads after a mutation.
// Errors here never fail the operation.
func (uc *LedgerUseCase) invalidateReports(ctx context.Context, groupID string) {
	if uc.cache == nil {
		return
	}

	_ = uc.cache.Delete(ctx, reportCacheKey(""))
	if groupID != "" {
		_ = uc.cache.Delete(ctx, reportCacheKey(groupID))
	}
}
