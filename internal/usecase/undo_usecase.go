package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/fengq/loanbook/internal/domain"
)

// UndoUseCase unwinds the most recent operation of a chat. Nothing is
// rewritten in place: monetary undos append reversing adjustment records,
// and only undone creations and expenses delete their source row (there
// is nothing left to replay once the row is gone).
type UndoUseCase struct {
	txManager TransactionManager
	orders    OrderRepository
	records   RecordRepository
	snapshots SnapshotRepository
	history   HistoryRepository
	idGen     IDGenerator
	cache     Cache
}

// NewUndoUseCase creates a new UndoUseCase.
func NewUndoUseCase(
	txManager TransactionManager,
	orders OrderRepository,
	records RecordRepository,
	snapshots SnapshotRepository,
	history HistoryRepository,
	idGen IDGenerator,
	cache Cache,
) *UndoUseCase {
	return &UndoUseCase{
		txManager: txManager,
		orders:    orders,
		records:   records,
		snapshots: snapshots,
		history:   history,
		idGen:     idGen,
		cache:     cache,
	}
}

// UndoResult describes the operation that was unwound.
type UndoResult struct {
	UndoneEntryID int64
	UndoneType    domain.OperationType
	OrderID       int64
}

// UndoLast unwinds the newest unconsumed operation in the chat. At most
// MaxConsecutiveUndos undos may run back to back; a fresh operation
// resets the window.
func (uc *UndoUseCase) UndoLast(ctx context.Context, chatID int64) (*UndoResult, error) {
	if err := domain.ValidateChatID(chatID); err != nil {
		return nil, err
	}

	recent, err := uc.history.RecentTypes(ctx, chatID, domain.MaxConsecutiveUndos)
	if err != nil {
		return nil, err
	}
	undos := 0
	for _, t := range recent {
		if t != domain.OpUndo {
			break
		}
		undos++
	}
	if undos >= domain.MaxConsecutiveUndos {
		return nil, fmt.Errorf("%w: limit is %d", domain.ErrUndoLimitReached, domain.MaxConsecutiveUndos)
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	entry, err := uc.history.LastUndoable(ctx, tx, chatID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	groupID, err := uc.compensate(ctx, tx, entry, now)
	if err != nil {
		return nil, err
	}

	if err := uc.history.MarkConsumed(ctx, tx, entry.ID); err != nil {
		return nil, err
	}

	undoEntry := &domain.OperationEntry{
		ChatID: chatID,
		Type:   domain.OpUndo,
		Payload: domain.OperationPayload{
			UndoneEntryID: entry.ID,
			UndoneType:    entry.Type,
			OrderID:       entry.Payload.OrderID,
		},
		PerformedAt: now,
	}
	if err := uc.history.Append(ctx, tx, undoEntry); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	uc.invalidateReports(ctx, groupID)

	return &UndoResult{
		UndoneEntryID: entry.ID,
		UndoneType:    entry.Type,
		OrderID:       entry.Payload.OrderID,
	}, nil
}

// compensate applies the inverse of one history entry and returns the
// group whose cached reports are now stale.
func (uc *UndoUseCase) compensate(ctx context.Context, tx Transaction, entry *domain.OperationEntry, now time.Time) (string, error) {
	p := entry.Payload

	switch entry.Type {
	case domain.OpOrderCreated:
		order, err := uc.orders.GetByIDForUpdate(ctx, tx, p.OrderID)
		if err != nil {
			return "", err
		}
		if err := uc.orders.Delete(ctx, tx, order.ID); err != nil {
			return "", err
		}
		return order.GroupID, uc.snapshots.Apply(ctx, tx, domain.ReversedCreationEvent(order))

	case domain.OpInterest:
		return p.GroupID, uc.reverseRecord(ctx, tx, entry, domain.KindInterest, nil, now)

	case domain.OpPrincipalReduction:
		if err := uc.orders.UpdateOutstanding(ctx, tx, p.OrderID, p.PrevOutstanding, now); err != nil {
			return "", err
		}
		detail := &domain.AdjustmentDetail{FromState: p.PrevState}
		return p.GroupID, uc.reverseRecord(ctx, tx, entry, domain.KindPrincipalReduction, detail, now)

	case domain.OpBreachSettlement:
		return p.GroupID, uc.reverseRecord(ctx, tx, entry, domain.KindBreachSettlement, nil, now)

	case domain.OpOrderCompleted:
		if err := uc.orders.UpdateState(ctx, tx, p.OrderID, p.PrevState, now); err != nil {
			return "", err
		}
		detail := &domain.AdjustmentDetail{FromState: p.PrevState, ToState: domain.StateEnd}
		return p.GroupID, uc.reverseRecord(ctx, tx, entry, domain.KindCompleted, detail, now)

	case domain.OpBreachCompleted:
		if err := uc.orders.UpdateState(ctx, tx, p.OrderID, domain.StateBreach, now); err != nil {
			return "", err
		}
		detail := &domain.AdjustmentDetail{FromState: domain.StateBreach, ToState: domain.StateBreachEnd}
		return p.GroupID, uc.reverseRecord(ctx, tx, entry, domain.KindBreachEnd, detail, now)

	case domain.OpStateChanged:
		if err := uc.orders.UpdateState(ctx, tx, p.OrderID, p.PrevState, now); err != nil {
			return "", err
		}
		detail := &domain.AdjustmentDetail{FromState: p.PrevState, ToState: p.NewState}
		return p.GroupID, uc.reverseRecord(ctx, tx, entry, domain.KindAdjustment, detail, now)

	case domain.OpExpense:
		expense, err := uc.records.GetExpense(ctx, p.ExpenseID)
		if err != nil {
			return "", err
		}
		if err := uc.records.DeleteExpense(ctx, tx, expense.ID); err != nil {
			return "", err
		}
		return "", uc.snapshots.Apply(ctx, tx, domain.ReversedExpenseEvent(expense))
	}

	return "", fmt.Errorf("%w: cannot undo %s", domain.ErrNothingToUndo, entry.Type)
}

// reverseRecord appends the adjustment that cancels the income record an
// entry produced, using only what the payload captured at operation time.
func (uc *UndoUseCase) reverseRecord(
	ctx context.Context,
	tx Transaction,
	entry *domain.OperationEntry,
	reversedKind domain.RecordKind,
	stateDetail *domain.AdjustmentDetail,
	now time.Time,
) error {
	p := entry.Payload

	// Rebuild the original record from what the payload captured, then let
	// the domain derive its cancelling adjustment.
	orig := &domain.IncomeRecord{
		ID:      p.RecordID,
		OrderID: p.OrderID,
		GroupID: p.GroupID,
		Kind:    reversedKind,
		Amount:  p.Amount,
		Detail:  stateDetail,
	}
	record := orig.Reversal(uc.idGen.Generate(), now)

	if err := uc.records.AppendIncome(ctx, tx, record); err != nil {
		return err
	}

	return uc.snapshots.Apply(ctx, tx, domain.RecordEvent(record))
}

func (uc *UndoUseCase) invalidateReports(ctx context.Context, groupID string) {
	if uc.cache == nil {
		return
	}

	_ = uc.cache.Delete(ctx, reportCacheKey(""))
	if groupID != "" {
		_ = uc.cache.Delete(ctx, reportCacheKey(groupID))
	}
}
