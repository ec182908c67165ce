package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OperationType tags one entry in the per-chat operation history.
type OperationType string

const (
	OpOrderCreated       OperationType = "order_created"
	OpInterest           OperationType = "interest"
	OpPrincipalReduction OperationType = "principal_reduction"
	OpBreachSettlement   OperationType = "breach_settlement"
	OpOrderCompleted     OperationType = "order_completed"
	OpBreachCompleted    OperationType = "order_breach_end"
	OpStateChanged       OperationType = "order_state_changed"
	OpExpense            OperationType = "expense"
	OpUndo               OperationType = "operation_undo"
)

// MaxConsecutiveUndos caps how far back a chat can unwind without a
// fresh operation in between.
const MaxConsecutiveUndos = 3

// OperationPayload holds whatever the undo path needs to compensate the
// operation. Fields are sparse; only the ones relevant to the operation
// type are set.
type OperationPayload struct {
	OrderID         int64           `json:"order_id,omitempty"`
	GroupID         string          `json:"group_id,omitempty"`
	Customer        CustomerKind    `json:"customer,omitempty"`
	Amount          decimal.Decimal `json:"amount,omitempty"`
	PrevState       OrderState      `json:"prev_state,omitempty"`
	NewState        OrderState      `json:"new_state,omitempty"`
	PrevOutstanding decimal.Decimal `json:"prev_outstanding,omitempty"`
	RecordID        string          `json:"record_id,omitempty"`
	ExpenseID       string          `json:"expense_id,omitempty"`
	ExpenseKind     ExpenseKind     `json:"expense_kind,omitempty"`
	UndoneEntryID   int64           `json:"undone_entry_id,omitempty"`
	UndoneType      OperationType   `json:"undone_type,omitempty"`
}

// OperationEntry is one line in the operation history. Consumed entries
// have already been undone and are skipped when looking for the next
// undo target.
type OperationEntry struct {
	ID          int64
	ChatID      int64
	Type        OperationType
	Payload     OperationPayload
	Consumed    bool
	PerformedAt time.Time
}
