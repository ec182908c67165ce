package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RecordKind classifies an income record by the business event it captures.
type RecordKind string

const (
	KindInterest           RecordKind = "interest"
	KindPrincipalReduction RecordKind = "principal_reduction"
	KindBreachSettlement   RecordKind = "breach_settlement"
	KindCompleted          RecordKind = "completed"
	KindBreachEnd          RecordKind = "breach_end"
	KindAdjustment         RecordKind = "adjustment"
)

// AdjustmentDetail carries the extra context some record kinds need to
// stay replayable: completion records remember the state they closed
// from, state-change adjustments remember both endpoints, and reversal
// adjustments point at the record they cancel.
type AdjustmentDetail struct {
	FromState    OrderState `json:"from_state,omitempty"`
	ToState      OrderState `json:"to_state,omitempty"`
	Reverses     string     `json:"reverses,omitempty"`
	ReversedKind RecordKind `json:"reversed_kind,omitempty"`
}

// IncomeRecord is one append-only line in the income log.
type IncomeRecord struct {
	ID         string
	OrderID    int64
	GroupID    string
	Customer   CustomerKind
	Kind       RecordKind
	Amount     decimal.Decimal
	Detail     *AdjustmentDetail
	OccurredOn time.Time // date precision, UTC midnight
	CreatedAt  time.Time
}

// Reversal returns the adjustment record that cancels r's aggregate effect.
// The original's state context is copied so the reversal stays self-contained.
func (r *IncomeRecord) Reversal(id string, now time.Time) *IncomeRecord {
	detail := &AdjustmentDetail{
		Reverses:     r.ID,
		ReversedKind: r.Kind,
	}
	if r.Detail != nil {
		detail.FromState = r.Detail.FromState
		detail.ToState = r.Detail.ToState
	}
	return &IncomeRecord{
		ID:         id,
		OrderID:    r.OrderID,
		GroupID:    r.GroupID,
		Customer:   r.Customer,
		Kind:       KindAdjustment,
		Amount:     r.Amount,
		Detail:     detail,
		OccurredOn: DateOf(now),
		CreatedAt:  now,
	}
}

// ExpenseKind classifies an operating expense.
type ExpenseKind string

const (
	ExpenseCompany ExpenseKind = "company"
	ExpenseOther   ExpenseKind = "other"
)

// ParseExpenseKind parses a wire-level expense kind.
func ParseExpenseKind(s string) (ExpenseKind, error) {
	switch ExpenseKind(s) {
	case ExpenseCompany, ExpenseOther:
		return ExpenseKind(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidExpenseKind, s)
}

// ExpenseRecord is one append-only line in the expense log. Expenses are
// booked at company scope, not against a group.
type ExpenseRecord struct {
	ID         string
	Kind       ExpenseKind
	Amount     decimal.Decimal
	Note       string
	OccurredOn time.Time
	CreatedAt  time.Time
}

// DateOf truncates t to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
