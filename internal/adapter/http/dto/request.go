package dto

import (
	"github.com/shopspring/decimal"

	"github.com/fengq/loanbook/internal/usecase"
)

// CreateOrderRequest represents a request to issue a loan order.
type CreateOrderRequest struct {
	GroupID  string          `json:"group_id"`
	ChatID   int64           `json:"chat_id"`
	Customer string          `json:"customer"`
	Amount   decimal.Decimal `json:"amount"`
}

// PaymentRequest represents a monetary operation against an order.
type PaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// ChangeStateRequest represents a request to move an order to a new state.
type ChangeStateRequest struct {
	State string `json:"state"`
}

// ExpenseRequest represents a request to book an operating expense.
type ExpenseRequest struct {
	ChatID int64           `json:"chat_id"`
	Kind   string          `json:"kind"`
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note,omitempty"`
}

// ToUseCaseInput converts to use case input. The kind is validated by
// the handler before conversion.
func (r *ExpenseRequest) ToUseCaseInput() usecase.ExpenseInput {
	return usecase.ExpenseInput{
		ChatID: r.ChatID,
		Amount: r.Amount,
		Note:   r.Note,
	}
}
