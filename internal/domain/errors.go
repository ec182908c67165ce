package domain

import "errors"

var (
	// Order errors
	ErrOrderNotFound      = errors.New("order not found")
	ErrActiveOrderExists  = errors.New("chat already has an active order")
	ErrOrderNotActive     = errors.New("order is not active")
	ErrOrderNotBreached   = errors.New("order is not in breach")
	ErrInvalidTransition  = errors.New("invalid state transition")
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrInvalidCustomer    = errors.New("invalid customer kind")
	ErrInvalidExpenseKind = errors.New("invalid expense kind")
	ErrExceedsOutstanding = errors.New("amount exceeds outstanding principal")

	// Record errors
	ErrRecordNotFound = errors.New("record not found")

	// Undo errors
	ErrNothingToUndo    = errors.New("no operation to undo")
	ErrUndoLimitReached = errors.New("consecutive undo limit reached")
)
