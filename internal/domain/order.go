package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderState is the lifecycle state of a loan order.
type OrderState string

const (
	StateNormal    OrderState = "normal"
	StateOverdue   OrderState = "overdue"
	StateEnd       OrderState = "end"
	StateBreach    OrderState = "breach"
	StateBreachEnd OrderState = "breach_end"
)

// CustomerKind distinguishes first-time customers (A) from returning ones (B).
type CustomerKind string

const (
	CustomerNew       CustomerKind = "A"
	CustomerReturning CustomerKind = "B"
)

// transitions lists the reachable target states per source state.
// Terminal states have no entry.
var transitions = map[OrderState][]OrderState{
	StateNormal:  {StateOverdue, StateEnd, StateBreach},
	StateOverdue: {StateNormal, StateEnd, StateBreach},
	StateBreach:  {StateBreachEnd},
}

// ParseOrderState parses a wire-level state name.
func ParseOrderState(s string) (OrderState, error) {
	switch OrderState(s) {
	case StateNormal, StateOverdue, StateEnd, StateBreach, StateBreachEnd:
		return OrderState(s), nil
	}
	return "", fmt.Errorf("%w: unknown state %q", ErrInvalidTransition, s)
}

// ParseCustomerKind parses a wire-level customer kind. Both the stored
// single-letter codes and the long names accepted on the API are valid.
func ParseCustomerKind(s string) (CustomerKind, error) {
	switch s {
	case string(CustomerNew), "new":
		return CustomerNew, nil
	case string(CustomerReturning), "old":
		return CustomerReturning, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCustomer, s)
}

// Active reports whether the state still counts toward the running book.
func (s OrderState) Active() bool {
	return s == StateNormal || s == StateOverdue
}

// Terminal reports whether the state ends the order lifecycle.
func (s OrderState) Terminal() bool {
	return s == StateEnd || s == StateBreachEnd
}

// CanTransition reports whether from -> to is a legal state change.
func CanTransition(from, to OrderState) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Order represents a single short-term loan issued in a chat.
type Order struct {
	ID           int64
	GroupID      string
	ChatID       int64
	Customer     CustomerKind
	Amount       decimal.Decimal // principal at issue time, immutable
	Outstanding  decimal.Decimal // principal still owed
	State        OrderState
	WeekdayLabel string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Transition moves the order to target, enforcing the state machine.
func (o *Order) Transition(target OrderState) error {
	if !CanTransition(o.State, target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.State, target)
	}
	o.State = target
	return nil
}

// ValidateReduction checks a principal repayment against the outstanding balance.
func (o *Order) ValidateReduction(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	if amount.GreaterThan(o.Outstanding) {
		return fmt.Errorf("%w: %s > %s", ErrExceedsOutstanding, amount, o.Outstanding)
	}
	return nil
}

var weekdayLabels = [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// WeekdayLabelFor returns the label stamped on orders issued at t.
func WeekdayLabelFor(t time.Time) string {
	return weekdayLabels[t.Weekday()]
}
