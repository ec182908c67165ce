package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is the incrementally maintained aggregate view of the book at
// one scope: the whole company, a single group, or a single calendar day.
type Snapshot struct {
	ActiveOrders    int64
	ActiveAmount    decimal.Decimal
	OverdueOrders   int64
	OverdueAmount   decimal.Decimal
	LiquidFunds     decimal.Decimal
	NewClients      int64
	NewClientAmount decimal.Decimal
	OldClients      int64
	OldClientAmount decimal.Decimal
	Interest        decimal.Decimal
	CompletedOrders int64
	CompletedAmount decimal.Decimal
	BreachOrders    int64
	BreachAmount    decimal.Decimal
	BreachEndOrders int64
	BreachEndAmount decimal.Decimal

	// Daily-only fields; stay zero on lifetime scopes.
	LiquidFlow      decimal.Decimal
	CompanyExpenses decimal.Decimal
	OtherExpenses   decimal.Decimal

	UpdatedAt time.Time
}

// Surplus is the grouped-scope profitability figure:
// interest plus recovered breach principal, less principal written to breach.
func (s *Snapshot) Surplus() decimal.Decimal {
	return s.Interest.Add(s.BreachEndAmount).Sub(s.BreachAmount)
}

// Apply folds one delta into the snapshot.
func (s *Snapshot) Apply(d Delta) {
	s.ActiveOrders += d.ActiveOrders
	s.ActiveAmount = s.ActiveAmount.Add(d.ActiveAmount)
	s.OverdueOrders += d.OverdueOrders
	s.OverdueAmount = s.OverdueAmount.Add(d.OverdueAmount)
	s.LiquidFunds = s.LiquidFunds.Add(d.LiquidFunds)
	s.NewClients += d.NewClients
	s.NewClientAmount = s.NewClientAmount.Add(d.NewClientAmount)
	s.OldClients += d.OldClients
	s.OldClientAmount = s.OldClientAmount.Add(d.OldClientAmount)
	s.Interest = s.Interest.Add(d.Interest)
	s.CompletedOrders += d.CompletedOrders
	s.CompletedAmount = s.CompletedAmount.Add(d.CompletedAmount)
	s.BreachOrders += d.BreachOrders
	s.BreachAmount = s.BreachAmount.Add(d.BreachAmount)
	s.BreachEndOrders += d.BreachEndOrders
	s.BreachEndAmount = s.BreachEndAmount.Add(d.BreachEndAmount)
	s.LiquidFlow = s.LiquidFlow.Add(d.LiquidFlow)
	s.CompanyExpenses = s.CompanyExpenses.Add(d.CompanyExpenses)
	s.OtherExpenses = s.OtherExpenses.Add(d.OtherExpenses)
}

// Add folds another snapshot into s field by field. Used when summing
// daily rows over a date range.
func (s *Snapshot) Add(o *Snapshot) {
	s.ActiveOrders += o.ActiveOrders
	s.ActiveAmount = s.ActiveAmount.Add(o.ActiveAmount)
	s.OverdueOrders += o.OverdueOrders
	s.OverdueAmount = s.OverdueAmount.Add(o.OverdueAmount)
	s.LiquidFunds = s.LiquidFunds.Add(o.LiquidFunds)
	s.NewClients += o.NewClients
	s.NewClientAmount = s.NewClientAmount.Add(o.NewClientAmount)
	s.OldClients += o.OldClients
	s.OldClientAmount = s.OldClientAmount.Add(o.OldClientAmount)
	s.Interest = s.Interest.Add(o.Interest)
	s.CompletedOrders += o.CompletedOrders
	s.CompletedAmount = s.CompletedAmount.Add(o.CompletedAmount)
	s.BreachOrders += o.BreachOrders
	s.BreachAmount = s.BreachAmount.Add(o.BreachAmount)
	s.BreachEndOrders += o.BreachEndOrders
	s.BreachEndAmount = s.BreachEndAmount.Add(o.BreachEndAmount)
	s.LiquidFlow = s.LiquidFlow.Add(o.LiquidFlow)
	s.CompanyExpenses = s.CompanyExpenses.Add(o.CompanyExpenses)
	s.OtherExpenses = s.OtherExpenses.Add(o.OtherExpenses)
}

// Delta is the additive effect of one bookkeeping event on a snapshot.
// Every field is applied with plain addition, so deltas commute and a
// rebuilt snapshot equals the incrementally maintained one regardless of
// replay order.
type Delta struct {
	ActiveOrders    int64
	ActiveAmount    decimal.Decimal
	OverdueOrders   int64
	OverdueAmount   decimal.Decimal
	LiquidFunds     decimal.Decimal
	NewClients      int64
	NewClientAmount decimal.Decimal
	OldClients      int64
	OldClientAmount decimal.Decimal
	Interest        decimal.Decimal
	CompletedOrders int64
	CompletedAmount decimal.Decimal
	BreachOrders    int64
	BreachAmount    decimal.Decimal
	BreachEndOrders int64
	BreachEndAmount decimal.Decimal
	LiquidFlow      decimal.Decimal
	CompanyExpenses decimal.Decimal
	OtherExpenses   decimal.Decimal
}

// Negate returns the delta that exactly cancels d.
func (d Delta) Negate() Delta {
	return Delta{
		ActiveOrders:    -d.ActiveOrders,
		ActiveAmount:    d.ActiveAmount.Neg(),
		OverdueOrders:   -d.OverdueOrders,
		OverdueAmount:   d.OverdueAmount.Neg(),
		LiquidFunds:     d.LiquidFunds.Neg(),
		NewClients:      -d.NewClients,
		NewClientAmount: d.NewClientAmount.Neg(),
		OldClients:      -d.OldClients,
		OldClientAmount: d.OldClientAmount.Neg(),
		Interest:        d.Interest.Neg(),
		CompletedOrders: -d.CompletedOrders,
		CompletedAmount: d.CompletedAmount.Neg(),
		BreachOrders:    -d.BreachOrders,
		BreachAmount:    d.BreachAmount.Neg(),
		BreachEndOrders: -d.BreachEndOrders,
		BreachEndAmount: d.BreachEndAmount.Neg(),
		LiquidFlow:      d.LiquidFlow.Neg(),
		CompanyExpenses: d.CompanyExpenses.Neg(),
		OtherExpenses:   d.OtherExpenses.Neg(),
	}
}

// IsZero reports whether applying d would leave any snapshot unchanged.
func (d Delta) IsZero() bool {
	return d.ActiveOrders == 0 && d.ActiveAmount.IsZero() &&
		d.OverdueOrders == 0 && d.OverdueAmount.IsZero() &&
		d.LiquidFunds.IsZero() &&
		d.NewClients == 0 && d.NewClientAmount.IsZero() &&
		d.OldClients == 0 && d.OldClientAmount.IsZero() &&
		d.Interest.IsZero() &&
		d.CompletedOrders == 0 && d.CompletedAmount.IsZero() &&
		d.BreachOrders == 0 && d.BreachAmount.IsZero() &&
		d.BreachEndOrders == 0 && d.BreachEndAmount.IsZero() &&
		d.LiquidFlow.IsZero() && d.CompanyExpenses.IsZero() && d.OtherExpenses.IsZero()
}
