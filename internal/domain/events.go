package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event is one delta routed to the snapshot scopes it touches. GroupID
// is empty for company-scope events (expenses), which then skip the
// grouped snapshot but still land on the global and global-daily rows.
type Event struct {
	GroupID string
	Date    time.Time
	Delta   Delta
}

// CreationEvent derives the aggregate effect of issuing an order. The
// delta is computed from the immutable issue-time principal, so replaying
// it later yields the same figures even after partial repayments.
func CreationEvent(o *Order) Event {
	d := Delta{
		ActiveOrders: 1,
		ActiveAmount: o.Amount,
		LiquidFunds:  o.Amount.Neg(),
		LiquidFlow:   o.Amount.Neg(),
	}
	switch o.Customer {
	case CustomerNew:
		d.NewClients = 1
		d.NewClientAmount = o.Amount
	case CustomerReturning:
		d.OldClients = 1
		d.OldClientAmount = o.Amount
	}
	return Event{GroupID: o.GroupID, Date: DateOf(o.CreatedAt), Delta: d}
}

// ReversedCreationEvent cancels a creation. The reversal lands on the
// creation date so the daily row matches a rebuild after the order row
// is gone.
func ReversedCreationEvent(o *Order) Event {
	ev := CreationEvent(o)
	ev.Delta = ev.Delta.Negate()
	return ev
}

// RecordEvent derives the aggregate effect of one income record. Every
// record kind is self-contained: the record plus its detail fully
// determine the delta, which is what makes the log replayable.
func RecordEvent(r *IncomeRecord) Event {
	return Event{GroupID: r.GroupID, Date: r.OccurredOn, Delta: recordDelta(r)}
}

func recordDelta(r *IncomeRecord) Delta {
	switch r.Kind {
	case KindInterest:
		return Delta{
			Interest:    r.Amount,
			LiquidFunds: r.Amount,
			LiquidFlow:  r.Amount,
		}
	case KindPrincipalReduction:
		d := Delta{
			ActiveAmount:    r.Amount.Neg(),
			CompletedAmount: r.Amount,
			LiquidFunds:     r.Amount,
			LiquidFlow:      r.Amount,
		}
		// A reduction on an overdue order shrinks the overdue exposure too,
		// otherwise the later overdue exit subtracts only what remains.
		if r.Detail != nil && r.Detail.FromState == StateOverdue {
			d.OverdueAmount = r.Amount.Neg()
		}
		return d
	case KindBreachSettlement:
		return Delta{
			BreachEndAmount: r.Amount,
			LiquidFunds:     r.Amount,
			LiquidFlow:      r.Amount,
		}
	case KindCompleted:
		d := Delta{
			ActiveOrders:    -1,
			ActiveAmount:    r.Amount.Neg(),
			CompletedOrders: 1,
			CompletedAmount: r.Amount,
			LiquidFunds:     r.Amount,
			LiquidFlow:      r.Amount,
		}
		if r.Detail != nil && r.Detail.FromState == StateOverdue {
			d.OverdueOrders = -1
			d.OverdueAmount = r.Amount.Neg()
		}
		return d
	case KindBreachEnd:
		// Recovered money is already booked by the settlements that led
		// here; the closing record only moves the order count.
		return Delta{BreachEndOrders: 1}
	case KindAdjustment:
		if r.Detail == nil {
			return Delta{}
		}
		if r.Detail.Reverses != "" {
			orig := IncomeRecord{
				Kind:   r.Detail.ReversedKind,
				Amount: r.Amount,
				Detail: &AdjustmentDetail{FromState: r.Detail.FromState, ToState: r.Detail.ToState},
			}
			return recordDelta(&orig).Negate()
		}
		return transitionDelta(r.Detail.FromState, r.Detail.ToState, r.Amount)
	}
	return Delta{}
}

// transitionDelta maps a state change carrying outstanding principal amt
// onto the aggregate buckets.
func transitionDelta(from, to OrderState, amt decimal.Decimal) Delta {
	switch {
	case from == StateNormal && to == StateOverdue:
		return Delta{OverdueOrders: 1, OverdueAmount: amt}
	case from == StateOverdue && to == StateNormal:
		return Delta{OverdueOrders: -1, OverdueAmount: amt.Neg()}
	case to == StateBreach:
		d := Delta{
			ActiveOrders: -1,
			ActiveAmount: amt.Neg(),
			BreachOrders: 1,
			BreachAmount: amt,
		}
		if from == StateOverdue {
			d.OverdueOrders = -1
			d.OverdueAmount = amt.Neg()
		}
		return d
	}
	return Delta{}
}

// ExpenseEvent derives the aggregate effect of one expense record.
// Expenses carry no group, so the event only reaches company scope.
func ExpenseEvent(e *ExpenseRecord) Event {
	d := Delta{
		LiquidFunds: e.Amount.Neg(),
		LiquidFlow:  e.Amount.Neg(),
	}
	switch e.Kind {
	case ExpenseCompany:
		d.CompanyExpenses = e.Amount
	case ExpenseOther:
		d.OtherExpenses = e.Amount
	}
	return Event{Date: e.OccurredOn, Delta: d}
}

// ReversedExpenseEvent cancels an expense on its original date, matching
// a rebuild after the expense row is deleted.
func ReversedExpenseEvent(e *ExpenseRecord) Event {
	ev := ExpenseEvent(e)
	ev.Delta = ev.Delta.Negate()
	return ev
}
