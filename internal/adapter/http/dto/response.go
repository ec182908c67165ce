package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fengq/loanbook/internal/domain"
	"github.com/fengq/loanbook/internal/usecase"
)

// OrderResponse represents a loan order in API responses.
type OrderResponse struct {
	ID           int64           `json:"id"`
	GroupID      string          `json:"group_id"`
	ChatID       int64           `json:"chat_id"`
	Customer     string          `json:"customer"`
	Amount       decimal.Decimal `json:"amount"`
	Outstanding  decimal.Decimal `json:"outstanding"`
	State        string          `json:"state"`
	WeekdayLabel string          `json:"weekday_label"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// OrderFromDomain converts a domain order to a response.
func OrderFromDomain(o *domain.Order) *OrderResponse {
	return &OrderResponse{
		ID:           o.ID,
		GroupID:      o.GroupID,
		ChatID:       o.ChatID,
		Customer:     string(o.Customer),
		Amount:       o.Amount,
		Outstanding:  o.Outstanding,
		State:        string(o.State),
		WeekdayLabel: o.WeekdayLabel,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
}

// OrdersFromDomain converts domain orders to responses.
func OrdersFromDomain(orders []*domain.Order) []*OrderResponse {
	result := make([]*OrderResponse, len(orders))
	for i, o := range orders {
		result[i] = OrderFromDomain(o)
	}
	return result
}

// ListOrdersResponse wraps an order listing.
type ListOrdersResponse struct {
	Orders []*OrderResponse `json:"orders"`
	Total  int64            `json:"total"`
}

// IncomeRecordResponse represents an income log line in API responses.
type IncomeRecordResponse struct {
	ID         string          `json:"id"`
	OrderID    int64           `json:"order_id"`
	GroupID    string          `json:"group_id"`
	Customer   string          `json:"customer"`
	Kind       string          `json:"kind"`
	Amount     decimal.Decimal `json:"amount"`
	OccurredOn string          `json:"occurred_on"`
	CreatedAt  time.Time       `json:"created_at"`
}

// IncomeRecordFromDomain converts a domain income record to a response.
func IncomeRecordFromDomain(r *domain.IncomeRecord) *IncomeRecordResponse {
	return &IncomeRecordResponse{
		ID:         r.ID,
		OrderID:    r.OrderID,
		GroupID:    r.GroupID,
		Customer:   string(r.Customer),
		Kind:       string(r.Kind),
		Amount:     r.Amount,
		OccurredOn: r.OccurredOn.Format("2006-01-02"),
		CreatedAt:  r.CreatedAt,
	}
}

// IncomeRecordsFromDomain converts domain income records to responses.
func IncomeRecordsFromDomain(records []*domain.IncomeRecord) []*IncomeRecordResponse {
	result := make([]*IncomeRecordResponse, len(records))
	for i, r := range records {
		result[i] = IncomeRecordFromDomain(r)
	}
	return result
}

// ExpenseRecordResponse represents an expense log line in API responses.
type ExpenseRecordResponse struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Amount     decimal.Decimal `json:"amount"`
	Note       string          `json:"note,omitempty"`
	OccurredOn string          `json:"occurred_on"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ExpenseRecordFromDomain converts a domain expense record to a response.
func ExpenseRecordFromDomain(r *domain.ExpenseRecord) *ExpenseRecordResponse {
	return &ExpenseRecordResponse{
		ID:         r.ID,
		Kind:       string(r.Kind),
		Amount:     r.Amount,
		Note:       r.Note,
		OccurredOn: r.OccurredOn.Format("2006-01-02"),
		CreatedAt:  r.CreatedAt,
	}
}

// ExpenseRecordsFromDomain converts domain expense records to responses.
func ExpenseRecordsFromDomain(records []*domain.ExpenseRecord) []*ExpenseRecordResponse {
	result := make([]*ExpenseRecordResponse, len(records))
	for i, r := range records {
		result[i] = ExpenseRecordFromDomain(r)
	}
	return result
}

// SnapshotResponse represents an aggregate view in API responses.
type SnapshotResponse struct {
	ActiveOrders    int64           `json:"active_orders"`
	ActiveAmount    decimal.Decimal `json:"active_amount"`
	OverdueOrders   int64           `json:"overdue_orders"`
	OverdueAmount   decimal.Decimal `json:"overdue_amount"`
	LiquidFunds     decimal.Decimal `json:"liquid_funds"`
	NewClients      int64           `json:"new_clients"`
	NewClientAmount decimal.Decimal `json:"new_client_amount"`
	OldClients      int64           `json:"old_clients"`
	OldClientAmount decimal.Decimal `json:"old_client_amount"`
	Interest        decimal.Decimal `json:"interest"`
	CompletedOrders int64           `json:"completed_orders"`
	CompletedAmount decimal.Decimal `json:"completed_amount"`
	BreachOrders    int64           `json:"breach_orders"`
	BreachAmount    decimal.Decimal `json:"breach_amount"`
	BreachEndOrders int64           `json:"breach_end_orders"`
	BreachEndAmount decimal.Decimal `json:"breach_end_amount"`
	LiquidFlow      decimal.Decimal `json:"liquid_flow"`
	CompanyExpenses decimal.Decimal `json:"company_expenses"`
	OtherExpenses   decimal.Decimal `json:"other_expenses"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// SnapshotFromDomain converts a domain snapshot to a response.
func SnapshotFromDomain(s *domain.Snapshot) *SnapshotResponse {
	return &SnapshotResponse{
		ActiveOrders:    s.ActiveOrders,
		ActiveAmount:    s.ActiveAmount,
		OverdueOrders:   s.OverdueOrders,
		OverdueAmount:   s.OverdueAmount,
		LiquidFunds:     s.LiquidFunds,
		NewClients:      s.NewClients,
		NewClientAmount: s.NewClientAmount,
		OldClients:      s.OldClients,
		OldClientAmount: s.OldClientAmount,
		Interest:        s.Interest,
		CompletedOrders: s.CompletedOrders,
		CompletedAmount: s.CompletedAmount,
		BreachOrders:    s.BreachOrders,
		BreachAmount:    s.BreachAmount,
		BreachEndOrders: s.BreachEndOrders,
		BreachEndAmount: s.BreachEndAmount,
		LiquidFlow:      s.LiquidFlow,
		CompanyExpenses: s.CompanyExpenses,
		OtherExpenses:   s.OtherExpenses,
		UpdatedAt:       s.UpdatedAt,
	}
}

// SurplusResponse represents a group surplus figure.
type SurplusResponse struct {
	GroupID string          `json:"group_id"`
	Surplus decimal.Decimal `json:"surplus"`
}

// GroupsResponse lists every group with recorded activity.
type GroupsResponse struct {
	Groups []string `json:"groups"`
}

// OperationEntryResponse represents one operation history line.
type OperationEntryResponse struct {
	ID          int64     `json:"id"`
	ChatID      int64     `json:"chat_id"`
	Type        string    `json:"type"`
	OrderID     int64     `json:"order_id,omitempty"`
	Consumed    bool      `json:"consumed"`
	PerformedAt time.Time `json:"performed_at"`
}

// OperationEntriesFromDomain converts history entries to responses.
func OperationEntriesFromDomain(entries []*domain.OperationEntry) []*OperationEntryResponse {
	result := make([]*OperationEntryResponse, len(entries))
	for i, e := range entries {
		result[i] = &OperationEntryResponse{
			ID:          e.ID,
			ChatID:      e.ChatID,
			Type:        string(e.Type),
			OrderID:     e.Payload.OrderID,
			Consumed:    e.Consumed,
			PerformedAt: e.PerformedAt,
		}
	}
	return result
}

// UndoResponse describes the operation that was unwound.
type UndoResponse struct {
	UndoneEntryID int64  `json:"undone_entry_id"`
	UndoneType    string `json:"undone_type"`
	OrderID       int64  `json:"order_id,omitempty"`
}

// UndoFromResult converts an undo result to a response.
func UndoFromResult(res *usecase.UndoResult) *UndoResponse {
	return &UndoResponse{
		UndoneEntryID: res.UndoneEntryID,
		UndoneType:    string(res.UndoneType),
		OrderID:       res.OrderID,
	}
}

// FieldDriftResponse is one aggregate field that drifted from the logs.
type FieldDriftResponse struct {
	Scope    string          `json:"scope"`
	Field    string          `json:"field"`
	Stored   decimal.Decimal `json:"stored"`
	Computed decimal.Decimal `json:"computed"`
}

// ConsistencyResponse represents a consistency check outcome.
type ConsistencyResponse struct {
	Consistent bool                  `json:"consistent"`
	Drifts     []*FieldDriftResponse `json:"drifts,omitempty"`
	CheckedAt  time.Time             `json:"checked_at"`
}

// ConsistencyFromReport converts a consistency report to a response.
func ConsistencyFromReport(report *usecase.ConsistencyReport) *ConsistencyResponse {
	resp := &ConsistencyResponse{
		Consistent: report.Consistent,
		CheckedAt:  report.CheckedAt,
	}
	for _, d := range report.Drifts {
		resp.Drifts = append(resp.Drifts, &FieldDriftResponse{
			Scope:    d.Scope,
			Field:    d.Field,
			Stored:   d.Stored,
			Computed: d.Computed,
		})
	}
	return resp
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
