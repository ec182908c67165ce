package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fengq/loanbook/internal/adapter/http/dto"
	"github.com/fengq/loanbook/internal/domain"
	"github.com/fengq/loanbook/internal/infrastructure/metrics"
	"github.com/fengq/loanbook/internal/usecase"
)

// LedgerService defines the bookkeeping behavior needed by LedgerHandler.
type LedgerService interface {
	RecordInterest(ctx context.Context, input usecase.PaymentInput) (*domain.IncomeRecord, error)
	ReducePrincipal(ctx context.Context, input usecase.PaymentInput) (*domain.Order, error)
	RecordSettlement(ctx context.Context, input usecase.PaymentInput) (*domain.IncomeRecord, error)
	ChangeState(ctx context.Context, orderID int64, target domain.OrderState) (*domain.Order, error)
	CompleteOrder(ctx context.Context, orderID int64) (*domain.Order, error)
	CompleteBreach(ctx context.Context, orderID int64) (*domain.Order, error)
	RecordExpense(ctx context.Context, input usecase.ExpenseInput) (*domain.ExpenseRecord, error)
}

// UndoService defines the undo behavior needed by LedgerHandler.
type UndoService interface {
	UndoLast(ctx context.Context, chatID int64) (*usecase.UndoResult, error)
}

// LedgerHandler handles bookkeeping HTTP requests.
type LedgerHandler struct {
	ledgerUC LedgerService
	undoUC   UndoService
	metrics  *metrics.Metrics
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerUC LedgerService, undoUC UndoService, m *metrics.Metrics) *LedgerHandler {
	return &LedgerHandler{ledgerUC: ledgerUC, undoUC: undoUC, metrics: m}
}

func (h *LedgerHandler) countPayment(record *domain.IncomeRecord) {
	if h.metrics == nil {
		return
	}
	h.metrics.PaymentsRecorded.WithLabelValues(string(record.Kind)).Inc()
	amount, _ := record.Amount.Float64()
	h.metrics.PaymentAmount.WithLabelValues(string(record.Kind)).Observe(amount)
}

// Interest books an interest payment on an order.
func (h *LedgerHandler) Interest(w http.ResponseWriter, r *http.Request) {
	h.payment(w, r, h.ledgerUC.RecordInterest, "failed to record interest")
}

// Settlement books a partial recovery on a breached order.
func (h *LedgerHandler) Settlement(w http.ResponseWriter, r *http.Request) {
	h.payment(w, r, h.ledgerUC.RecordSettlement, "failed to record settlement")
}

func (h *LedgerHandler) payment(
	w http.ResponseWriter,
	r *http.Request,
	book func(context.Context, usecase.PaymentInput) (*domain.IncomeRecord, error),
	errMsg string,
) {
	id, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID", err.Error())
		return
	}

	var req dto.PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	record, err := book(r.Context(), usecase.PaymentInput{OrderID: id, Amount: req.Amount})
	if err != nil {
		writeError(w, mapDomainError(err), errMsg, err.Error())
		return
	}

	h.countPayment(record)
	writeJSON(w, http.StatusCreated, dto.IncomeRecordFromDomain(record))
}

// ReducePrincipal books a principal repayment on an order.
func (h *LedgerHandler) ReducePrincipal(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID", err.Error())
		return
	}

	var req dto.PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	order, err := h.ledgerUC.ReducePrincipal(r.Context(), usecase.PaymentInput{OrderID: id, Amount: req.Amount})
	if err != nil {
		writeError(w, mapDomainError(err), "failed to reduce principal", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.OrderFromDomain(order))
}

// ChangeState moves an order to a new lifecycle state.
func (h *LedgerHandler) ChangeState(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID", err.Error())
		return
	}

	var req dto.ChangeStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	state, err := domain.ParseOrderState(req.State)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid state", err.Error())
		return
	}

	order, err := h.ledgerUC.ChangeState(r.Context(), id, state)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to change state", err.Error())
		return
	}

	if h.metrics != nil && order.State == domain.StateBreach {
		h.metrics.OrdersBreached.Inc()
	}

	writeJSON(w, http.StatusOK, dto.OrderFromDomain(order))
}

// Complete settles an active order in full.
func (h *LedgerHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.close(w, r, h.ledgerUC.CompleteOrder, "failed to complete order")
}

// CompleteBreach writes off a breached order.
func (h *LedgerHandler) CompleteBreach(w http.ResponseWriter, r *http.Request) {
	h.close(w, r, h.ledgerUC.CompleteBreach, "failed to close breach")
}

func (h *LedgerHandler) close(
	w http.ResponseWriter,
	r *http.Request,
	closeFn func(context.Context, int64) (*domain.Order, error),
	errMsg string,
) {
	id, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID", err.Error())
		return
	}

	order, err := closeFn(r.Context(), id)
	if err != nil {
		writeError(w, mapDomainError(err), errMsg, err.Error())
		return
	}

	if h.metrics != nil {
		h.metrics.OrdersCompleted.Inc()
	}

	writeJSON(w, http.StatusOK, dto.OrderFromDomain(order))
}

// Expense books a company-scope operating expense.
func (h *LedgerHandler) Expense(w http.ResponseWriter, r *http.Request) {
	var req dto.ExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	kind, err := domain.ParseExpenseKind(req.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid expense kind", err.Error())
		return
	}

	input := req.ToUseCaseInput()
	input.Kind = kind

	record, err := h.ledgerUC.RecordExpense(r.Context(), input)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to record expense", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dto.ExpenseRecordFromDomain(record))
}

// Undo unwinds the newest operation in a chat.
func (h *LedgerHandler) Undo(w http.ResponseWriter, r *http.Request) {
	chatID, err := parseIDParam(chi.URLParam(r, "chatID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chat ID", err.Error())
		return
	}

	result, err := h.undoUC.UndoLast(r.Context(), chatID)
	if err != nil {
		if h.metrics != nil {
			switch {
			case errors.Is(err, domain.ErrUndoLimitReached):
				h.metrics.UndosRejected.WithLabelValues("limit").Inc()
			case errors.Is(err, domain.ErrNothingToUndo):
				h.metrics.UndosRejected.WithLabelValues("empty").Inc()
			}
		}
		writeError(w, mapDomainError(err), "failed to undo", err.Error())
		return
	}

	if h.metrics != nil {
		h.metrics.UndosPerformed.WithLabelValues(string(result.UndoneType)).Inc()
	}

	writeJSON(w, http.StatusOK, dto.UndoFromResult(result))
}
