package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fengq/loanbook/internal/adapter/http/dto"
	"github.com/fengq/loanbook/internal/domain"
	"github.com/fengq/loanbook/internal/infrastructure/metrics"
	"github.com/fengq/loanbook/internal/usecase"
)

// OrderService defines the mutating behavior needed by OrderHandler.
type OrderService interface {
	CreateOrder(ctx context.Context, input usecase.CreateOrderInput) (*domain.Order, error)
}

// OrderQueryService defines the read behavior needed by OrderHandler.
type OrderQueryService interface {
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
	ActiveForChat(ctx context.Context, chatID int64) (*domain.Order, error)
	ListOrders(ctx context.Context, filter usecase.OrderFilter) ([]*domain.Order, error)
	ChatHistory(ctx context.Context, chatID int64, limit, offset int) ([]*domain.OperationEntry, error)
}

// OrderHandler handles order-related HTTP requests.
type OrderHandler struct {
	ledgerUC OrderService
	orderUC  OrderQueryService
	metrics  *metrics.Metrics
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(ledgerUC OrderService, orderUC OrderQueryService, m *metrics.Metrics) *OrderHandler {
	return &OrderHandler{ledgerUC: ledgerUC, orderUC: orderUC, metrics: m}
}

// Create issues a new loan order.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	customer, err := domain.ParseCustomerKind(req.Customer)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid customer kind", err.Error())
		return
	}

	order, err := h.ledgerUC.CreateOrder(r.Context(), usecase.CreateOrderInput{
		GroupID:  req.GroupID,
		ChatID:   req.ChatID,
		Customer: customer,
		Amount:   req.Amount,
	})
	if err != nil {
		writeError(w, mapDomainError(err), "failed to create order", err.Error())
		return
	}

	if h.metrics != nil {
		h.metrics.OrdersCreated.Inc()
		amount, _ := order.Amount.Float64()
		h.metrics.OrderAmount.Observe(amount)
	}

	writeJSON(w, http.StatusCreated, dto.OrderFromDomain(order))
}

// Get retrieves an order by its sequence number.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID", err.Error())
		return
	}

	order, err := h.orderUC.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get order", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.OrderFromDomain(order))
}

// List lists orders matching the query filters.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := usecase.OrderFilter{
		GroupID: r.URL.Query().Get("group_id"),
		ChatID:  parseInt64Query(r, "chat_id"),
		Limit:   parseIntQuery(r, "limit", 20),
		Offset:  parseIntQuery(r, "offset", 0),
	}

	if s := r.URL.Query().Get("state"); s != "" {
		state, err := domain.ParseOrderState(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid state filter", err.Error())
			return
		}
		filter.State = state
	}
	if c := r.URL.Query().Get("customer"); c != "" {
		customer, err := domain.ParseCustomerKind(c)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid customer filter", err.Error())
			return
		}
		filter.Customer = customer
	}
	if from := parseDateQuery(r, "from"); !from.IsZero() {
		filter.From = from
	}
	if to := parseDateQuery(r, "to"); !to.IsZero() {
		// Include the whole end day.
		filter.To = to.Add(24*time.Hour - time.Nanosecond)
	}

	orders, err := h.orderUC.ListOrders(r.Context(), filter)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to list orders", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ListOrdersResponse{
		Orders: dto.OrdersFromDomain(orders),
		Total:  int64(len(orders)),
	})
}

// Active retrieves the chat's active order.
func (h *OrderHandler) Active(w http.ResponseWriter, r *http.Request) {
	chatID, err := parseIDParam(chi.URLParam(r, "chatID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chat ID", err.Error())
		return
	}

	order, err := h.orderUC.ActiveForChat(r.Context(), chatID)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get active order", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.OrderFromDomain(order))
}

// History lists the chat's operation history, newest first.
func (h *OrderHandler) History(w http.ResponseWriter, r *http.Request) {
	chatID, err := parseIDParam(chi.URLParam(r, "chatID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chat ID", err.Error())
		return
	}

	limit := parseIntQuery(r, "limit", 20)
	offset := parseIntQuery(r, "offset", 0)

	entries, err := h.orderUC.ChatHistory(r.Context(), chatID, limit, offset)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to list history", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.OperationEntriesFromDomain(entries))
}
