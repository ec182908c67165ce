package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/fengq/loanbook/internal/adapter/http/dto"
	"github.com/fengq/loanbook/internal/domain"
	"github.com/fengq/loanbook/internal/usecase"
)

type fakeOrderService struct {
	createFn func(ctx context.Context, input usecase.CreateOrderInput) (*domain.Order, error)
}

func (s *fakeOrderService) CreateOrder(ctx context.Context, input usecase.CreateOrderInput) (*domain.Order, error) {
	return s.createFn(ctx, input)
}

type fakeOrderQueryService struct {
	getFn    func(ctx context.Context, id int64) (*domain.Order, error)
	activeFn func(ctx context.Context, chatID int64) (*domain.Order, error)
}

func (s *fakeOrderQueryService) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	return s.getFn(ctx, id)
}

func (s *fakeOrderQueryService) ActiveForChat(ctx context.Context, chatID int64) (*domain.Order, error) {
	return s.activeFn(ctx, chatID)
}

func (s *fakeOrderQueryService) ListOrders(ctx context.Context, filter usecase.OrderFilter) ([]*domain.Order, error) {
	return nil, nil
}

func (s *fakeOrderQueryService) ChatHistory(ctx context.Context, chatID int64, limit, offset int) ([]*domain.OperationEntry, error) {
	return nil, nil
}

func testOrder() *domain.Order {
	return &domain.Order{
		ID:          1,
		GroupID:     "g1",
		ChatID:      100,
		Customer:    domain.CustomerNew,
		Amount:      decimal.NewFromInt(1000),
		Outstanding: decimal.NewFromInt(1000),
		State:       domain.StateNormal,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
}

func TestOrderHandlerCreate(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		createFn   func(ctx context.Context, input usecase.CreateOrderInput) (*domain.Order, error)
		wantStatus int
	}{
		{
			name: "created",
			body: `{"group_id":"g1","chat_id":100,"customer":"new","amount":"1000"}`,
			createFn: func(ctx context.Context, input usecase.CreateOrderInput) (*domain.Order, error) {
				if !input.Amount.Equal(decimal.NewFromInt(1000)) {
					t.Fatalf("expected amount 1000, got %s", input.Amount)
				}
				return testOrder(), nil
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "duplicate active order",
			body: `{"group_id":"g1","chat_id":100,"customer":"new","amount":"1000"}`,
			createFn: func(ctx context.Context, input usecase.CreateOrderInput) (*domain.Order, error) {
				return nil, domain.ErrActiveOrderExists
			},
			wantStatus: http.StatusConflict,
		},
		{
			name:       "bad customer kind",
			body:       `{"group_id":"g1","chat_id":100,"customer":"vip","amount":"1000"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed body",
			body:       `{"group_id":`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewOrderHandler(&fakeOrderService{createFn: tt.createFn}, nil, nil)

			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewBufferString(tt.body))
			h.Create(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
			if tt.wantStatus == http.StatusCreated {
				var resp dto.OrderResponse
				if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				if resp.ID != 1 || resp.State != "normal" {
					t.Fatalf("unexpected response: %+v", resp)
				}
			}
		})
	}
}

func TestOrderHandlerGet(t *testing.T) {
	query := &fakeOrderQueryService{
		getFn: func(ctx context.Context, id int64) (*domain.Order, error) {
			if id != 1 {
				return nil, domain.ErrOrderNotFound
			}
			return testOrder(), nil
		},
	}
	h := NewOrderHandler(nil, query, nil)

	r := chi.NewRouter()
	r.Get("/orders/{id}", h.Get)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders/1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders/99", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown order, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders/abc", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric id, got %d", rr.Code)
	}
}
