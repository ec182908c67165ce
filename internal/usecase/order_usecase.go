package usecase

import (
	"context"
	"iter"

	"github.com/fengq/loanbook/internal/domain"
)

// findPageSize is the page size Find uses against the repository.
const findPageSize = 200

// OrderUseCase handles read access to orders.
type OrderUseCase struct {
	orders  OrderRepository
	history HistoryRepository
}

// NewOrderUseCase creates a new OrderUseCase.
func NewOrderUseCase(orders OrderRepository, history HistoryRepository) *OrderUseCase {
	return &OrderUseCase{orders: orders, history: history}
}

// GetOrder retrieves an order by its sequence number.
func (uc *OrderUseCase) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	return uc.orders.GetByID(ctx, id)
}

// ActiveForChat returns the chat's current active order, if any.
func (uc *OrderUseCase) ActiveForChat(ctx context.Context, chatID int64) (*domain.Order, error) {
	if err := domain.ValidateChatID(chatID); err != nil {
		return nil, err
	}
	return uc.orders.GetActiveByChat(ctx, chatID)
}

// ListOrders returns one page of orders matching the filter.
func (uc *OrderUseCase) ListOrders(ctx context.Context, filter OrderFilter) ([]*domain.Order, error) {
	filter.Limit, filter.Offset = domain.ValidatePagination(filter.Limit, filter.Offset)
	return uc.orders.List(ctx, filter)
}

// Find streams every order matching the filter. The sequence pages
// through the repository on demand; ranging over it again re-runs the
// query from the start.
func (uc *OrderUseCase) Find(ctx context.Context, filter OrderFilter) iter.Seq2[*domain.Order, error] {
	return func(yield func(*domain.Order, error) bool) {
		page := filter
		page.Limit = findPageSize
		page.Offset = 0

		for {
			orders, err := uc.orders.List(ctx, page)
			if err != nil {
				yield(nil, err)
				return
			}

			for _, order := range orders {
				if !yield(order, nil) {
					return
				}
			}

			if len(orders) < page.Limit {
				return
			}
			page.Offset += page.Limit
		}
	}
}

// ChatHistory returns the chat's recent operation history, newest first.
func (uc *OrderUseCase) ChatHistory(ctx context.Context, chatID int64, limit, offset int) ([]*domain.OperationEntry, error) {
	if err := domain.ValidateChatID(chatID); err != nil {
		return nil, err
	}
	limit, offset = domain.ValidatePagination(limit, offset)
	return uc.history.ListByChat(ctx, chatID, limit, offset)
}
