package adapters

import (
	"context"
	"fmt"
	"sync"

	"plantain-trace/internal/features/orders/domain"
	"plantain-trace/internal/features/orders/ports"
)

// MemoryOrderStore is an in-memory ports.OrderStore used in tests and local
// development.
type MemoryOrderStore struct {
	mu        sync.RWMutex
	orders    map[string]domain.Order
	bySeller  map[string][]string
	byBuyer   map[string][]string
	byPayment map[string]string
}

// NewMemoryOrderStore creates an empty MemoryOrderStore.
func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{
		orders:    make(map[string]domain.Order),
		bySeller:  make(map[string][]string),
		byBuyer:   make(map[string][]string),
		byPayment: make(map[string]string),
	}
}

// Save stores the order and maintains the indexes.
func (s *MemoryOrderStore) Save(_ context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.ID]; !exists {
		s.bySeller[order.SellerID] = append(s.bySeller[order.SellerID], order.ID)
		s.byBuyer[order.BuyerID] = append(s.byBuyer[order.BuyerID], order.ID)
	}
	if order.PaymentRef != "" {
		s.byPayment[order.PaymentRef] = order.ID
	}

	s.orders[order.ID] = *order
	return nil
}

// Get looks an order up by ID.
func (s *MemoryOrderStore) Get(_ context.Context, orderID string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrOrderNotFound, orderID)
	}
	return &order, nil
}

// ListBySeller returns all orders where the user is the seller.
func (s *MemoryOrderStore) ListBySeller(_ context.Context, sellerID string) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(s.bySeller[sellerID]), nil
}

// ListByBuyer returns all orders where the user is the buyer.
func (s *MemoryOrderStore) ListByBuyer(_ context.Context, buyerID string) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(s.byBuyer[buyerID]), nil
}

// GetByPaymentRef looks an order up by payment reference.
func (s *MemoryOrderStore) GetByPaymentRef(_ context.Context, paymentRef string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orderID, ok := s.byPayment[paymentRef]
	if !ok {
		return nil, fmt.Errorf("%w: payment ref %s", ports.ErrOrderNotFound, paymentRef)
	}

	order := s.orders[orderID]
	return &order, nil
}

func (s *MemoryOrderStore) collect(ids []string) []domain.Order {
	orders := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		orders = append(orders, s.orders[id])
	}
	return orders
}
