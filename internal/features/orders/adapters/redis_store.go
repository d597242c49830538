package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"plantain-trace/internal/core/storage"
	"plantain-trace/internal/features/orders/domain"
	"plantain-trace/internal/features/orders/ports"
)

const (
	orderKeyFmt      = "orders:%s"
	sellerIndexFmt   = "orders:by_seller:%s"
	buyerIndexFmt    = "orders:by_buyer:%s"
	paymentRefKeyFmt = "orders:payment:%s"
)

// RedisOrderStore implements ports.OrderStore on the shared KV storage.
type RedisOrderStore struct {
	kv storage.KV
}

// NewRedisOrderStore creates a RedisOrderStore.
func NewRedisOrderStore(kv storage.KV) *RedisOrderStore {
	return &RedisOrderStore{kv: kv}
}

// Save stores the order and maintains the party and payment indexes. Index
// membership is a set add, so repeated saves of the same order are harmless.
func (s *RedisOrderStore) Save(ctx context.Context, order *domain.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}

	if err := s.kv.Set(ctx, fmt.Sprintf(orderKeyFmt, order.ID), data); err != nil {
		return err
	}

	if err := s.kv.SetAdd(ctx, fmt.Sprintf(sellerIndexFmt, order.SellerID), order.ID); err != nil {
		return err
	}
	if err := s.kv.SetAdd(ctx, fmt.Sprintf(buyerIndexFmt, order.BuyerID), order.ID); err != nil {
		return err
	}

	if order.PaymentRef != "" {
		if err := s.kv.Set(ctx, fmt.Sprintf(paymentRefKeyFmt, order.PaymentRef), []byte(order.ID)); err != nil {
			return err
		}
	}

	return nil
}

// Get looks an order up by ID.
func (s *RedisOrderStore) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	data, err := s.kv.Get(ctx, fmt.Sprintf(orderKeyFmt, orderID))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ports.ErrOrderNotFound, orderID)
		}
		return nil, err
	}

	var order domain.Order
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order: %w", err)
	}
	return &order, nil
}

// ListBySeller returns all orders indexed under the seller.
func (s *RedisOrderStore) ListBySeller(ctx context.Context, sellerID string) ([]domain.Order, error) {
	return s.listByIndex(ctx, fmt.Sprintf(sellerIndexFmt, sellerID))
}

// ListByBuyer returns all orders indexed under the buyer.
func (s *RedisOrderStore) ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	return s.listByIndex(ctx, fmt.Sprintf(buyerIndexFmt, buyerID))
}

// GetByPaymentRef looks an order up by payment reference.
func (s *RedisOrderStore) GetByPaymentRef(ctx context.Context, paymentRef string) (*domain.Order, error) {
	orderID, err := s.kv.Get(ctx, fmt.Sprintf(paymentRefKeyFmt, paymentRef))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: payment ref %s", ports.ErrOrderNotFound, paymentRef)
		}
		return nil, err
	}
	return s.Get(ctx, string(orderID))
}

func (s *RedisOrderStore) listByIndex(ctx context.Context, indexKey string) ([]domain.Order, error) {
	ids, err := s.kv.SetMembers(ctx, indexKey)
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		order, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, nil
}
