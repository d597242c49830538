package ports

import (
	"context"
	"errors"

	"plantain-trace/internal/features/orders/domain"
)

// ErrOrderNotFound is returned when an order ID or payment reference is
// unknown to the store.
var ErrOrderNotFound = errors.New("order not found")

// OrderStore defines the secondary port for order persistence. Per-party
// indexes are maintained incrementally on save so reads never scan the
// whole order set.
type OrderStore interface {
	// Save inserts or overwrites an order and updates the seller, buyer
	// and payment-reference indexes.
	Save(ctx context.Context, order *domain.Order) error

	// Get looks an order up by its ID.
	Get(ctx context.Context, orderID string) (*domain.Order, error)

	// ListBySeller returns all orders where the given user is the seller.
	ListBySeller(ctx context.Context, sellerID string) ([]domain.Order, error)

	// ListByBuyer returns all orders where the given user is the buyer.
	ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error)

	// GetByPaymentRef looks an order up by its payment gateway reference.
	GetByPaymentRef(ctx context.Context, paymentRef string) (*domain.Order, error)
}
