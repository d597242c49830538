package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"plantain-trace/internal/core/authz"
	"plantain-trace/internal/core/keymutex"
	"plantain-trace/internal/core/logger"
	"plantain-trace/internal/core/mirror"
	"plantain-trace/internal/features/orders/domain"
	"plantain-trace/internal/features/orders/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrPermissionDenied is returned when the actor is not the authorized
	// party for the requested order operation.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrValidation is returned when the order payload is incomplete or
	// inconsistent with the order type.
	ErrValidation = errors.New("invalid order request")
	// ErrInvalidTransition is returned when a state change is attempted out
	// of sequence. The order is left unchanged.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrAlreadyRegistered is returned when a payment reference has already
	// produced an order.
	ErrAlreadyRegistered = errors.New("payment reference already registered")
)

// MirrorQueue is the slice of the mirror dispatcher the order machine needs.
type MirrorQueue interface {
	EnqueueOrderTransition(entry mirror.OrderEntry, onDone func(mirror.Record))
}

// DeliveryInput carries the delivery details of a new consumer order.
type DeliveryInput struct {
	Mode          string
	Address       string
	RecipientName string
}

// CreateOrderInput carries the caller-supplied fields of a new order.
type CreateOrderInput struct {
	Type        string
	SellerID    string
	BatchID     string
	Items       []domain.OrderItem
	Quantity    int
	TotalAmount decimal.Decimal
	Delivery    *DeliveryInput
}

// TransitionInput carries the extra fields some transitions require.
type TransitionInput struct {
	TrackingNumber    string
	EstimatedDelivery *time.Time
}

// AdvanceDeliveryInput carries the optional fields of a delivery advance.
type AdvanceDeliveryInput struct {
	Carrier           string
	TrackingNumber    string
	EstimatedDelivery *time.Time
	Notes             string
}

// OrderService manages the order lifecycle: creation (directly or from a
// successful payment), the seller-driven state machine, and the consumer
// delivery workflow. All state changes for one order are serialized by a
// per-order lock so concurrent requests cannot both succeed from the same
// prior state.
type OrderService struct {
	store  ports.OrderStore
	policy *authz.Policy
	mirror MirrorQueue
	locks  *keymutex.KeyMutex

	now   func() time.Time
	newID func() string
}

// NewOrderService creates a new OrderService.
func NewOrderService(store ports.OrderStore, policy *authz.Policy, mirrorQueue MirrorQueue) *OrderService {
	return &OrderService{
		store:  store,
		policy: policy,
		mirror: mirrorQueue,
		locks:  keymutex.New(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// CreateOrder places a new order with the acting user as buyer. Consumer
// orders enter the delivery workflow immediately; other types start in the
// Pending stage of the order machine.
func (s *OrderService) CreateOrder(ctx context.Context, buyerID string, input CreateOrderInput) (*domain.Order, error) {
	order, err := s.buildOrder(buyerID, input)
	if err != nil {
		return nil, err
	}

	if err := s.store.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("service: failed to save order: %w", err)
	}

	s.enqueueMirror(order)

	return order, nil
}

// CreateOrderFromPayment places an order after the payment gateway reports a
// successful charge. The payment reference is the idempotency key: a reference
// that already produced an order is rejected.
func (s *OrderService) CreateOrderFromPayment(ctx context.Context, buyerID, paymentRef string, input CreateOrderInput) (*domain.Order, error) {
	if paymentRef == "" {
		return nil, fmt.Errorf("%w: payment reference is required", ErrValidation)
	}

	s.locks.Lock(paymentKey(paymentRef))
	defer s.locks.Unlock(paymentKey(paymentRef))

	existing, err := s.store.GetByPaymentRef(ctx, paymentRef)
	if err != nil && !errors.Is(err, ports.ErrOrderNotFound) {
		return nil, fmt.Errorf("service: failed to check payment reference: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRegistered, paymentRef)
	}

	order, err := s.buildOrder(buyerID, input)
	if err != nil {
		return nil, err
	}
	order.PaymentRef = paymentRef

	if err := s.store.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("service: failed to save order: %w", err)
	}

	s.enqueueMirror(order)

	return order, nil
}

// GetOrder returns an order if the acting user is one of its parties.
func (s *OrderService) GetOrder(ctx context.Context, orderID, userID string) (*domain.Order, error) {
	order, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !order.IsParty(userID) {
		return nil, fmt.Errorf("%w: not a party to this order", ErrPermissionDenied)
	}

	return order, nil
}

// ListOrders returns every order where the acting user is buyer or seller.
func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	asBuyer, err := s.store.ListByBuyer(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list orders: %w", err)
	}

	asSeller, err := s.store.ListBySeller(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list orders: %w", err)
	}

	seen := make(map[string]bool, len(asBuyer))
	orders := make([]domain.Order, 0, len(asBuyer)+len(asSeller))
	for _, o := range asBuyer {
		seen[o.ID] = true
		orders = append(orders, o)
	}
	for _, o := range asSeller {
		if !seen[o.ID] {
			orders = append(orders, o)
		}
	}

	return orders, nil
}

// Transition advances an order through the seller-driven state machine.
// Shipping requires tracking data supplied atomically with the transition.
func (s *OrderService) Transition(ctx context.Context, orderID, actorID string, actorRole authz.Role, nextStatus string, input TransitionInput) (*domain.Order, error) {
	next, ok := domain.ParseOrderStatus(nextStatus)
	if !ok {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, nextStatus)
	}

	s.locks.Lock(orderKey(orderID))
	defer s.locks.Unlock(orderKey(orderID))

	order, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.Type == domain.OrderTypeConsumer {
		return nil, fmt.Errorf("%w: consumer orders advance through the delivery workflow", ErrValidation)
	}

	if err := s.authorizeSeller(order, actorID, actorRole); err != nil {
		return nil, err
	}

	if !order.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, next)
	}

	if next == domain.OrderStatusShipped {
		if input.TrackingNumber == "" || input.EstimatedDelivery == nil {
			return nil, fmt.Errorf("%w: shipping requires tracking number and estimated delivery", ErrValidation)
		}
		order.TrackingNumber = input.TrackingNumber
		order.EstimatedDelivery = input.EstimatedDelivery
	}

	order.Status = next
	order.UpdatedAt = s.now().UTC()

	if err := s.store.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("service: failed to save order: %w", err)
	}

	s.enqueueMirror(order)

	return order, nil
}

// AdvanceDelivery moves a consumer order's delivery record forward. Only the
// seller side may advance; marking the delivery failed is allowed from any
// non-terminal state.
func (s *OrderService) AdvanceDelivery(ctx context.Context, orderID, actorID string, actorRole authz.Role, nextStatus string, input AdvanceDeliveryInput) (*domain.Order, error) {
	next, ok := domain.ParseDeliveryStatus(nextStatus)
	if !ok {
		return nil, fmt.Errorf("%w: unknown delivery status %q", ErrValidation, nextStatus)
	}

	s.locks.Lock(orderKey(orderID))
	defer s.locks.Unlock(orderKey(orderID))

	order, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.Type != domain.OrderTypeConsumer || order.Delivery == nil {
		return nil, fmt.Errorf("%w: order has no delivery workflow", ErrValidation)
	}

	if err := s.authorizeSeller(order, actorID, actorRole); err != nil {
		return nil, err
	}

	if !order.Delivery.Status.CanAdvanceTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Delivery.Status, next)
	}

	order.Delivery.Status = next
	if input.Carrier != "" {
		order.Delivery.Carrier = input.Carrier
	}
	if input.TrackingNumber != "" {
		order.Delivery.TrackingNumber = input.TrackingNumber
	}
	if input.EstimatedDelivery != nil {
		order.Delivery.EstimatedDelivery = input.EstimatedDelivery
	}
	if input.Notes != "" {
		order.Delivery.Notes = input.Notes
	}
	if next == domain.DeliveryStatusDelivered {
		order.Status = domain.OrderStatusDelivered
	}
	order.UpdatedAt = s.now().UTC()

	if err := s.store.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("service: failed to save order: %w", err)
	}

	s.enqueueMirror(order)

	return order, nil
}

// ConfirmDelivery is the buyer-only acknowledgement that closes a consumer
// order. It requires the delivery to be out for delivery (or already
// delivered, in which case it is a no-op so UI double-submits are harmless).
func (s *OrderService) ConfirmDelivery(ctx context.Context, orderID, actorID string) (*domain.Order, error) {
	s.locks.Lock(orderKey(orderID))
	defer s.locks.Unlock(orderKey(orderID))

	order, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.Type != domain.OrderTypeConsumer || order.Delivery == nil {
		return nil, fmt.Errorf("%w: order has no delivery workflow", ErrValidation)
	}

	if actorID != order.BuyerID {
		return nil, fmt.Errorf("%w: only the buyer may confirm delivery", ErrPermissionDenied)
	}

	if order.Delivery.Status == domain.DeliveryStatusDelivered {
		// Already confirmed; repeat calls succeed without a state change.
		return order, nil
	}

	if order.Delivery.Status != domain.DeliveryStatusOutForDelivery {
		return nil, fmt.Errorf("%w: delivery is %s, not out for delivery", ErrInvalidTransition, order.Delivery.Status)
	}

	order.Delivery.Status = domain.DeliveryStatusDelivered
	order.Status = domain.OrderStatusDelivered
	order.UpdatedAt = s.now().UTC()

	if err := s.store.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("service: failed to save order: %w", err)
	}

	s.enqueueMirror(order)

	return order, nil
}

// buildOrder validates the input and assembles a new order record.
func (s *OrderService) buildOrder(buyerID string, input CreateOrderInput) (*domain.Order, error) {
	orderType, ok := domain.ParseOrderType(input.Type)
	if !ok {
		return nil, fmt.Errorf("%w: unknown order type %q", ErrValidation, input.Type)
	}
	if input.SellerID == "" {
		return nil, fmt.Errorf("%w: seller is required", ErrValidation)
	}
	if input.SellerID == buyerID {
		return nil, fmt.Errorf("%w: buyer and seller must differ", ErrValidation)
	}
	if input.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if input.TotalAmount.IsNegative() || input.TotalAmount.IsZero() {
		return nil, fmt.Errorf("%w: total amount must be positive", ErrValidation)
	}

	now := s.now().UTC()
	order := &domain.Order{
		ID:          s.newID(),
		Type:        orderType,
		Status:      domain.OrderStatusPending,
		BuyerID:     buyerID,
		SellerID:    input.SellerID,
		BatchID:     input.BatchID,
		Items:       input.Items,
		Quantity:    input.Quantity,
		TotalAmount: input.TotalAmount,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if orderType == domain.OrderTypeConsumer {
		if input.Delivery == nil {
			return nil, fmt.Errorf("%w: consumer orders require delivery details", ErrValidation)
		}
		mode, ok := domain.ParseDeliveryMode(input.Delivery.Mode)
		if !ok {
			return nil, fmt.Errorf("%w: unknown delivery mode %q", ErrValidation, input.Delivery.Mode)
		}
		if mode != domain.DeliveryModePickup && input.Delivery.Address == "" {
			return nil, fmt.Errorf("%w: delivery address is required", ErrValidation)
		}
		order.Delivery = &domain.DeliveryRecord{
			Mode:          mode,
			Address:       input.Delivery.Address,
			RecipientName: input.Delivery.RecipientName,
			Status:        domain.DeliveryStatusPending,
		}
	} else if input.Delivery != nil {
		return nil, fmt.Errorf("%w: only consumer orders carry delivery details", ErrValidation)
	}

	return order, nil
}

// authorizeSeller checks both halves of the transition rule: the role must
// be the counterparty for the order type, and the actor must be that order's
// seller (a direct membership test, not a scan).
func (s *OrderService) authorizeSeller(order *domain.Order, actorID string, actorRole authz.Role) error {
	if !s.policy.Allowed(actorRole, authz.ActionTransitionOrder, string(order.Type)) {
		return fmt.Errorf("%w: role %s may not advance %s orders", ErrPermissionDenied, actorRole, order.Type)
	}
	if actorID != order.SellerID {
		return fmt.Errorf("%w: only the fulfilling party may advance this order", ErrPermissionDenied)
	}
	return nil
}

// enqueueMirror schedules the order's current status for best-effort external
// mirroring. The mirror record is backfilled when the call succeeds.
func (s *OrderService) enqueueMirror(order *domain.Order) {
	if s.mirror == nil {
		return
	}

	orderID := order.ID

	s.mirror.EnqueueOrderTransition(mirror.OrderEntry{
		OrderID:   orderID,
		OrderType: string(order.Type),
		NewStatus: string(order.Status),
		Timestamp: order.UpdatedAt,
	}, func(rec mirror.Record) {
		ctx := context.Background()

		s.locks.Lock(orderKey(orderID))
		defer s.locks.Unlock(orderKey(orderID))

		stored, err := s.store.Get(ctx, orderID)
		if err != nil {
			logger.Get().Warn("Failed to load order for mirror backfill",
				zap.String("order_id", orderID),
				zap.Error(err),
			)
			return
		}

		stored.Mirror = &rec
		if err := s.store.Save(ctx, stored); err != nil {
			logger.Get().Warn("Failed to backfill mirror record",
				zap.String("order_id", orderID),
				zap.Error(err),
			)
		}
	})
}

func orderKey(orderID string) string {
	return "order:" + orderID
}

func paymentKey(paymentRef string) string {
	return "payment:" + paymentRef
}
