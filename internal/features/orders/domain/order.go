package domain

import (
	"strings"
	"time"

	"plantain-trace/internal/core/mirror"

	"github.com/shopspring/decimal"
)

// OrderType identifies which leg of the supply chain an order belongs to.
type OrderType string

const (
	// OrderTypeProcessing is a farmer selling to a processor.
	OrderTypeProcessing OrderType = "PROCESSING"
	// OrderTypeDistribution is a processor selling to a distributor.
	OrderTypeDistribution OrderType = "DISTRIBUTION"
	// OrderTypeConsumer is a distributor selling to a consumer; its
	// fulfilment is tracked on the embedded DeliveryRecord.
	OrderTypeConsumer OrderType = "CONSUMER"
)

// ParseOrderType converts a string into an OrderType, case-insensitively.
func ParseOrderType(s string) (OrderType, bool) {
	switch OrderType(strings.ToUpper(s)) {
	case OrderTypeProcessing:
		return OrderTypeProcessing, true
	case OrderTypeDistribution:
		return OrderTypeDistribution, true
	case OrderTypeConsumer:
		return OrderTypeConsumer, true
	default:
		return "", false
	}
}

// OrderStatus represents the current state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusReady      OrderStatus = "READY"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// ParseOrderStatus converts a string into an OrderStatus, case-insensitively.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch OrderStatus(strings.ToUpper(s)) {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusReady, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return OrderStatus(strings.ToUpper(s)), true
	default:
		return "", false
	}
}

// orderTransitions is the directed transition graph. Cancellation is only
// reachable from Pending; Delivered and Cancelled are terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing},
	OrderStatusProcessing: {OrderStatusReady},
	OrderStatusReady:      {OrderStatusShipped},
	OrderStatusShipped:    {OrderStatusDelivered},
}

// CanTransitionTo reports whether next is directly reachable from s.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions exist from s.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// OrderItem represents an individual item within a consumer order.
type OrderItem struct {
	// Quantity is the number of units purchased.
	Quantity int `json:"quantity"`
	// SKU is the Stock Keeping Unit identifier for the product.
	SKU string `json:"sku"`
	// Name is the descriptive name of the product.
	Name string `json:"name"`
}

// Order represents a purchase order between two supply-chain parties.
type Order struct {
	// ID is the unique identifier for the order.
	ID string `json:"order_id"`
	// Type identifies the supply-chain leg (PROCESSING, DISTRIBUTION, CONSUMER).
	Type OrderType `json:"order_type"`
	// Status represents the current state of the order.
	Status OrderStatus `json:"status"`
	// BuyerID is the purchasing party.
	BuyerID string `json:"buyer_id"`
	// SellerID is the fulfilling party.
	SellerID string `json:"seller_id"`
	// BatchID links the order to a traced batch, when known.
	BatchID string `json:"batch_id,omitempty"`
	// Items contains the list of products for consumer orders.
	Items []OrderItem `json:"items,omitempty"`
	// Quantity is the ordered amount, in batch units.
	Quantity int `json:"quantity"`
	// TotalAmount is the agreed price for the order.
	TotalAmount decimal.Decimal `json:"total_amount"`
	// PaymentRef is the upstream payment gateway reference, when the order
	// was created from a successful payment.
	PaymentRef string `json:"payment_ref,omitempty"`
	// TrackingNumber is the carrier tracking identifier, set on shipment.
	TrackingNumber string `json:"tracking_number,omitempty"`
	// EstimatedDelivery is the promised delivery date, set on shipment.
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	// Delivery tracks consumer-order fulfilment at finer granularity.
	Delivery *DeliveryRecord `json:"delivery,omitempty"`
	// Mirror is the external ledger cross-reference for the latest
	// mirrored transition, once recorded.
	Mirror *mirror.Record `json:"mirror,omitempty"`
	// CreatedAt is the timestamp when the order was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is the timestamp of the last state change.
	UpdatedAt time.Time `json:"updated_at"`
}

// IsParty reports whether the given user is the buyer or seller of the order.
func (o *Order) IsParty(userID string) bool {
	return userID == o.BuyerID || userID == o.SellerID
}
