package domain

import (
	"strings"
	"time"
)

// DeliveryMode represents how a consumer order reaches the buyer.
type DeliveryMode string

const (
	DeliveryModePickup   DeliveryMode = "PICKUP"
	DeliveryModeStandard DeliveryMode = "STANDARD"
	DeliveryModeExpress  DeliveryMode = "EXPRESS"
	DeliveryModeSameDay  DeliveryMode = "SAME_DAY"
)

// ParseDeliveryMode converts a string into a DeliveryMode, case-insensitively.
func ParseDeliveryMode(s string) (DeliveryMode, bool) {
	switch DeliveryMode(strings.ToUpper(s)) {
	case DeliveryModePickup, DeliveryModeStandard, DeliveryModeExpress, DeliveryModeSameDay:
		return DeliveryMode(strings.ToUpper(s)), true
	default:
		return "", false
	}
}

// DeliveryStatus tracks consumer-order fulfilment at finer granularity than
// the order status.
type DeliveryStatus string

const (
	DeliveryStatusPending        DeliveryStatus = "PENDING"
	DeliveryStatusConfirmed      DeliveryStatus = "CONFIRMED"
	DeliveryStatusProcessing     DeliveryStatus = "PROCESSING"
	DeliveryStatusShipped        DeliveryStatus = "SHIPPED"
	DeliveryStatusInTransit      DeliveryStatus = "IN_TRANSIT"
	DeliveryStatusOutForDelivery DeliveryStatus = "OUT_FOR_DELIVERY"
	DeliveryStatusDelivered      DeliveryStatus = "DELIVERED"
	DeliveryStatusFailed         DeliveryStatus = "FAILED"
)

// ParseDeliveryStatus converts a string into a DeliveryStatus, case-insensitively.
func ParseDeliveryStatus(s string) (DeliveryStatus, bool) {
	switch DeliveryStatus(strings.ToUpper(s)) {
	case DeliveryStatusPending, DeliveryStatusConfirmed, DeliveryStatusProcessing,
		DeliveryStatusShipped, DeliveryStatusInTransit, DeliveryStatusOutForDelivery,
		DeliveryStatusDelivered, DeliveryStatusFailed:
		return DeliveryStatus(strings.ToUpper(s)), true
	default:
		return "", false
	}
}

// deliveryNext is the linear fulfilment chain. Failed is reachable from any
// non-terminal state and is handled in CanAdvanceTo directly.
var deliveryNext = map[DeliveryStatus]DeliveryStatus{
	DeliveryStatusPending:        DeliveryStatusConfirmed,
	DeliveryStatusConfirmed:      DeliveryStatusProcessing,
	DeliveryStatusProcessing:     DeliveryStatusShipped,
	DeliveryStatusShipped:        DeliveryStatusInTransit,
	DeliveryStatusInTransit:      DeliveryStatusOutForDelivery,
	DeliveryStatusOutForDelivery: DeliveryStatusDelivered,
}

// IsTerminal reports whether the delivery can no longer change state.
func (s DeliveryStatus) IsTerminal() bool {
	return s == DeliveryStatusDelivered || s == DeliveryStatusFailed
}

// CanAdvanceTo reports whether next is a legal advance from s.
func (s DeliveryStatus) CanAdvanceTo(next DeliveryStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == DeliveryStatusFailed {
		return true
	}
	return deliveryNext[s] == next
}

// DeliveryRecord is embedded in consumer orders and carries the finer
// fulfilment state alongside shipment details.
type DeliveryRecord struct {
	// Mode is how the order reaches the buyer.
	Mode DeliveryMode `json:"mode"`
	// Address is the delivery address (empty for pickup).
	Address string `json:"address,omitempty"`
	// RecipientName is who receives the delivery.
	RecipientName string `json:"recipient_name,omitempty"`
	// Carrier is the shipping carrier handling the delivery.
	Carrier string `json:"carrier,omitempty"`
	// TrackingNumber is the carrier tracking identifier.
	TrackingNumber string `json:"tracking_number,omitempty"`
	// EstimatedDelivery is the promised delivery date.
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	// Status is the current fulfilment state.
	Status DeliveryStatus `json:"status"`
	// Notes holds free-form courier or seller notes.
	Notes string `json:"notes,omitempty"`
}
