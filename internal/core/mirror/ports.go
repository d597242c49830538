package mirror

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable is returned when the mirror backend cannot be reached.
	// It is retryable and never fatal to the local operation.
	ErrUnavailable = errors.New("mirror unavailable")
	// ErrDisabled is returned by the noop adapter when mirroring is not
	// configured. It is not retried.
	ErrDisabled = errors.New("mirroring disabled")
)

// Record is the cross-reference stored on a local aggregate after it has
// been mirrored to the external ledger. Absence of a Record means "not yet
// mirrored", never an error.
type Record struct {
	// TxRef is the transaction reference on the external ledger.
	TxRef string `json:"tx_ref"`
	// URL points to the externally browsable entry.
	URL string `json:"url"`
	// RecordedAt is when the mirror acknowledged the entry.
	RecordedAt time.Time `json:"recorded_at"`
}

// EventEntry is the minimal projection of a trace event sent to the mirror.
type EventEntry struct {
	EventID   string    `json:"event_id"`
	BatchID   string    `json:"batch_id"`
	EventType string    `json:"event_type"`
	ActorRole string    `json:"actor_role"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderEntry is the minimal projection of an order transition sent to the mirror.
type OrderEntry struct {
	OrderID   string    `json:"order_id"`
	OrderType string    `json:"order_type"`
	NewStatus string    `json:"new_status"`
	Timestamp time.Time `json:"timestamp"`
}

// Mirror is the port to the external, best-effort ledger. Implementations
// must be safe for concurrent use.
type Mirror interface {
	// MirrorEvent records a trace event on the external ledger.
	MirrorEvent(ctx context.Context, entry EventEntry) (*Record, error)

	// MirrorOrderTransition records an order state transition on the
	// external ledger.
	MirrorOrderTransition(ctx context.Context, entry OrderEntry) (*Record, error)
}
