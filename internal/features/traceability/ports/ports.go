package ports

import (
	"context"
	"errors"

	"plantain-trace/internal/features/traceability/domain"
)

// ErrEventNotFound is returned when an event ID is unknown to the store.
var ErrEventNotFound = errors.New("event not found")

// BatchEventStore defines the secondary port for the append-only event ledger.
// Events are keyed by batch; each batch's list preserves insertion order.
type BatchEventStore interface {
	// AppendEvent appends an event to its batch's ordered list and indexes
	// it by event ID.
	AppendEvent(ctx context.Context, event *domain.TraceEvent) error

	// GetBatchEvents returns the batch's events in insertion order. A batch
	// with no events yields an empty slice, not an error.
	GetBatchEvents(ctx context.Context, batchID string) ([]domain.TraceEvent, error)

	// GetEvent looks an event up by its ID.
	GetEvent(ctx context.Context, eventID string) (*domain.TraceEvent, error)

	// UpdateEvent overwrites an existing event in place. Used only for the
	// single allowed verification mutation and for mirror backfill.
	UpdateEvent(ctx context.Context, event *domain.TraceEvent) error

	// SaveSummary stores the derived batch summary.
	SaveSummary(ctx context.Context, summary *domain.BatchSummary) error

	// GetSummary returns the cached summary, or nil if none is stored.
	GetSummary(ctx context.Context, batchID string) (*domain.BatchSummary, error)
}
