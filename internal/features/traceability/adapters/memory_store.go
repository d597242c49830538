package adapters

import (
	"context"
	"fmt"
	"sync"

	"plantain-trace/internal/features/traceability/domain"
	"plantain-trace/internal/features/traceability/ports"
)

// MemoryEventStore is an in-memory ports.BatchEventStore used in tests and
// local development.
type MemoryEventStore struct {
	mu        sync.RWMutex
	byBatch   map[string][]domain.TraceEvent
	locators  map[string]eventLocator
	summaries map[string]domain.BatchSummary
}

// NewMemoryEventStore creates an empty MemoryEventStore.
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{
		byBatch:   make(map[string][]domain.TraceEvent),
		locators:  make(map[string]eventLocator),
		summaries: make(map[string]domain.BatchSummary),
	}
}

// AppendEvent appends the event to its batch list.
func (s *MemoryEventStore) AppendEvent(_ context.Context, event *domain.TraceEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.locators[event.ID] = eventLocator{
		BatchID: event.BatchID,
		Index:   int64(len(s.byBatch[event.BatchID])),
	}
	s.byBatch[event.BatchID] = append(s.byBatch[event.BatchID], *event)
	return nil
}

// GetBatchEvents returns a copy of the batch's events in insertion order.
func (s *MemoryEventStore) GetBatchEvents(_ context.Context, batchID string) ([]domain.TraceEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.byBatch[batchID]
	out := make([]domain.TraceEvent, len(events))
	copy(out, events)
	return out, nil
}

// GetEvent looks an event up by ID.
func (s *MemoryEventStore) GetEvent(_ context.Context, eventID string) (*domain.TraceEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loc, ok := s.locators[eventID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrEventNotFound, eventID)
	}

	ev := s.byBatch[loc.BatchID][loc.Index]
	return &ev, nil
}

// UpdateEvent overwrites the stored event in place.
func (s *MemoryEventStore) UpdateEvent(_ context.Context, event *domain.TraceEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	loc, ok := s.locators[event.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ports.ErrEventNotFound, event.ID)
	}

	s.byBatch[loc.BatchID][loc.Index] = *event
	return nil
}

// SaveSummary stores the derived batch summary.
func (s *MemoryEventStore) SaveSummary(_ context.Context, summary *domain.BatchSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.summaries[summary.BatchID] = *summary
	return nil
}

// GetSummary returns the cached summary, or nil if none is stored.
func (s *MemoryEventStore) GetSummary(_ context.Context, batchID string) (*domain.BatchSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary, ok := s.summaries[batchID]
	if !ok {
		return nil, nil
	}
	return &summary, nil
}
