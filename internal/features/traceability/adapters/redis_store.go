package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"plantain-trace/internal/core/storage"
	"plantain-trace/internal/features/traceability/domain"
	"plantain-trace/internal/features/traceability/ports"
)

const (
	batchEventsKeyFmt  = "trace:batch:%s:events"
	batchSummaryKeyFmt = "trace:batch:%s:summary"
	eventLocatorKeyFmt = "trace:event:%s"
)

// eventLocator records where an event lives inside its batch list, so
// lookups and in-place updates by event ID avoid scanning.
type eventLocator struct {
	BatchID string `json:"batch_id"`
	Index   int64  `json:"index"`
}

// RedisEventStore implements ports.BatchEventStore on the shared KV storage.
type RedisEventStore struct {
	kv storage.KV
}

// NewRedisEventStore creates a RedisEventStore.
func NewRedisEventStore(kv storage.KV) *RedisEventStore {
	return &RedisEventStore{kv: kv}
}

// AppendEvent appends the event to its batch list and stores its locator.
func (s *RedisEventStore) AppendEvent(ctx context.Context, event *domain.TraceEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	listKey := fmt.Sprintf(batchEventsKeyFmt, event.BatchID)

	index, err := s.kv.ListLen(ctx, listKey)
	if err != nil {
		return err
	}

	if err := s.kv.ListAppend(ctx, listKey, data); err != nil {
		return err
	}

	locator, err := json.Marshal(eventLocator{BatchID: event.BatchID, Index: index})
	if err != nil {
		return fmt.Errorf("failed to marshal event locator: %w", err)
	}

	return s.kv.Set(ctx, fmt.Sprintf(eventLocatorKeyFmt, event.ID), locator)
}

// GetBatchEvents returns the batch's events in insertion order.
func (s *RedisEventStore) GetBatchEvents(ctx context.Context, batchID string) ([]domain.TraceEvent, error) {
	raw, err := s.kv.ListRange(ctx, fmt.Sprintf(batchEventsKeyFmt, batchID))
	if err != nil {
		return nil, err
	}

	events := make([]domain.TraceEvent, 0, len(raw))
	for _, item := range raw {
		var ev domain.TraceEvent
		if err := json.Unmarshal(item, &ev); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// GetEvent looks an event up by ID via its locator.
func (s *RedisEventStore) GetEvent(ctx context.Context, eventID string) (*domain.TraceEvent, error) {
	loc, err := s.locate(ctx, eventID)
	if err != nil {
		return nil, err
	}

	events, err := s.GetBatchEvents(ctx, loc.BatchID)
	if err != nil {
		return nil, err
	}
	if loc.Index < 0 || loc.Index >= int64(len(events)) {
		return nil, fmt.Errorf("%w: %s", ports.ErrEventNotFound, eventID)
	}

	ev := events[loc.Index]
	return &ev, nil
}

// UpdateEvent overwrites the event at its recorded position.
func (s *RedisEventStore) UpdateEvent(ctx context.Context, event *domain.TraceEvent) error {
	loc, err := s.locate(ctx, event.ID)
	if err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return s.kv.ListSet(ctx, fmt.Sprintf(batchEventsKeyFmt, loc.BatchID), loc.Index, data)
}

// SaveSummary stores the derived batch summary.
func (s *RedisEventStore) SaveSummary(ctx context.Context, summary *domain.BatchSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	return s.kv.Set(ctx, fmt.Sprintf(batchSummaryKeyFmt, summary.BatchID), data)
}

// GetSummary returns the cached summary, or nil if none is stored.
func (s *RedisEventStore) GetSummary(ctx context.Context, batchID string) (*domain.BatchSummary, error) {
	data, err := s.kv.Get(ctx, fmt.Sprintf(batchSummaryKeyFmt, batchID))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var summary domain.BatchSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
	}
	return &summary, nil
}

func (s *RedisEventStore) locate(ctx context.Context, eventID string) (*eventLocator, error) {
	data, err := s.kv.Get(ctx, fmt.Sprintf(eventLocatorKeyFmt, eventID))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ports.ErrEventNotFound, eventID)
		}
		return nil, err
	}

	var loc eventLocator
	if err := json.Unmarshal(data, &loc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event locator: %w", err)
	}
	return &loc, nil
}
