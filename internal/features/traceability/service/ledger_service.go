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
	"plantain-trace/internal/features/traceability/domain"
	"plantain-trace/internal/features/traceability/ports"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrPermissionDenied is returned when the actor's role is not allowed
	// to perform the requested ledger operation.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrValidation is returned when the event payload is incomplete or
	// names an unknown event type.
	ErrValidation = errors.New("invalid event")
	// ErrAlreadyVerified is returned when verifying an event twice.
	ErrAlreadyVerified = errors.New("event already verified")
)

// MirrorQueue is the slice of the mirror dispatcher the ledger needs.
type MirrorQueue interface {
	EnqueueEvent(entry mirror.EventEntry, onDone func(mirror.Record))
}

// AppendEventInput carries the caller-supplied fields of a new trace event.
type AppendEventInput struct {
	BatchID     string
	EventType   string
	ActorName   string
	Location    string
	Description string
	Details     map[string]string
	Attachments []string
}

// LedgerService implements the append-only traceability ledger: role-gated
// appends, chronological reads, cross-role verification, and the derived
// per-batch summary.
type LedgerService struct {
	store  ports.BatchEventStore
	policy *authz.Policy
	mirror MirrorQueue
	locks  *keymutex.KeyMutex

	now   func() time.Time
	newID func() string
}

// NewLedgerService creates a LedgerService.
func NewLedgerService(store ports.BatchEventStore, policy *authz.Policy, mirrorQueue MirrorQueue) *LedgerService {
	return &LedgerService{
		store:  store,
		policy: policy,
		mirror: mirrorQueue,
		locks:  keymutex.New(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// AppendEvent validates and appends a new event to the batch's ledger, then
// refreshes the derived summary. The batch lock makes the read-modify-write
// atomic with respect to concurrent appends.
func (s *LedgerService) AppendEvent(ctx context.Context, actorID string, actorRole authz.Role, input AppendEventInput) (*domain.TraceEvent, error) {
	if input.BatchID == "" {
		return nil, fmt.Errorf("%w: batch ID is required", ErrValidation)
	}
	if input.Description == "" {
		return nil, fmt.Errorf("%w: description is required", ErrValidation)
	}

	eventType, ok := domain.ParseEventType(input.EventType)
	if !ok {
		return nil, fmt.Errorf("%w: unknown event type %q", ErrValidation, input.EventType)
	}

	if !s.policy.Allowed(actorRole, authz.ActionAppendEvent, string(eventType)) {
		return nil, fmt.Errorf("%w: role %s may not record %s events", ErrPermissionDenied, actorRole, eventType)
	}

	event := &domain.TraceEvent{
		ID:          s.newID(),
		BatchID:     input.BatchID,
		Type:        eventType,
		ActorID:     actorID,
		ActorRole:   actorRole,
		ActorName:   input.ActorName,
		Timestamp:   s.now().UTC(),
		Location:    input.Location,
		Description: input.Description,
		Details:     input.Details,
		Attachments: input.Attachments,
	}

	s.locks.Lock(batchKey(input.BatchID))
	defer s.locks.Unlock(batchKey(input.BatchID))

	if err := s.store.AppendEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("service: failed to append event: %w", err)
	}

	if err := s.refreshSummary(ctx, input.BatchID); err != nil {
		return nil, fmt.Errorf("service: failed to refresh summary: %w", err)
	}

	s.enqueueMirror(event)

	return event, nil
}

// GetBatchEvents returns the batch's events in chronological (insertion)
// order. Unknown batches yield an empty slice.
func (s *LedgerService) GetBatchEvents(ctx context.Context, batchID string) ([]domain.TraceEvent, error) {
	events, err := s.store.GetBatchEvents(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to read batch events: %w", err)
	}
	return events, nil
}

// GetBatchSummary returns the cached summary, recomputing it from the event
// sequence when no cache exists yet.
func (s *LedgerService) GetBatchSummary(ctx context.Context, batchID string) (*domain.BatchSummary, error) {
	summary, err := s.store.GetSummary(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to read summary: %w", err)
	}
	if summary != nil {
		return summary, nil
	}

	s.locks.Lock(batchKey(batchID))
	defer s.locks.Unlock(batchKey(batchID))

	if err := s.refreshSummary(ctx, batchID); err != nil {
		return nil, fmt.Errorf("service: failed to derive summary: %w", err)
	}

	summary, err = s.store.GetSummary(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to read summary: %w", err)
	}
	return summary, nil
}

// VerifyEvent marks an event as vouched for by an actor of a different role.
// This is the only mutation allowed after append, and it happens at most once.
func (s *LedgerService) VerifyEvent(ctx context.Context, eventID, verifierID string, verifierRole authz.Role) (*domain.TraceEvent, error) {
	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	s.locks.Lock(batchKey(event.BatchID))
	defer s.locks.Unlock(batchKey(event.BatchID))

	// Re-read under the lock: the verified flag is compare-and-set.
	event, err = s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if verifierRole == event.ActorRole {
		return nil, fmt.Errorf("%w: events cannot be verified by the role that recorded them", ErrPermissionDenied)
	}
	if event.Verified {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyVerified, eventID)
	}

	verifiedAt := s.now().UTC()
	event.Verified = true
	event.VerifiedBy = verifierID
	event.VerifiedByRole = verifierRole
	event.VerifiedAt = &verifiedAt

	if err := s.store.UpdateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("service: failed to update event: %w", err)
	}

	if err := s.refreshSummary(ctx, event.BatchID); err != nil {
		return nil, fmt.Errorf("service: failed to refresh summary: %w", err)
	}

	return event, nil
}

// refreshSummary rebuilds the stored summary from the full event sequence.
// Callers must hold the batch lock.
func (s *LedgerService) refreshSummary(ctx context.Context, batchID string) error {
	events, err := s.store.GetBatchEvents(ctx, batchID)
	if err != nil {
		return err
	}

	summary := domain.Summarize(batchID, events)
	return s.store.SaveSummary(ctx, &summary)
}

// enqueueMirror schedules the event for best-effort external mirroring. The
// mirror record is backfilled onto the stored event when the call succeeds.
func (s *LedgerService) enqueueMirror(event *domain.TraceEvent) {
	if s.mirror == nil {
		return
	}

	eventID := event.ID
	batchID := event.BatchID

	s.mirror.EnqueueEvent(mirror.EventEntry{
		EventID:   eventID,
		BatchID:   batchID,
		EventType: string(event.Type),
		ActorRole: string(event.ActorRole),
		Timestamp: event.Timestamp,
	}, func(rec mirror.Record) {
		ctx := context.Background()

		s.locks.Lock(batchKey(batchID))
		defer s.locks.Unlock(batchKey(batchID))

		stored, err := s.store.GetEvent(ctx, eventID)
		if err != nil {
			logger.Get().Warn("Failed to load event for mirror backfill",
				zap.String("event_id", eventID),
				zap.Error(err),
			)
			return
		}

		stored.Mirror = &rec
		if err := s.store.UpdateEvent(ctx, stored); err != nil {
			logger.Get().Warn("Failed to backfill mirror record",
				zap.String("event_id", eventID),
				zap.Error(err),
			)
		}
	})
}

func batchKey(batchID string) string {
	return "batch:" + batchID
}
