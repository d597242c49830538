package service

import (
	"context"
	"testing"
	"time"

	"plantain-trace/internal/core/authz"
	"plantain-trace/internal/core/mirror"
	"plantain-trace/internal/features/traceability/adapters"
	"plantain-trace/internal/features/traceability/domain"
	"plantain-trace/internal/features/traceability/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockMirrorQueue records enqueued entries and lets tests fire callbacks
// after the append has released its locks, like the real dispatcher does.
type mockMirrorQueue struct {
	entries   []mirror.EventEntry
	callbacks []func(mirror.Record)
}

func (m *mockMirrorQueue) EnqueueEvent(entry mirror.EventEntry, onDone func(mirror.Record)) {
	m.entries = append(m.entries, entry)
	m.callbacks = append(m.callbacks, onDone)
}

func newTestService() (*LedgerService, *adapters.MemoryEventStore, *mockMirrorQueue) {
	store := adapters.NewMemoryEventStore()
	queue := &mockMirrorQueue{}
	svc := NewLedgerService(store, authz.NewPolicy(), queue)
	return svc, store, queue
}

func appendOK(t *testing.T, svc *LedgerService, batchID, actorID string, role authz.Role, eventType string) *domain.TraceEvent {
	t.Helper()

	ev, err := svc.AppendEvent(context.Background(), actorID, role, AppendEventInput{
		BatchID:     batchID,
		EventType:   eventType,
		Description: eventType + " recorded",
	})
	require.NoError(t, err)
	return ev
}

// TestAppendEvent_Success verifies a permitted append lands in the ledger and
// updates the summary.
func TestAppendEvent_Success(t *testing.T) {
	svc, _, queue := newTestService()
	ctx := context.Background()

	ev, err := svc.AppendEvent(ctx, "farmer-1", authz.RoleFarmer, AppendEventInput{
		BatchID:     "B1",
		EventType:   "created",
		ActorName:   "Finca La Esperanza",
		Location:    "Quindío",
		Description: "Batch registered at origin",
		Details:     map[string]string{"variety": "Dominico Hartón"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, domain.EventTypeCreated, ev.Type)
	assert.Equal(t, authz.RoleFarmer, ev.ActorRole)
	assert.False(t, ev.Verified)

	events, err := svc.GetBatchEvents(ctx, "B1")
	require.NoError(t, err)
	require.Len(t, events, 1)

	summary, err := svc.GetBatchSummary(ctx, "B1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalEvents)
	assert.Equal(t, domain.StageCreated, summary.CurrentStage)

	require.Len(t, queue.entries, 1)
	assert.Equal(t, ev.ID, queue.entries[0].EventID)
}

// TestAppendEvent_PermissionDenied verifies the matrix is enforced and the
// ledger is left unchanged.
func TestAppendEvent_PermissionDenied(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	appendOK(t, svc, "B1", "farmer-1", authz.RoleFarmer, "CREATED")

	_, err := svc.AppendEvent(ctx, "proc-1", authz.RoleProcessor, AppendEventInput{
		BatchID:     "B1",
		EventType:   "HARVESTED",
		Description: "attempted harvest record",
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	events, err := svc.GetBatchEvents(ctx, "B1")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

// TestAppendEvent_Validation verifies empty descriptions and unknown types fail.
func TestAppendEvent_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.AppendEvent(ctx, "farmer-1", authz.RoleFarmer, AppendEventInput{
		BatchID:   "B1",
		EventType: "CREATED",
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.AppendEvent(ctx, "farmer-1", authz.RoleFarmer, AppendEventInput{
		BatchID:     "B1",
		EventType:   "TELEPORTED",
		Description: "impossible",
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.AppendEvent(ctx, "farmer-1", authz.RoleFarmer, AppendEventInput{
		EventType:   "CREATED",
		Description: "no batch",
	})
	assert.ErrorIs(t, err, ErrValidation)

	events, err := svc.GetBatchEvents(ctx, "B1")
	require.NoError(t, err)
	assert.Empty(t, events)
}

// TestAppendEvent_AppendOnly verifies earlier reads are a prefix of later reads.
func TestAppendEvent_AppendOnly(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	appendOK(t, svc, "B1", "farmer-1", authz.RoleFarmer, "CREATED")
	appendOK(t, svc, "B1", "farmer-1", authz.RoleFarmer, "HARVESTED")

	before, err := svc.GetBatchEvents(ctx, "B1")
	require.NoError(t, err)

	appendOK(t, svc, "B1", "farmer-1", authz.RoleFarmer, "QUALITY_CHECK")

	after, err := svc.GetBatchEvents(ctx, "B1")
	require.NoError(t, err)

	require.Len(t, after, 3)
	for i, ev := range before {
		assert.Equal(t, ev.ID, after[i].ID)
		assert.Equal(t, ev.Type, after[i].Type)
	}
}

// TestLedger_SupplyChainScenario walks a batch through the four roles.
func TestLedger_SupplyChainScenario(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	appendOK(t, svc, "B1", "farmer-1", authz.RoleFarmer, "CREATED")
	appendOK(t, svc, "B1", "farmer-1", authz.RoleFarmer, "HARVESTED")

	// Wrong role for this event type.
	_, err := svc.AppendEvent(ctx, "proc-1", authz.RoleProcessor, AppendEventInput{
		BatchID:     "B1",
		EventType:   "HARVESTED",
		Description: "bogus",
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	appendOK(t, svc, "B1", "proc-1", authz.RoleProcessor, "RECEIVED")
	appendOK(t, svc, "B1", "proc-1", authz.RoleProcessor, "PROCESSED")

	summary, err := svc.GetBatchSummary(ctx, "B1")
	require.NoError(t, err)
	assert.Equal(t, domain.StageProcessed, summary.CurrentStage)

	appendOK(t, svc, "B1", "dist-1", authz.RoleDistributor, "DISTRIBUTED")

	summary, err = svc.GetBatchSummary(ctx, "B1")
	require.NoError(t, err)
	assert.Equal(t, domain.StageDistributed, summary.CurrentStage)
	assert.Equal(t, []authz.Role{authz.RoleDistributor, authz.RoleFarmer, authz.RoleProcessor}, summary.ParticipatingRoles)
}

// TestVerifyEvent_Success verifies cross-role verification sets the fields once.
func TestVerifyEvent_Success(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	ev := appendOK(t, svc, "B1", "farmer-1", authz.RoleFarmer, "HARVESTED")

	verified, err := svc.VerifyEvent(ctx, ev.ID, "proc-1", authz.RoleProcessor)
	require.NoError(t, err)

	assert.True(t, verified.Verified)
	assert.Equal(t, "proc-1", verified.VerifiedBy)
	assert.Equal(t, authz.RoleProcessor, verified.VerifiedByRole)
	require.NotNil(t, verified.VerifiedAt)

	summary, err := svc.GetBatchSummary(ctx, "B1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.VerifiedCount)
}

// TestVerifyEvent_SelfVerificationForbidden verifies same-role verification fails.
func TestVerifyEvent_SelfVerificationForbidden(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	ev := appendOK(t, svc, "B1", "farmer-1", authz.RoleFarmer, "HARVESTED")

	_, err := svc.VerifyEvent(ctx, ev.ID, "farmer-2", authz.RoleFarmer)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	events, err := svc.GetBatchEvents(ctx, "B1")
	require.NoError(t, err)
	assert.False(t, events[0].Verified)
}

// TestVerifyEvent_Twice verifies double verification is an error, not a no-op.
func TestVerifyEvent_Twice(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	ev := appendOK(t, svc, "B1", "farmer-1", authz.RoleFarmer, "HARVESTED")

	_, err := svc.VerifyEvent(ctx, ev.ID, "proc-1", authz.RoleProcessor)
	require.NoError(t, err)

	_, err = svc.VerifyEvent(ctx, ev.ID, "dist-1", authz.RoleDistributor)
	assert.ErrorIs(t, err, ErrAlreadyVerified)

	events, err := svc.GetBatchEvents(ctx, "B1")
	require.NoError(t, err)
	assert.Equal(t, "proc-1", events[0].VerifiedBy)
}

// TestVerifyEvent_NotFound verifies unknown event IDs surface as not found.
func TestVerifyEvent_NotFound(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.VerifyEvent(context.Background(), "ghost", "proc-1", authz.RoleProcessor)
	assert.ErrorIs(t, err, ports.ErrEventNotFound)
}

// TestMirrorBackfill verifies the mirror record lands on the stored event
// after the dispatcher acknowledges, without blocking the append.
func TestMirrorBackfill(t *testing.T) {
	svc, _, queue := newTestService()
	ctx := context.Background()

	ev := appendOK(t, svc, "B1", "farmer-1", authz.RoleFarmer, "CREATED")
	require.Len(t, queue.callbacks, 1)

	// Simulate the dispatcher completing after the local commit.
	queue.callbacks[0](mirror.Record{
		TxRef:      "0xabc",
		URL:        "https://scan.example/tx/0xabc",
		RecordedAt: time.Now(),
	})

	events, err := svc.GetBatchEvents(ctx, "B1")
	require.NoError(t, err)
	require.NotNil(t, events[0].Mirror)
	assert.Equal(t, "0xabc", events[0].Mirror.TxRef)
	assert.Equal(t, ev.ID, events[0].ID)
}

// TestGetBatchSummary_MatchesFreshProjection verifies the cache never
// diverges from a fresh projection over the ledger.
func TestGetBatchSummary_MatchesFreshProjection(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	appendOK(t, svc, "B1", "farmer-1", authz.RoleFarmer, "CREATED")
	appendOK(t, svc, "B1", "farmer-1", authz.RoleFarmer, "QUALITY_CHECK")
	ev := appendOK(t, svc, "B1", "farmer-1", authz.RoleFarmer, "HARVESTED")
	_, err := svc.VerifyEvent(ctx, ev.ID, "proc-1", authz.RoleProcessor)
	require.NoError(t, err)

	cached, err := svc.GetBatchSummary(ctx, "B1")
	require.NoError(t, err)

	events, err := svc.GetBatchEvents(ctx, "B1")
	require.NoError(t, err)
	fresh := domain.Summarize("B1", events)

	assert.Equal(t, fresh, *cached)
}

// TestGetBatchSummary_EmptyBatch verifies summaries exist even for unknown batches.
func TestGetBatchSummary_EmptyBatch(t *testing.T) {
	svc, _, _ := newTestService()

	summary, err := svc.GetBatchSummary(context.Background(), "nope")
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, 0, summary.TotalEvents)
	assert.Equal(t, domain.StageUnknown, summary.CurrentStage)
}
