package domain

import (
	"strings"
	"time"

	"plantain-trace/internal/core/authz"
	"plantain-trace/internal/core/mirror"
)

// EventType classifies a trace event recorded against a batch.
type EventType string

const (
	EventTypeCreated       EventType = "CREATED"
	EventTypeHarvested     EventType = "HARVESTED"
	EventTypeQualityCheck  EventType = "QUALITY_CHECK"
	EventTypeProcessed     EventType = "PROCESSED"
	EventTypePackaged      EventType = "PACKAGED"
	EventTypeShipped       EventType = "SHIPPED"
	EventTypeReceived      EventType = "RECEIVED"
	EventTypeDistributed   EventType = "DISTRIBUTED"
	EventTypeSold          EventType = "SOLD"
	EventTypeDelivered     EventType = "DELIVERED"
	EventTypeFeedback      EventType = "FEEDBACK"
	EventTypeIssueReported EventType = "ISSUE_REPORTED"
	EventTypeCustom        EventType = "CUSTOM"
)

var eventTypes = map[EventType]bool{
	EventTypeCreated:       true,
	EventTypeHarvested:     true,
	EventTypeQualityCheck:  true,
	EventTypeProcessed:     true,
	EventTypePackaged:      true,
	EventTypeShipped:       true,
	EventTypeReceived:      true,
	EventTypeDistributed:   true,
	EventTypeSold:          true,
	EventTypeDelivered:     true,
	EventTypeFeedback:      true,
	EventTypeIssueReported: true,
	EventTypeCustom:        true,
}

// ParseEventType converts a string into an EventType, case-insensitively.
// Returns false when the type is unknown.
func ParseEventType(s string) (EventType, bool) {
	et := EventType(strings.ToUpper(s))
	return et, eventTypes[et]
}

// TraceEvent is one immutable fact recorded against a batch. Once appended,
// only the verification fields may change, exactly once.
type TraceEvent struct {
	// ID is the unique identifier for the event.
	ID string `json:"event_id"`
	// BatchID identifies the batch the event belongs to.
	BatchID string `json:"batch_id"`
	// Type classifies the event.
	Type EventType `json:"event_type"`
	// ActorID is the user who recorded the event.
	ActorID string `json:"actor_id"`
	// ActorRole is the custodial role the actor held when recording.
	ActorRole authz.Role `json:"actor_role"`
	// ActorName is the actor's display name at the time of recording.
	ActorName string `json:"actor_name,omitempty"`
	// Timestamp is when the event was recorded.
	Timestamp time.Time `json:"timestamp"`
	// Location is where the event happened.
	Location string `json:"location,omitempty"`
	// Description is the human-readable account of the event.
	Description string `json:"description"`
	// Details holds event-type-specific key/value data.
	Details map[string]string `json:"details,omitempty"`
	// Attachments lists references to supporting binary evidence.
	Attachments []string `json:"attachments,omitempty"`

	// Verified reports whether another role has vouched for this event.
	Verified bool `json:"verified"`
	// VerifiedBy is the user who verified the event.
	VerifiedBy string `json:"verified_by,omitempty"`
	// VerifiedByRole is the verifier's role; it always differs from ActorRole.
	VerifiedByRole authz.Role `json:"verified_by_role,omitempty"`
	// VerifiedAt is when the event was verified.
	VerifiedAt *time.Time `json:"verified_at,omitempty"`

	// Mirror is the external ledger cross-reference, once mirrored.
	Mirror *mirror.Record `json:"mirror,omitempty"`
}
