package domain

import (
	"sort"
	"time"

	"plantain-trace/internal/core/authz"
)

// Stage is the furthest canonical lifecycle milestone a batch has reached.
type Stage string

const (
	StageUnknown     Stage = "UNKNOWN"
	StageCreated     Stage = "CREATED"
	StageHarvested   Stage = "HARVESTED"
	StageProcessed   Stage = "PROCESSED"
	StageDistributed Stage = "DISTRIBUTED"
	StageSold        Stage = "SOLD"
	StageDelivered   Stage = "DELIVERED"
)

// stageIndex maps the event types that advance the lifecycle to their
// position in the canonical stage order. Higher index wins.
var stageIndex = map[EventType]int{
	EventTypeCreated:     0,
	EventTypeHarvested:   1,
	EventTypeProcessed:   2,
	EventTypeDistributed: 3,
	EventTypeSold:        4,
	EventTypeDelivered:   5,
}

var stageByIndex = []Stage{
	StageCreated,
	StageHarvested,
	StageProcessed,
	StageDistributed,
	StageSold,
	StageDelivered,
}

// CurrentStage returns the highest-indexed canonical stage present anywhere
// in the event sequence. The stage never regresses: a late event of an
// earlier-indexed type does not roll it back. With no stage-bearing events
// it returns StageUnknown.
func CurrentStage(events []TraceEvent) Stage {
	best := -1
	for _, ev := range events {
		if idx, ok := stageIndex[ev.Type]; ok && idx > best {
			best = idx
		}
	}

	if best < 0 {
		return StageUnknown
	}
	return stageByIndex[best]
}

// BatchSummary is the derived rollup of a batch's event sequence. It is a
// cache only: Summarize over the full ordered event list is the source of
// truth and the stored copy must never diverge from it.
type BatchSummary struct {
	// BatchID identifies the batch.
	BatchID string `json:"batch_id"`
	// TotalEvents is the number of events recorded for the batch.
	TotalEvents int `json:"total_events"`
	// CurrentStage is the furthest canonical stage reached.
	CurrentStage Stage `json:"current_stage"`
	// ParticipatingRoles lists the distinct roles that recorded events.
	ParticipatingRoles []authz.Role `json:"participating_roles"`
	// QualityCheckCount is the number of quality check events.
	QualityCheckCount int `json:"quality_check_count"`
	// VerifiedCount is the number of cross-role verified events.
	VerifiedCount int `json:"verified_count"`
	// IssueCount is the number of reported issues.
	IssueCount int `json:"issue_count"`
	// LastUpdated is the timestamp of the most recent event.
	LastUpdated time.Time `json:"last_updated"`
}

// Summarize derives the batch rollup from the ordered event sequence.
func Summarize(batchID string, events []TraceEvent) BatchSummary {
	summary := BatchSummary{
		BatchID:            batchID,
		TotalEvents:        len(events),
		CurrentStage:       CurrentStage(events),
		ParticipatingRoles: []authz.Role{},
	}

	roles := map[authz.Role]bool{}
	for _, ev := range events {
		roles[ev.ActorRole] = true

		switch ev.Type {
		case EventTypeQualityCheck:
			summary.QualityCheckCount++
		case EventTypeIssueReported:
			summary.IssueCount++
		}

		if ev.Verified {
			summary.VerifiedCount++
		}
		if ev.Timestamp.After(summary.LastUpdated) {
			summary.LastUpdated = ev.Timestamp
		}
	}

	for role := range roles {
		summary.ParticipatingRoles = append(summary.ParticipatingRoles, role)
	}
	sort.Slice(summary.ParticipatingRoles, func(i, j int) bool {
		return summary.ParticipatingRoles[i] < summary.ParticipatingRoles[j]
	})

	return summary
}
