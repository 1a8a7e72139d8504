package models

import (
	"time"

	"github.com/wpmend-dev/wpmend-agent/api/server/types"
	"gorm.io/gorm"
)

type EventType string

const (
	EventTypePhaseStarted   EventType = "phase_started"
	EventTypePhaseCompleted EventType = "phase_completed"
	EventTypePhaseFailed    EventType = "phase_failed"
	EventTypeTransition     EventType = "transition"
	EventTypeFixAttempt     EventType = "fix_attempt"
	EventTypeVerification   EventType = "verification"
	EventTypeEscalation     EventType = "escalation"
)

// IncidentEvent is a single append-only timeline entry. Events are never
// mutated or deleted; every state transition writes exactly one.
type IncidentEvent struct {
	gorm.Model

	UniqueID   string `gorm:"unique"`
	IncidentID uint

	EventType EventType

	// Phase is the incident state at the time the event was recorded.
	Phase IncidentState

	// Step is a short human-readable description of what happened.
	Step string

	// Data carries a structured JSON payload specific to the event type.
	Data []byte

	// DurationMillis is set for events that close out timed work.
	DurationMillis *int64

	Timestamp *time.Time
}

func NewIncidentEvent(incidentID uint, eventType EventType, phase IncidentState, step string) *IncidentEvent {
	randStr, _ := GenerateRandomBytes(16)
	now := time.Now()

	return &IncidentEvent{
		UniqueID:   randStr,
		IncidentID: incidentID,
		EventType:  eventType,
		Phase:      phase,
		Step:       step,
		Timestamp:  &now,
	}
}

func (e *IncidentEvent) ToAPIType() *types.IncidentEvent {
	return &types.IncidentEvent{
		ID:             e.UniqueID,
		EventType:      string(e.EventType),
		Phase:          string(e.Phase),
		Step:           e.Step,
		Data:           e.Data,
		DurationMillis: e.DurationMillis,
		Timestamp:      e.Timestamp,
	}
}
