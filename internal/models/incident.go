package models

import (
	"time"

	"github.com/wpmend-dev/wpmend-agent/api/server/types"
	"gorm.io/gorm"
)

type IncidentState string

const (
	IncidentStateNew           IncidentState = "NEW"
	IncidentStateDiscovery     IncidentState = "DISCOVERY"
	IncidentStateBaseline      IncidentState = "BASELINE"
	IncidentStateBackup        IncidentState = "BACKUP"
	IncidentStateObservability IncidentState = "OBSERVABILITY"
	IncidentStateFixAttempt    IncidentState = "FIX_ATTEMPT"
	IncidentStateVerify        IncidentState = "VERIFY"
	IncidentStateFixed         IncidentState = "FIXED"
	IncidentStateRollback      IncidentState = "ROLLBACK"
	IncidentStateEscalated     IncidentState = "ESCALATED"
)

// IsTerminal reports whether no further mutation is permitted on an
// incident in this state.
func (s IncidentState) IsTerminal() bool {
	return s == IncidentStateFixed || s == IncidentStateEscalated
}

type TriggerType string

const (
	TriggerTypeManual    TriggerType = "manual"
	TriggerTypeAutomatic TriggerType = "automatic"
	TriggerTypeWebhook   TriggerType = "webhook"
	TriggerTypeScheduled TriggerType = "scheduled"
)

type PriorityType string

const (
	PriorityLow      PriorityType = "low"
	PriorityMedium   PriorityType = "medium"
	PriorityHigh     PriorityType = "high"
	PriorityCritical PriorityType = "critical"
)

// DefaultMaxFixAttempts is assigned at creation when the trigger does not
// supply a cap. Caps land in [1, MaxFixAttemptCeiling] and are fixed for the
// lifetime of the incident.
const DefaultMaxFixAttempts = 15

const MaxFixAttemptCeiling = 15

type Incident struct {
	gorm.Model

	UniqueID string `gorm:"unique"`

	State       IncidentState
	TriggerType TriggerType
	Priority    PriorityType

	SiteID   uint
	ServerID uint

	FixAttempts    int
	MaxFixAttempts int

	ResolvedAt       *time.Time
	EscalatedAt      *time.Time
	EscalationReason string

	Events        []IncidentEvent      `gorm:"constraint:OnDelete:CASCADE"`
	Commands      []CommandExecution   `gorm:"constraint:OnDelete:CASCADE"`
	Evidence      []Evidence           `gorm:"constraint:OnDelete:CASCADE"`
	Backups       []BackupArtifact     `gorm:"constraint:OnDelete:CASCADE"`
	FileChanges   []FileChange         `gorm:"constraint:OnDelete:CASCADE"`
	Verifications []VerificationResult `gorm:"constraint:OnDelete:CASCADE"`
}

func NewIncident(trigger TriggerType, priority PriorityType, maxFixAttempts int) *Incident {
	randStr, _ := GenerateRandomBytes(16)

	if maxFixAttempts < 1 || maxFixAttempts > MaxFixAttemptCeiling {
		maxFixAttempts = DefaultMaxFixAttempts
	}

	return &Incident{
		UniqueID:       randStr,
		State:          IncidentStateNew,
		TriggerType:    trigger,
		Priority:       priority,
		MaxFixAttempts: maxFixAttempts,
	}
}

// AttemptsRemaining reports whether the incident may enter another fix
// attempt cycle.
func (i *Incident) AttemptsRemaining() bool {
	return i.FixAttempts < i.MaxFixAttempts
}

func (i *Incident) ToAPITypeMeta() *types.IncidentMeta {
	return &types.IncidentMeta{
		ID:               i.UniqueID,
		State:            string(i.State),
		TriggerType:      string(i.TriggerType),
		Priority:         string(i.Priority),
		FixAttempts:      i.FixAttempts,
		MaxFixAttempts:   i.MaxFixAttempts,
		CreatedAt:        i.CreatedAt,
		UpdatedAt:        i.UpdatedAt,
		ResolvedAt:       i.ResolvedAt,
		EscalatedAt:      i.EscalatedAt,
		EscalationReason: i.EscalationReason,
	}
}

func (i *Incident) ToAPIType() *types.Incident {
	incident := &types.Incident{
		IncidentMeta: i.ToAPITypeMeta(),
	}

	for _, ev := range i.Events {
		incident.Timeline = append(incident.Timeline, ev.ToAPIType())
	}

	return incident
}
