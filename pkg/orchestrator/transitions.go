package orchestrator

import (
	"github.com/wpmend-dev/wpmend-agent/internal/models"
)

// legalTransitions is the complete edge set of the incident state machine.
// Any requested transition outside it fails with InvalidTransition. FIXED
// and ESCALATED have no outgoing edges.
var legalTransitions = map[models.IncidentState][]models.IncidentState{
	models.IncidentStateNew:           {models.IncidentStateDiscovery},
	models.IncidentStateDiscovery:     {models.IncidentStateBaseline},
	models.IncidentStateBaseline:      {models.IncidentStateBackup},
	models.IncidentStateBackup:        {models.IncidentStateObservability},
	models.IncidentStateObservability: {models.IncidentStateFixAttempt},
	models.IncidentStateFixAttempt:    {models.IncidentStateVerify, models.IncidentStateEscalated},
	models.IncidentStateVerify:        {models.IncidentStateFixed, models.IncidentStateFixAttempt, models.IncidentStateRollback},
	models.IncidentStateRollback:      {models.IncidentStateEscalated},
}

// CanTransition reports whether from → to is a legal edge.
func CanTransition(from, to models.IncidentState) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}

	return false
}
