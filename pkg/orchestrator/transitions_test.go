package orchestrator

import (
	"testing"

	"github.com/wpmend-dev/wpmend-agent/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionLegalEdges(t *testing.T) {
	legal := [][2]models.IncidentState{
		{models.IncidentStateNew, models.IncidentStateDiscovery},
		{models.IncidentStateDiscovery, models.IncidentStateBaseline},
		{models.IncidentStateBaseline, models.IncidentStateBackup},
		{models.IncidentStateBackup, models.IncidentStateObservability},
		{models.IncidentStateObservability, models.IncidentStateFixAttempt},
		{models.IncidentStateFixAttempt, models.IncidentStateVerify},
		{models.IncidentStateVerify, models.IncidentStateFixed},
		{models.IncidentStateVerify, models.IncidentStateFixAttempt},
		{models.IncidentStateVerify, models.IncidentStateRollback},
		{models.IncidentStateRollback, models.IncidentStateEscalated},
		{models.IncidentStateFixAttempt, models.IncidentStateEscalated},
	}

	for _, edge := range legal {
		assert.True(t, CanTransition(edge[0], edge[1]), "%s -> %s must be legal", edge[0], edge[1])
	}
}

func TestCanTransitionRejectsIllegalEdges(t *testing.T) {
	illegal := [][2]models.IncidentState{
		{models.IncidentStateNew, models.IncidentStateFixAttempt},
		{models.IncidentStateNew, models.IncidentStateFixed},
		{models.IncidentStateDiscovery, models.IncidentStateBackup},
		{models.IncidentStateBackup, models.IncidentStateFixAttempt},
		{models.IncidentStateVerify, models.IncidentStateDiscovery},
		{models.IncidentStateRollback, models.IncidentStateFixAttempt},
		{models.IncidentStateFixed, models.IncidentStateDiscovery},
		{models.IncidentStateFixed, models.IncidentStateEscalated},
		{models.IncidentStateEscalated, models.IncidentStateNew},
		{models.IncidentStateEscalated, models.IncidentStateFixed},
	}

	for _, edge := range illegal {
		assert.False(t, CanTransition(edge[0], edge[1]), "%s -> %s must be rejected", edge[0], edge[1])
	}
}

func TestTerminalStatesHaveNoOutgoingEdges(t *testing.T) {
	all := []models.IncidentState{
		models.IncidentStateNew,
		models.IncidentStateDiscovery,
		models.IncidentStateBaseline,
		models.IncidentStateBackup,
		models.IncidentStateObservability,
		models.IncidentStateFixAttempt,
		models.IncidentStateVerify,
		models.IncidentStateFixed,
		models.IncidentStateRollback,
		models.IncidentStateEscalated,
	}

	for _, to := range all {
		assert.False(t, CanTransition(models.IncidentStateFixed, to))
		assert.False(t, CanTransition(models.IncidentStateEscalated, to))
	}
}
