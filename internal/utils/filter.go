package utils

import "github.com/wpmend-dev/wpmend-agent/internal/models"

type ListIncidentsFilter struct {
	State    *models.IncidentState
	SiteID   *uint
	ServerID *uint
}

type ListTimelineFilter struct {
	IncidentID *uint
	EventType  *models.EventType
	Phase      *models.IncidentState
}

type ListBackupsFilter struct {
	IncidentID   *uint
	OriginalPath *string
}

type ListEvidenceFilter struct {
	IncidentID   *uint
	EvidenceType *models.EvidenceType
}
