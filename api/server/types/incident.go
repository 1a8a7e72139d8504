package types

import "time"

type IncidentMeta struct {
	ID          string `json:"id"`
	State       string `json:"state"`
	TriggerType string `json:"trigger_type"`
	Priority    string `json:"priority"`

	SiteDomain string `json:"site_domain,omitempty"`
	ServerName string `json:"server_name,omitempty"`

	FixAttempts    int `json:"fix_attempts"`
	MaxFixAttempts int `json:"max_fix_attempts"`

	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
	EscalatedAt      *time.Time `json:"escalated_at,omitempty"`
	EscalationReason string     `json:"escalation_reason,omitempty"`
}

type Incident struct {
	*IncidentMeta

	Timeline []*IncidentEvent `json:"timeline"`
}

type PaginationRequest struct {
	Page uint `schema:"page"`
}

type PaginationResponse struct {
	NumPages    uint `json:"num_pages"`
	CurrentPage uint `json:"current_page"`
	NextPage    uint `json:"next_page"`
}

type ListIncidentsRequest struct {
	*PaginationRequest

	State      *string `schema:"state"`
	SiteDomain *string `schema:"site_domain"`
	ServerName *string `schema:"server_name"`
}

type ListIncidentsResponse struct {
	Incidents  []*IncidentMeta     `json:"incidents"`
	Pagination *PaginationResponse `json:"pagination"`
}
