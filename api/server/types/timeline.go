package types

import "time"

type IncidentEvent struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Phase     string `json:"phase"`
	Step      string `json:"step"`

	Data []byte `json:"data,omitempty"`

	DurationMillis *int64     `json:"duration_ms,omitempty"`
	Timestamp      *time.Time `json:"timestamp"`
}

type ListTimelineRequest struct {
	*PaginationRequest

	EventType *string `schema:"event_type"`
	Phase     *string `schema:"phase"`
}

type ListTimelineResponse struct {
	Events     []*IncidentEvent    `json:"events"`
	Pagination *PaginationResponse `json:"pagination"`
}
