package repository

import (
	"github.com/wpmend-dev/wpmend-agent/internal/models"
	"github.com/wpmend-dev/wpmend-agent/internal/utils"
	"gorm.io/gorm"
)

type IncidentEventRepository struct {
	db *gorm.DB
}

// NewIncidentEventRepository returns pointer to repo along with the db
func NewIncidentEventRepository(db *gorm.DB) *IncidentEventRepository {
	return &IncidentEventRepository{db}
}

func (r *IncidentEventRepository) CreateEvent(event *models.IncidentEvent) (*models.IncidentEvent, error) {
	if err := r.db.Create(event).Error; err != nil {
		return nil, err
	}

	return event, nil
}

func (r *IncidentEventRepository) ListEvents(
	filter *utils.ListTimelineFilter,
	opts ...utils.QueryOption,
) ([]*models.IncidentEvent, *utils.PaginatedResult, error) {
	var events []*models.IncidentEvent

	db := r.db.Model(&models.IncidentEvent{})

	if filter.IncidentID != nil {
		db = db.Where("incident_id = ?", *filter.IncidentID)
	}

	if filter.EventType != nil {
		db = db.Where("event_type = ?", *filter.EventType)
	}

	if filter.Phase != nil {
		db = db.Where("phase = ?", *filter.Phase)
	}

	paginatedResult := &utils.PaginatedResult{}

	db = db.Scopes(utils.Paginate(opts, db, paginatedResult))

	if err := db.Find(&events).Error; err != nil {
		return nil, nil, err
	}

	return events, paginatedResult, nil
}

// LatestEventForPhase returns the most recent event recorded for the given
// incident and phase, or gorm.ErrRecordNotFound. The orchestrator uses it to
// decide whether phase work was already durably completed before a crash.
func (r *IncidentEventRepository) LatestEventForPhase(incidentID uint, phase models.IncidentState) (*models.IncidentEvent, error) {
	event := &models.IncidentEvent{}

	if err := r.db.
		Where("incident_id = ? AND phase = ?", incidentID, phase).
		Order("id desc").
		First(event).Error; err != nil {
		return nil, err
	}

	return event, nil
}
