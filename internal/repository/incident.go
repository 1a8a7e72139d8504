package repository

import (
	"time"

	"github.com/wpmend-dev/wpmend-agent/internal/models"
	"github.com/wpmend-dev/wpmend-agent/internal/utils"
	"gorm.io/gorm"
)

type IncidentRepository struct {
	db *gorm.DB
}

// NewIncidentRepository returns pointer to repo along with the db
func NewIncidentRepository(db *gorm.DB) *IncidentRepository {
	return &IncidentRepository{db}
}

func (r *IncidentRepository) CreateIncident(incident *models.Incident) (*models.Incident, error) {
	if err := r.db.Create(incident).Error; err != nil {
		return nil, err
	}

	return incident, nil
}

func (r *IncidentRepository) ReadIncident(uid string) (*models.Incident, error) {
	incident := &models.Incident{}

	if err := r.db.Preload("Events").Where("unique_id = ?", uid).First(incident).Error; err != nil {
		return nil, err
	}

	return incident, nil
}

// SaveIncidentState persists a state mutation together with its timeline
// event in a single transaction, so an incident is never observed in a state
// with no matching event.
func (r *IncidentRepository) SaveIncidentState(incident *models.Incident, event *models.IncidentEvent) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Events", "Commands", "Evidence", "Backups", "FileChanges", "Verifications").
			Save(incident).Error; err != nil {
			return err
		}

		event.IncidentID = incident.ID

		return tx.Create(event).Error
	})
}

func (r *IncidentRepository) ListIncidents(
	filter *utils.ListIncidentsFilter,
	opts ...utils.QueryOption,
) ([]*models.Incident, *utils.PaginatedResult, error) {
	var incidents []*models.Incident

	db := r.db.Model(&models.Incident{})

	if filter.State != nil {
		db = db.Where("state = ?", *filter.State)
	}

	if filter.SiteID != nil {
		db = db.Where("site_id = ?", *filter.SiteID)
	}

	if filter.ServerID != nil {
		db = db.Where("server_id = ?", *filter.ServerID)
	}

	paginatedResult := &utils.PaginatedResult{}

	db = db.Scopes(utils.Paginate(opts, db, paginatedResult))

	if err := db.Find(&incidents).Error; err != nil {
		return nil, nil, err
	}

	return incidents, paginatedResult, nil
}

// ListTerminalIncidentsBefore returns up to limit incidents that reached a
// terminal state before the cutoff, oldest first. Used by the retention
// sweeper.
func (r *IncidentRepository) ListTerminalIncidentsBefore(cutoff time.Time, limit int) ([]*models.Incident, error) {
	var incidents []*models.Incident

	if err := r.db.
		Where("state IN ?", []models.IncidentState{models.IncidentStateFixed, models.IncidentStateEscalated}).
		Where("updated_at < ?", cutoff).
		Order("updated_at asc").
		Limit(limit).
		Find(&incidents).Error; err != nil {
		return nil, err
	}

	return incidents, nil
}

func (r *IncidentRepository) DeleteIncident(uid string) error {
	incident := &models.Incident{}

	if err := r.db.Where("unique_id = ?", uid).First(incident).Error; err != nil {
		return err
	}

	return r.db.Select(
		"Events", "Commands", "Evidence", "Backups", "FileChanges", "Verifications",
	).Delete(incident).Error
}
