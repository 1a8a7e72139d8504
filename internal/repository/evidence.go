package repository

import (
	"github.com/wpmend-dev/wpmend-agent/internal/models"
	"github.com/wpmend-dev/wpmend-agent/internal/utils"
	"gorm.io/gorm"
)

type EvidenceRepository struct {
	db *gorm.DB
}

// NewEvidenceRepository returns pointer to repo along with the db
func NewEvidenceRepository(db *gorm.DB) *EvidenceRepository {
	return &EvidenceRepository{db}
}

func (r *EvidenceRepository) CreateEvidence(ev *models.Evidence) (*models.Evidence, error) {
	if err := r.db.Create(ev).Error; err != nil {
		return nil, err
	}

	return ev, nil
}

func (r *EvidenceRepository) ListEvidence(filter *utils.ListEvidenceFilter) ([]*models.Evidence, error) {
	var evidence []*models.Evidence

	db := r.db.Model(&models.Evidence{})

	if filter.IncidentID != nil {
		db = db.Where("incident_id = ?", *filter.IncidentID)
	}

	if filter.EvidenceType != nil {
		db = db.Where("evidence_type = ?", *filter.EvidenceType)
	}

	if err := db.Order("id asc").Find(&evidence).Error; err != nil {
		return nil, err
	}

	return evidence, nil
}
