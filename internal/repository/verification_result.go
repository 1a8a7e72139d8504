package repository

import (
	"github.com/wpmend-dev/wpmend-agent/internal/models"
	"gorm.io/gorm"
)

type VerificationResultRepository struct {
	db *gorm.DB
}

// NewVerificationResultRepository returns pointer to repo along with the db
func NewVerificationResultRepository(db *gorm.DB) *VerificationResultRepository {
	return &VerificationResultRepository{db}
}

func (r *VerificationResultRepository) CreateVerificationResult(result *models.VerificationResult) (*models.VerificationResult, error) {
	if err := r.db.Create(result).Error; err != nil {
		return nil, err
	}

	return result, nil
}

func (r *VerificationResultRepository) ListVerificationResults(incidentID uint) ([]*models.VerificationResult, error) {
	var results []*models.VerificationResult

	if err := r.db.
		Where("incident_id = ?", incidentID).
		Order("id asc").
		Find(&results).Error; err != nil {
		return nil, err
	}

	return results, nil
}
