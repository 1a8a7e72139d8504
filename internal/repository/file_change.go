package repository

import (
	"github.com/wpmend-dev/wpmend-agent/internal/models"
	"gorm.io/gorm"
)

type FileChangeRepository struct {
	db *gorm.DB
}

// NewFileChangeRepository returns pointer to repo along with the db
func NewFileChangeRepository(db *gorm.DB) *FileChangeRepository {
	return &FileChangeRepository{db}
}

func (r *FileChangeRepository) CreateFileChange(change *models.FileChange) (*models.FileChange, error) {
	if err := r.db.Create(change).Error; err != nil {
		return nil, err
	}

	return change, nil
}

func (r *FileChangeRepository) ListFileChanges(incidentID uint) ([]*models.FileChange, error) {
	var changes []*models.FileChange

	if err := r.db.
		Where("incident_id = ?", incidentID).
		Order("id asc").
		Find(&changes).Error; err != nil {
		return nil, err
	}

	return changes, nil
}
