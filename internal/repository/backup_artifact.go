package repository

import (
	"github.com/wpmend-dev/wpmend-agent/internal/models"
	"github.com/wpmend-dev/wpmend-agent/internal/utils"
	"gorm.io/gorm"
)

type BackupArtifactRepository struct {
	db *gorm.DB
}

// NewBackupArtifactRepository returns pointer to repo along with the db
func NewBackupArtifactRepository(db *gorm.DB) *BackupArtifactRepository {
	return &BackupArtifactRepository{db}
}

func (r *BackupArtifactRepository) CreateBackupArtifact(backup *models.BackupArtifact) (*models.BackupArtifact, error) {
	if err := r.db.Create(backup).Error; err != nil {
		return nil, err
	}

	return backup, nil
}

func (r *BackupArtifactRepository) ListBackupArtifacts(filter *utils.ListBackupsFilter) ([]*models.BackupArtifact, error) {
	var backups []*models.BackupArtifact

	db := r.db.Model(&models.BackupArtifact{})

	if filter.IncidentID != nil {
		db = db.Where("incident_id = ?", *filter.IncidentID)
	}

	if filter.OriginalPath != nil {
		db = db.Where("original_path = ?", *filter.OriginalPath)
	}

	if err := db.Order("id asc").Find(&backups).Error; err != nil {
		return nil, err
	}

	return backups, nil
}

func (r *BackupArtifactRepository) CountBackupArtifacts(incidentID uint) (int64, error) {
	var count int64

	if err := r.db.Model(&models.BackupArtifact{}).
		Where("incident_id = ?", incidentID).
		Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}
