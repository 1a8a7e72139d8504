package repository

import (
	"github.com/wpmend-dev/wpmend-agent/internal/models"
	"gorm.io/gorm"
)

func AutoMigrate(db *gorm.DB, debug bool) error {
	instanceDB := db

	if debug {
		instanceDB = instanceDB.Debug()
	}

	return instanceDB.AutoMigrate(
		&models.Incident{},
		&models.IncidentEvent{},
		&models.CommandExecution{},
		&models.Evidence{},
		&models.BackupArtifact{},
		&models.FileChange{},
		&models.VerificationResult{},
		&models.Server{},
		&models.Site{},
	)
}
