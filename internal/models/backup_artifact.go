package models

import (
	"time"

	"gorm.io/gorm"
)

type ArtifactType string

const (
	ArtifactTypeFile      ArtifactType = "file"
	ArtifactTypeDirectory ArtifactType = "directory"
	ArtifactTypeDatabase  ArtifactType = "database"
	ArtifactTypeConfig    ArtifactType = "config"
)

// BackupArtifact is a restorable unit captured before a fix attempt touches
// the target. At least one must exist before a fix attempt is permitted.
type BackupArtifact struct {
	gorm.Model

	UniqueID   string `gorm:"unique"`
	IncidentID uint

	ArtifactType ArtifactType
	OriginalPath string
	StoredPath   string
	Checksum     string
	SizeBytes    int64

	Timestamp *time.Time
}
