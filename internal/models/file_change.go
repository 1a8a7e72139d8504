package models

import (
	"time"

	"gorm.io/gorm"
)

type ChangeType string

const (
	ChangeTypeModified ChangeType = "modified"
	ChangeTypeCreated  ChangeType = "created"
	ChangeTypeDeleted  ChangeType = "deleted"
	ChangeTypeMode     ChangeType = "mode"
)

// FileChange records one filesystem mutation made by a fix attempt. The
// recorded set determines what a rollback must revert.
type FileChange struct {
	gorm.Model

	UniqueID   string `gorm:"unique"`
	IncidentID uint

	Path       string
	ChangeType ChangeType

	// Checksum is the content hash of the file after the change, used to
	// detect whether the fix altered anything at all.
	Checksum string

	Timestamp *time.Time
}
