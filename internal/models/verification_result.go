package models

import (
	"time"

	"gorm.io/gorm"
)

// VerificationResult is the outcome of one post-fix check.
type VerificationResult struct {
	gorm.Model

	UniqueID   string `gorm:"unique"`
	IncidentID uint

	Passed bool
	Reason string
	Detail []byte

	// Attempt is the fix attempt number this verification closed out.
	Attempt int

	Timestamp *time.Time
}
