package models

import (
	"time"

	"gorm.io/gorm"
)

// CommandExecution records one remote command run for audit. The command
// text is stored post-sanitization and stdout/stderr are stored redacted, so
// records never carry secret material.
type CommandExecution struct {
	gorm.Model

	UniqueID   string `gorm:"unique"`
	IncidentID uint
	ServerID   uint

	Command  string
	ExitCode int
	Stdout   string
	Stderr   string

	DurationMillis int64

	Timestamp *time.Time
}
