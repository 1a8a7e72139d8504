package models

import (
	"time"

	"gorm.io/gorm"
)

type EvidenceType string

const (
	EvidenceTypePageContent   EvidenceType = "page_content"
	EvidenceTypeHTTPStatus    EvidenceType = "http_status"
	EvidenceTypeErrorLog      EvidenceType = "error_log"
	EvidenceTypeProcessList   EvidenceType = "process_list"
	EvidenceTypeDiskUsage     EvidenceType = "disk_usage"
	EvidenceTypeEnvironment   EvidenceType = "environment"
	EvidenceTypeConfigSnippet EvidenceType = "config_snippet"
)

// Evidence is a captured diagnostic artifact. The checksum allows forensic
// comparison of the same artifact across phases, e.g. page content before and
// after a fix attempt.
type Evidence struct {
	gorm.Model

	UniqueID   string `gorm:"unique"`
	IncidentID uint

	EvidenceType EvidenceType
	Content      string
	Checksum     string
	Metadata     []byte

	Timestamp *time.Time
}
