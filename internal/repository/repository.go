package repository

import "gorm.io/gorm"

type Repository struct {
	DB *gorm.DB

	Incident         *IncidentRepository
	IncidentEvent    *IncidentEventRepository
	CommandExecution *CommandExecutionRepository
	Evidence         *EvidenceRepository
	BackupArtifact   *BackupArtifactRepository
	FileChange       *FileChangeRepository
	Verification     *VerificationResultRepository
	Server           *ServerRepository
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		DB:               db,
		Incident:         NewIncidentRepository(db),
		IncidentEvent:    NewIncidentEventRepository(db),
		CommandExecution: NewCommandExecutionRepository(db),
		Evidence:         NewEvidenceRepository(db),
		BackupArtifact:   NewBackupArtifactRepository(db),
		FileChange:       NewFileChangeRepository(db),
		Verification:     NewVerificationResultRepository(db),
		Server:           NewServerRepository(db),
	}
}
