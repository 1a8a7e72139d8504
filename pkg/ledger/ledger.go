// Package ledger is the write-once record of everything the engine did to an
// incident, and the authority for computing a rollback plan.
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/wpmend-dev/wpmend-agent/internal/logger"
	"github.com/wpmend-dev/wpmend-agent/internal/models"
	"github.com/wpmend-dev/wpmend-agent/internal/repository"
	"github.com/wpmend-dev/wpmend-agent/internal/utils"
	sherrors "github.com/wpmend-dev/wpmend-agent/pkg/errors"
	"github.com/wpmend-dev/wpmend-agent/pkg/sshexec"
)

// Checksum returns the hex SHA-256 content hash used for backup artifacts,
// evidence and post-change file state.
func Checksum(content []byte) string {
	sum := sha256.Sum256(content)

	return hex.EncodeToString(sum[:])
}

type Ledger struct {
	repo     *repository.Repository
	redactor *sshexec.Redactor
	logger   *logger.Logger
}

// NewLedger binds the repository to the substrate's scrub list. Every string
// the ledger persists passes through the redactor, so a secret registered at
// any point before the write can never land in a row.
func NewLedger(repo *repository.Repository, redactor *sshexec.Redactor, l *logger.Logger) *Ledger {
	if redactor == nil {
		redactor = sshexec.NewRedactor()
	}

	return &Ledger{
		repo:     repo,
		redactor: redactor,
		logger:   l,
	}
}

// Scrub masks registered secrets in a string destined for persistence or
// display outside the substrate.
func (l *Ledger) Scrub(s string) string {
	return l.redactor.Redact(s)
}

// RecordCommand appends one executed command to the audit trail. Outputs are
// scrubbed again at the persistence boundary even though the substrate
// already redacted them.
func (l *Ledger) RecordCommand(incidentID, serverID uint, command string, result *sshexec.RunResult) (*models.CommandExecution, error) {
	randStr, _ := models.GenerateRandomBytes(16)
	now := time.Now()

	record := &models.CommandExecution{
		UniqueID:       randStr,
		IncidentID:     incidentID,
		ServerID:       serverID,
		Command:        l.redactor.Redact(command),
		ExitCode:       result.ExitCode,
		Stdout:         l.redactor.Redact(result.Stdout),
		Stderr:         l.redactor.Redact(result.Stderr),
		DurationMillis: result.Duration.Milliseconds(),
		Timestamp:      &now,
	}

	record, err := l.repo.CommandExecution.CreateCommandExecution(record)

	if err != nil {
		return nil, &sherrors.PersistenceError{Op: "record command", Err: err}
	}

	return record, nil
}

func (l *Ledger) RecordEvidence(incidentID uint, evidenceType models.EvidenceType, content string, metadata []byte) (*models.Evidence, error) {
	randStr, _ := models.GenerateRandomBytes(16)
	now := time.Now()

	content = l.redactor.Redact(content)

	record := &models.Evidence{
		UniqueID:     randStr,
		IncidentID:   incidentID,
		EvidenceType: evidenceType,
		Content:      content,
		Checksum:     Checksum([]byte(content)),
		Metadata:     metadata,
		Timestamp:    &now,
	}

	record, err := l.repo.Evidence.CreateEvidence(record)

	if err != nil {
		return nil, &sherrors.PersistenceError{Op: "record evidence", Err: err}
	}

	return record, nil
}

func (l *Ledger) RecordBackup(incidentID uint, artifactType models.ArtifactType, originalPath, storedPath, checksum string, sizeBytes int64) (*models.BackupArtifact, error) {
	randStr, _ := models.GenerateRandomBytes(16)
	now := time.Now()

	record := &models.BackupArtifact{
		UniqueID:     randStr,
		IncidentID:   incidentID,
		ArtifactType: artifactType,
		OriginalPath: originalPath,
		StoredPath:   storedPath,
		Checksum:     checksum,
		SizeBytes:    sizeBytes,
		Timestamp:    &now,
	}

	record, err := l.repo.BackupArtifact.CreateBackupArtifact(record)

	if err != nil {
		return nil, &sherrors.PersistenceError{Op: "record backup", Err: err}
	}

	return record, nil
}

func (l *Ledger) RecordFileChange(incidentID uint, path string, changeType models.ChangeType, checksum string) (*models.FileChange, error) {
	randStr, _ := models.GenerateRandomBytes(16)
	now := time.Now()

	record := &models.FileChange{
		UniqueID:   randStr,
		IncidentID: incidentID,
		Path:       path,
		ChangeType: changeType,
		Checksum:   checksum,
		Timestamp:  &now,
	}

	record, err := l.repo.FileChange.CreateFileChange(record)

	if err != nil {
		return nil, &sherrors.PersistenceError{Op: "record file change", Err: err}
	}

	return record, nil
}

func (l *Ledger) RecordVerification(incidentID uint, passed bool, reason string, detail []byte, attempt int) (*models.VerificationResult, error) {
	randStr, _ := models.GenerateRandomBytes(16)
	now := time.Now()

	if detail != nil {
		detail = []byte(l.redactor.Redact(string(detail)))
	}

	record := &models.VerificationResult{
		UniqueID:   randStr,
		IncidentID: incidentID,
		Passed:     passed,
		Reason:     l.redactor.Redact(reason),
		Detail:     detail,
		Attempt:    attempt,
		Timestamp:  &now,
	}

	record, err := l.repo.Verification.CreateVerificationResult(record)

	if err != nil {
		return nil, &sherrors.PersistenceError{Op: "record verification", Err: err}
	}

	return record, nil
}

// HasBackups reports whether at least one backup artifact exists, the
// precondition for any fix attempt.
func (l *Ledger) HasBackups(incidentID uint) (bool, error) {
	count, err := l.repo.BackupArtifact.CountBackupArtifacts(incidentID)

	if err != nil {
		return false, &sherrors.PersistenceError{Op: "count backups", Err: err}
	}

	return count > 0, nil
}

// HasFileChange reports whether a change for the path is already on record,
// so a resumed phase does not append a duplicate row.
func (l *Ledger) HasFileChange(incidentID uint, path string) (bool, error) {
	changes, err := l.repo.FileChange.ListFileChanges(incidentID)

	if err != nil {
		return false, &sherrors.PersistenceError{Op: "list file changes", Err: err}
	}

	for _, change := range changes {
		if change.Path == path {
			return true, nil
		}
	}

	return false, nil
}

// Evidence returns the recorded evidence of one type, oldest first, for
// cross-phase comparison.
func (l *Ledger) Evidence(incidentID uint, evidenceType models.EvidenceType) ([]*models.Evidence, error) {
	evidence, err := l.repo.Evidence.ListEvidence(&utils.ListEvidenceFilter{
		IncidentID:   &incidentID,
		EvidenceType: &evidenceType,
	})

	if err != nil {
		return nil, &sherrors.PersistenceError{Op: "list evidence", Err: err}
	}

	return evidence, nil
}

// RollbackStep pairs one recorded file change with the backup artifact that
// restores its pre-change content.
type RollbackStep struct {
	Change *models.FileChange
	Backup *models.BackupArtifact
}

// PlanRollback pairs each recorded file change with the most recent backup
// artifact for the same original path captured no later than the change, in
// reverse chronological order, so replay restores the pre-incident state.
// A change with no matching backup is a consistency violation and halts the
// plan; a partial rollback is never produced.
func (l *Ledger) PlanRollback(incidentID uint) ([]RollbackStep, error) {
	changes, err := l.repo.FileChange.ListFileChanges(incidentID)

	if err != nil {
		return nil, &sherrors.PersistenceError{Op: "list file changes", Err: err}
	}

	backups, err := l.repo.BackupArtifact.ListBackupArtifacts(&utils.ListBackupsFilter{
		IncidentID: &incidentID,
	})

	if err != nil {
		return nil, &sherrors.PersistenceError{Op: "list backups", Err: err}
	}

	steps := make([]RollbackStep, 0, len(changes))

	for i := len(changes) - 1; i >= 0; i-- {
		change := changes[i]

		backup := matchBackup(change, backups)

		if backup == nil {
			return nil, &sherrors.LedgerConsistencyViolation{
				Reason: fmt.Sprintf("file change for %s has no preceding backup artifact", change.Path),
			}
		}

		steps = append(steps, RollbackStep{Change: change, Backup: backup})
	}

	return steps, nil
}

// matchBackup picks the most recent backup for the change's path not after
// the change. When several backups share both path and timestamp, the one
// recorded last wins: it is the closest capture to the change.
func matchBackup(change *models.FileChange, backups []*models.BackupArtifact) *models.BackupArtifact {
	var match *models.BackupArtifact

	for _, backup := range backups {
		if backup.OriginalPath != change.Path {
			continue
		}

		if backup.Timestamp.After(*change.Timestamp) {
			continue
		}

		if match == nil ||
			backup.Timestamp.After(*match.Timestamp) ||
			(backup.Timestamp.Equal(*match.Timestamp) && backup.ID > match.ID) {
			match = backup
		}
	}

	return match
}
