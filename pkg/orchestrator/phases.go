package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/wpmend-dev/wpmend-agent/internal/models"
	"github.com/wpmend-dev/wpmend-agent/pkg/discovery"
	"github.com/wpmend-dev/wpmend-agent/pkg/sshexec"
)

// auditedRunner binds a live session to an incident so every executed
// command lands in the audit trail without the phase code repeating itself.
type auditedRunner struct {
	orch     *Orchestrator
	session  *sshexec.Session
	incident *models.Incident
	serverID uint
}

func (r *auditedRunner) Run(ctx context.Context, command string) (*sshexec.RunResult, error) {
	result, err := r.orch.exec.Execute(ctx, r.session, command)

	if err != nil {
		return nil, err
	}

	if _, err := r.orch.ledger.RecordCommand(r.incident.ID, r.serverID, command, result); err != nil {
		return nil, err
	}

	return result, nil
}

// hasEvidence reports whether evidence of the given type was already
// durably recorded, which is how a resumed phase avoids duplicating work.
func (o *Orchestrator) hasEvidence(incidentID uint, evidenceType models.EvidenceType) (bool, error) {
	existing, err := o.ledger.Evidence(incidentID, evidenceType)

	if err != nil {
		return false, err
	}

	return len(existing) > 0, nil
}

func (o *Orchestrator) runDiscovery(ctx context.Context, incident *models.Incident, site *models.Site, runner discovery.Runner) error {
	recorded, err := o.hasEvidence(incident.ID, models.EvidenceTypeEnvironment)

	if err != nil {
		return err
	}

	if recorded {
		o.logger.Info().Msgf("incident %s: environment snapshot already recorded, skipping probes", incident.UniqueID)

		return nil
	}

	snapshot, err := o.disc.Discover(ctx, runner)

	if err != nil {
		return err
	}

	wp, err := o.disc.DiscoverSite(ctx, runner, site.WordPressPath)

	if err != nil {
		return err
	}

	snapshot.WordPress = *wp

	_, err = o.ledger.RecordEvidence(incident.ID, models.EvidenceTypeEnvironment, string(snapshot.ToJSON()), nil)

	return err
}

func (o *Orchestrator) runBaseline(ctx context.Context, incident *models.Incident, site *models.Site, runner discovery.Runner) error {
	recorded, err := o.hasEvidence(incident.ID, models.EvidenceTypePageContent)

	if err != nil {
		return err
	}

	if recorded {
		return nil
	}

	page, err := runTemplate(ctx, runner, "curl -sS -L -m 20 http://{{domain}}", map[string]string{
		"domain": site.Domain,
	})

	if err != nil {
		return err
	}

	if page.ExitCode == 0 {
		if _, err := o.ledger.RecordEvidence(incident.ID, models.EvidenceTypePageContent, page.Stdout, nil); err != nil {
			return err
		}
	}

	// a missing debug log is a negative result, not a failure
	errorLog, err := runTemplate(ctx, runner, "tail -n 200 {{path}}/wp-content/debug.log", map[string]string{
		"path": site.WordPressPath,
	})

	if err != nil {
		return err
	}

	if errorLog.ExitCode == 0 {
		if _, err := o.ledger.RecordEvidence(incident.ID, models.EvidenceTypeErrorLog, errorLog.Stdout, nil); err != nil {
			return err
		}
	}

	return nil
}

// backupTargets enumerates what the backup phase captures before any fix is
// allowed to touch the site.
var backupTargets = []struct {
	relPath      string
	artifactType models.ArtifactType
}{
	{"wp-config.php", models.ArtifactTypeConfig},
	{".htaccess", models.ArtifactTypeConfig},
	{"index.php", models.ArtifactTypeFile},
}

func (o *Orchestrator) runBackup(ctx context.Context, incident *models.Incident, site *models.Site, runner discovery.Runner) error {
	hasBackups, err := o.ledger.HasBackups(incident.ID)

	if err != nil {
		return err
	}

	if hasBackups {
		o.logger.Info().Msgf("incident %s: backups already captured, skipping", incident.UniqueID)

		return nil
	}

	captured := 0

	for _, target := range backupTargets {
		src := fmt.Sprintf("%s/%s", site.WordPressPath, target.relPath)
		dst := fmt.Sprintf("%s.wpmend-%s", src, incident.UniqueID)

		copied, err := runTemplate(ctx, runner, "cp -p {{src}} {{dst}}", map[string]string{
			"src": src,
			"dst": dst,
		})

		if err != nil {
			return err
		}

		// absent target files are skipped, not fatal
		if copied.ExitCode != 0 {
			continue
		}

		checksum, size, err := o.statArtifact(ctx, runner, dst)

		if err != nil {
			return err
		}

		if _, err := o.ledger.RecordBackup(incident.ID, target.artifactType, src, dst, checksum, size); err != nil {
			return err
		}

		captured++
	}

	if captured == 0 {
		return fmt.Errorf("backup phase captured no artifacts from %s", site.WordPressPath)
	}

	return nil
}

func (o *Orchestrator) runObservability(ctx context.Context, incident *models.Incident, site *models.Site, runner discovery.Runner) error {
	configPath := fmt.Sprintf("%s/wp-config.php", site.WordPressPath)

	toggled, err := o.ledger.HasFileChange(incident.ID, configPath)

	if err != nil {
		return err
	}

	// the toggle rewrites wp-config.php, so the mutation is recorded for
	// the rollback plan; a resumed phase reuses the recorded change instead
	// of appending another
	if !toggled {
		enabled, err := runTemplate(ctx, runner, "wp config set WP_DEBUG_LOG true --raw --path={{path}} --allow-root", map[string]string{
			"path": site.WordPressPath,
		})

		if err != nil {
			return err
		}

		if enabled.ExitCode == 0 {
			checksum, _, err := o.statArtifact(ctx, runner, configPath)

			if err != nil {
				return err
			}

			if _, err := o.ledger.RecordFileChange(incident.ID, configPath, models.ChangeTypeModified, checksum); err != nil {
				return err
			}
		}
	}

	recorded, err := o.hasEvidence(incident.ID, models.EvidenceTypeProcessList)

	if err != nil {
		return err
	}

	if recorded {
		return nil
	}

	processes, err := runner.Run(ctx, "ps aux")

	if err != nil {
		return err
	}

	if processes.ExitCode == 0 {
		if _, err := o.ledger.RecordEvidence(incident.ID, models.EvidenceTypeProcessList, processes.Stdout, nil); err != nil {
			return err
		}
	}

	disk, err := runner.Run(ctx, "df -h")

	if err != nil {
		return err
	}

	if disk.ExitCode == 0 {
		if _, err := o.ledger.RecordEvidence(incident.ID, models.EvidenceTypeDiskUsage, disk.Stdout, nil); err != nil {
			return err
		}
	}

	return nil
}

// runRollback replays the ledger's rollback plan: newest change first, each
// restored from its paired backup and verified byte-for-byte by checksum.
func (o *Orchestrator) runRollback(ctx context.Context, incident *models.Incident, site *models.Site, runner discovery.Runner) error {
	steps, err := o.ledger.PlanRollback(incident.ID)

	if err != nil {
		return err
	}

	for _, step := range steps {
		restored, err := runTemplate(ctx, runner, "cp -p {{backup}} {{original}}", map[string]string{
			"backup":   step.Backup.StoredPath,
			"original": step.Backup.OriginalPath,
		})

		if err != nil {
			return err
		}

		if restored.ExitCode != 0 {
			return fmt.Errorf("restore of %s exited with %d", step.Backup.OriginalPath, restored.ExitCode)
		}

		checksum, _, err := o.statArtifact(ctx, runner, step.Backup.OriginalPath)

		if err != nil {
			return err
		}

		if checksum != step.Backup.Checksum {
			return fmt.Errorf("restored %s does not match backup checksum", step.Backup.OriginalPath)
		}
	}

	return nil
}

// statArtifact returns the remote file's content hash and size.
func (o *Orchestrator) statArtifact(ctx context.Context, runner discovery.Runner, path string) (string, int64, error) {
	sum, err := runTemplate(ctx, runner, "sha256sum {{path}}", map[string]string{"path": path})

	if err != nil {
		return "", 0, err
	}

	if sum.ExitCode != 0 {
		return "", 0, fmt.Errorf("checksum of %s exited with %d", path, sum.ExitCode)
	}

	checksum := firstField(sum.Stdout)

	size, err := runTemplate(ctx, runner, "stat -c %s {{path}}", map[string]string{"path": path})

	if err != nil {
		return "", 0, err
	}

	var sizeBytes int64

	if size.ExitCode == 0 {
		fmt.Sscanf(strings.TrimSpace(size.Stdout), "%d", &sizeBytes)
	}

	return checksum, sizeBytes, nil
}

func runTemplate(ctx context.Context, runner discovery.Runner, template string, params map[string]string) (*sshexec.RunResult, error) {
	command, err := sshexec.RenderTemplate(template, params)

	if err != nil {
		return nil, err
	}

	return runner.Run(ctx, command)
}

func firstField(s string) string {
	fields := strings.Fields(s)

	if len(fields) == 0 {
		return ""
	}

	return fields[0]
}
