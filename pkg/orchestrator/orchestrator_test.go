package orchestrator_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/wpmend-dev/wpmend-agent/internal/logger"
	"github.com/wpmend-dev/wpmend-agent/internal/models"
	"github.com/wpmend-dev/wpmend-agent/internal/repository"
	"github.com/wpmend-dev/wpmend-agent/pkg/discovery"
	sherrors "github.com/wpmend-dev/wpmend-agent/pkg/errors"
	"github.com/wpmend-dev/wpmend-agent/pkg/ledger"
	"github.com/wpmend-dev/wpmend-agent/pkg/notifier"
	"github.com/wpmend-dev/wpmend-agent/pkg/orchestrator"
	"github.com/wpmend-dev/wpmend-agent/pkg/orchestrator/mocks"
	"github.com/wpmend-dev/wpmend-agent/pkg/sshexec"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/stretchr/testify/assert"
)

type harness struct {
	orch     *orchestrator.Orchestrator
	repo     *repository.Repository
	ledger   *ledger.Ledger
	exec     *mocks.MockExecutor
	redactor *sshexec.Redactor
}

func newHarness(t *testing.T) *harness {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "orch.db")), &gorm.Config{})

	if err != nil {
		t.Fatalf("could not open test database: %v", err)
	}

	if err := repository.AutoMigrate(db, false); err != nil {
		t.Fatalf("could not migrate test database: %v", err)
	}

	repo := repository.NewRepository(db)
	l := logger.NewConsole(false)
	redactor := sshexec.NewRedactor()
	led := ledger.NewLedger(repo, redactor, l)

	ctrl := gomock.NewController(t)
	exec := mocks.NewMockExecutor(ctrl)

	orch := orchestrator.NewOrchestrator(
		repo,
		exec,
		discovery.NewDiscoverer(l),
		led,
		notifier.NoOpNotifier{},
		l,
		&orchestrator.Conf{PhaseRetryBudget: 0},
	)

	return &harness{orch: orch, repo: repo, ledger: led, exec: exec, redactor: redactor}
}

// scriptRemote answers every remote command with a healthy canned result:
// checksums are stable, sizes are fixed, everything else exits zero.
func (h *harness) scriptRemote() {
	h.exec.EXPECT().Connect(gomock.Any(), gomock.Any()).
		Return(&sshexec.Session{ServerUID: "srv-1"}, nil).AnyTimes()
	h.exec.EXPECT().Disconnect(gomock.Any()).AnyTimes()
	h.exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ *sshexec.Session, command string) (*sshexec.RunResult, error) {
			switch {
			case strings.HasPrefix(command, "sha256sum"):
				return &sshexec.RunResult{Stdout: "f00dfeed  " + strings.TrimPrefix(command, "sha256sum ")}, nil
			case strings.HasPrefix(command, "stat"):
				return &sshexec.RunResult{Stdout: "512\n"}, nil
			default:
				return &sshexec.RunResult{Stdout: "ok"}, nil
			}
		}).AnyTimes()
}

// scriptRemoteFailing answers every remote command with a non-zero exit.
func (h *harness) scriptRemoteFailing() {
	h.exec.EXPECT().Connect(gomock.Any(), gomock.Any()).
		Return(&sshexec.Session{ServerUID: "srv-1"}, nil).AnyTimes()
	h.exec.EXPECT().Disconnect(gomock.Any()).AnyTimes()
	h.exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&sshexec.RunResult{Stderr: "failed", ExitCode: 1}, nil).AnyTimes()
}

func (h *harness) seedIncident(t *testing.T, maxAttempts int) *models.Incident {
	server, err := h.repo.Server.CreateServer(&models.Server{
		UniqueID:           "srv-1",
		Name:               "web-01",
		Hostname:           "web-01.example.com",
		Port:               22,
		Username:           "wp-deploy",
		AuthType:           models.AuthTypePassword,
		HostKeyFingerprint: "SHA256:AAAA",
	})

	if err != nil {
		t.Fatalf("could not create test server: %v", err)
	}

	site := &models.Site{
		UniqueID:      "site-1",
		ServerID:      server.ID,
		Domain:        "example.com",
		WordPressPath: "/var/www/html",
	}

	if err := h.repo.DB.Create(site).Error; err != nil {
		t.Fatalf("could not create test site: %v", err)
	}

	incident := models.NewIncident(models.TriggerTypeAutomatic, models.PriorityHigh, maxAttempts)
	incident.SiteID = site.ID
	incident.ServerID = server.ID

	incident, err = h.repo.Incident.CreateIncident(incident)

	if err != nil {
		t.Fatalf("could not create test incident: %v", err)
	}

	return incident
}

func (h *harness) forceState(t *testing.T, incident *models.Incident, state models.IncidentState) {
	if err := h.repo.DB.Model(&models.Incident{}).Where("id = ?", incident.ID).
		UpdateColumn("state", state).Error; err != nil {
		t.Fatalf("could not force incident state: %v", err)
	}
}

func (h *harness) state(t *testing.T, uid string) models.IncidentState {
	incident, err := h.repo.Incident.ReadIncident(uid)

	if err != nil {
		t.Fatalf("could not reload incident: %v", err)
	}

	return incident.State
}

// Walk a two-attempt incident through its entire unhappy life: both fix
// attempts fail verification, the site is rolled back and the incident is
// escalated with the audit trail intact.
func TestRemediationExhaustsAttemptsAndRollsBack(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.scriptRemote()

	incident := h.seedIncident(t, 2)
	uid := incident.UniqueID

	assert.NoError(t, h.orch.Advance(ctx, uid))
	assert.Equal(t, models.IncidentStateDiscovery, h.state(t, uid))

	assert.NoError(t, h.orch.Advance(ctx, uid))
	assert.Equal(t, models.IncidentStateBaseline, h.state(t, uid))

	environment, err := h.ledger.Evidence(incident.ID, models.EvidenceTypeEnvironment)
	assert.NoError(t, err)
	assert.Len(t, environment, 1, "discovery must record one environment snapshot")

	assert.NoError(t, h.orch.Advance(ctx, uid))
	assert.Equal(t, models.IncidentStateBackup, h.state(t, uid))

	assert.NoError(t, h.orch.Advance(ctx, uid))
	assert.Equal(t, models.IncidentStateObservability, h.state(t, uid))

	hasBackups, err := h.ledger.HasBackups(incident.ID)
	assert.NoError(t, err)
	assert.True(t, hasBackups, "backup phase must capture artifacts before any fix")

	assert.NoError(t, h.orch.Advance(ctx, uid))
	assert.Equal(t, models.IncidentStateFixAttempt, h.state(t, uid))

	// advancing without a recorded attempt is refused
	err = h.orch.Advance(ctx, uid)
	var validation *sherrors.ValidationError
	assert.True(t, errors.As(err, &validation))

	// first cycle
	assert.NoError(t, h.orch.RecordFixAttempt(ctx, uid, "plugin conflict", "disable_plugin", "disabled hello-dolly"))
	assert.NoError(t, h.orch.Advance(ctx, uid))
	assert.Equal(t, models.IncidentStateVerify, h.state(t, uid))

	assert.NoError(t, h.orch.RecordVerification(ctx, uid, false, "site still returns 500", nil))
	assert.Equal(t, models.IncidentStateFixAttempt, h.state(t, uid), "a failed verification with attempts left retries")

	// second and final cycle
	assert.NoError(t, h.orch.RecordFixAttempt(ctx, uid, "corrupt htaccess", "restore_htaccess", "rewrote rewrite rules"))
	assert.NoError(t, h.orch.Advance(ctx, uid))
	assert.NoError(t, h.orch.RecordVerification(ctx, uid, false, "site still returns 500", nil))
	assert.Equal(t, models.IncidentStateRollback, h.state(t, uid), "exhausted attempts go to rollback")

	assert.NoError(t, h.orch.Advance(ctx, uid))
	assert.Equal(t, models.IncidentStateEscalated, h.state(t, uid))

	final, err := h.repo.Incident.ReadIncident(uid)
	assert.NoError(t, err)
	assert.NotNil(t, final.EscalatedAt)
	assert.Equal(t, 2, final.FixAttempts)

	// terminal incidents reject further advances
	err = h.orch.Advance(ctx, uid)
	var invalid *sherrors.InvalidTransition
	assert.True(t, errors.As(err, &invalid))

	commands, err := h.repo.CommandExecution.ListCommandExecutions(incident.ID)
	assert.NoError(t, err)
	assert.NotEmpty(t, commands, "every remote command lands in the audit trail")
}

func TestVerificationPassResolvesIncident(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.scriptRemote()

	incident := h.seedIncident(t, 3)
	uid := incident.UniqueID

	h.forceState(t, incident, models.IncidentStateVerify)

	if err := h.repo.DB.Model(&models.Incident{}).Where("id = ?", incident.ID).
		UpdateColumn("fix_attempts", 1).Error; err != nil {
		t.Fatalf("could not set fix attempts: %v", err)
	}

	assert.NoError(t, h.orch.RecordVerification(ctx, uid, true, "site responds 200", nil))

	final, err := h.repo.Incident.ReadIncident(uid)
	assert.NoError(t, err)
	assert.Equal(t, models.IncidentStateFixed, final.State)
	assert.NotNil(t, final.ResolvedAt)

	// no further verification may be recorded
	err = h.orch.RecordVerification(ctx, uid, true, "again", nil)
	var invalid *sherrors.InvalidTransition
	assert.True(t, errors.As(err, &invalid))
}

// Re-running an interrupted discovery phase must not duplicate evidence that
// already landed before the crash.
func TestDiscoveryResumeDoesNotDuplicateEvidence(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.scriptRemote()

	incident := h.seedIncident(t, 3)
	uid := incident.UniqueID

	h.forceState(t, incident, models.IncidentStateDiscovery)

	_, err := h.ledger.RecordEvidence(incident.ID, models.EvidenceTypeEnvironment, `{"os":{"name":"debian"}}`, nil)
	assert.NoError(t, err)

	assert.NoError(t, h.orch.Advance(ctx, uid))
	assert.Equal(t, models.IncidentStateBaseline, h.state(t, uid))

	environment, err := h.ledger.Evidence(incident.ID, models.EvidenceTypeEnvironment)
	assert.NoError(t, err)
	assert.Len(t, environment, 1, "resume must reuse the recorded snapshot")
}

// A crash between the debug-log toggle and the phase commit must not append
// a second wp-config.php change on resume; one restore step per mutation.
func TestObservabilityResumeDoesNotDuplicateFileChange(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.scriptRemote()

	incident := h.seedIncident(t, 3)
	uid := incident.UniqueID

	h.forceState(t, incident, models.IncidentStateObservability)

	_, err := h.ledger.RecordBackup(incident.ID, models.ArtifactTypeConfig,
		"/var/www/html/wp-config.php", "/var/www/html/wp-config.php.bak", "f00dfeed", 512)
	assert.NoError(t, err)

	assert.NoError(t, h.orch.Advance(ctx, uid))
	assert.Equal(t, models.IncidentStateFixAttempt, h.state(t, uid))

	// simulate a crash that lost the transition but kept the ledger rows
	h.forceState(t, incident, models.IncidentStateObservability)

	assert.NoError(t, h.orch.Advance(ctx, uid))

	changes, err := h.repo.FileChange.ListFileChanges(incident.ID)
	assert.NoError(t, err)
	assert.Len(t, changes, 1, "a resumed toggle reuses the recorded change")
}

// Error text escalated off a failing host must never carry a registered
// secret into the incident record or its timeline.
func TestEscalationScrubsRegisteredSecrets(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	secret, err := models.GenerateRandomBytes(24)
	assert.NoError(t, err)

	h.redactor.Register(secret)

	h.exec.EXPECT().Connect(gomock.Any(), gomock.Any()).
		Return(&sshexec.Session{ServerUID: "srv-1"}, nil).AnyTimes()
	h.exec.EXPECT().Disconnect(gomock.Any()).AnyTimes()
	h.exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, fmt.Errorf("remote refused credential %s", secret)).AnyTimes()

	incident := h.seedIncident(t, 3)
	uid := incident.UniqueID

	h.forceState(t, incident, models.IncidentStateBaseline)

	assert.NoError(t, h.orch.Advance(ctx, uid))

	final, err := h.repo.Incident.ReadIncident(uid)
	assert.NoError(t, err)
	assert.Equal(t, models.IncidentStateEscalated, final.State)
	assert.NotContains(t, final.EscalationReason, secret)
	assert.Contains(t, final.EscalationReason, "[REDACTED]")

	for _, event := range final.Events {
		assert.NotContains(t, event.Step, secret)
		assert.NotContains(t, string(event.Data), secret)
	}
}

func TestBackupFailureEscalates(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.scriptRemoteFailing()

	incident := h.seedIncident(t, 3)
	uid := incident.UniqueID

	h.forceState(t, incident, models.IncidentStateBackup)

	assert.NoError(t, h.orch.Advance(ctx, uid))
	assert.Equal(t, models.IncidentStateEscalated, h.state(t, uid), "an incident that cannot be backed up is never fixed blind")
}

func TestRecordFixAttemptEnforcesCap(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	incident := h.seedIncident(t, 1)
	uid := incident.UniqueID

	h.forceState(t, incident, models.IncidentStateFixAttempt)

	assert.NoError(t, h.orch.RecordFixAttempt(ctx, uid, "h", "t", "d"))

	err := h.orch.RecordFixAttempt(ctx, uid, "h", "t", "d")
	var limit *sherrors.AttemptLimitExceeded
	assert.True(t, errors.As(err, &limit), "the cap is enforced, never silently clamped")
}

func TestRecordFixAttemptOutsideFixPhase(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	incident := h.seedIncident(t, 3)

	err := h.orch.RecordFixAttempt(ctx, incident.UniqueID, "h", "t", "d")

	var invalid *sherrors.InvalidTransition
	assert.True(t, errors.As(err, &invalid))
}

func TestEscalateFromAnyActiveState(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	incident := h.seedIncident(t, 3)
	uid := incident.UniqueID

	h.forceState(t, incident, models.IncidentStateBaseline)

	assert.NoError(t, h.orch.Escalate(ctx, uid, "operator requested handoff"))

	final, err := h.repo.Incident.ReadIncident(uid)
	assert.NoError(t, err)
	assert.Equal(t, models.IncidentStateEscalated, final.State)
	assert.Equal(t, "operator requested handoff", final.EscalationReason)

	// escalating a terminal incident is refused
	err = h.orch.Escalate(ctx, uid, "again")
	var invalid *sherrors.InvalidTransition
	assert.True(t, errors.As(err, &invalid))
}

func TestRollbackWithoutBackupEscalates(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.scriptRemote()

	incident := h.seedIncident(t, 3)
	uid := incident.UniqueID

	h.forceState(t, incident, models.IncidentStateRollback)

	// a file change with no paired backup makes the plan unsatisfiable
	_, err := h.ledger.RecordFileChange(incident.ID, "/var/www/html/wp-config.php", models.ChangeTypeModified, "deadbeef")
	assert.NoError(t, err)

	assert.NoError(t, h.orch.Advance(ctx, uid))
	assert.Equal(t, models.IncidentStateEscalated, h.state(t, uid))
}
