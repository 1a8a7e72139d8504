// Package orchestrator owns the incident state machine. It is the single
// writer of incident state: every transition is persisted atomically with
// exactly one timeline event before the in-memory state is considered
// committed, and a lifecycle notification is published after the fact.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/wpmend-dev/wpmend-agent/internal/logger"
	"github.com/wpmend-dev/wpmend-agent/internal/models"
	"github.com/wpmend-dev/wpmend-agent/internal/repository"
	"github.com/wpmend-dev/wpmend-agent/pkg/discovery"
	sherrors "github.com/wpmend-dev/wpmend-agent/pkg/errors"
	"github.com/wpmend-dev/wpmend-agent/pkg/ledger"
	"github.com/wpmend-dev/wpmend-agent/pkg/notifier"
	"github.com/wpmend-dev/wpmend-agent/pkg/sshexec"
)

// Executor is the slice of the execution substrate the orchestrator needs.
type Executor interface {
	Connect(ctx context.Context, server *models.Server) (*sshexec.Session, error)
	Execute(ctx context.Context, session *sshexec.Session, command string) (*sshexec.RunResult, error)
	Disconnect(session *sshexec.Session)
}

// Discoverer turns substrate calls into a structured environment snapshot.
type Discoverer interface {
	Discover(ctx context.Context, runner discovery.Runner) (*discovery.Snapshot, error)
	DiscoverSite(ctx context.Context, runner discovery.Runner, installPath string) (*discovery.WordPress, error)
}

type Conf struct {
	// PhaseRetryBudget bounds local retries of connection failures inside
	// one phase before the failure surfaces.
	PhaseRetryBudget int
}

type Orchestrator struct {
	repo     *repository.Repository
	exec     Executor
	disc     Discoverer
	ledger   *ledger.Ledger
	notifier notifier.Notifier
	logger   *logger.Logger
	conf     *Conf

	// locks serializes advances per incident uid; distinct incidents
	// proceed fully in parallel.
	locks sync.Map
}

func NewOrchestrator(
	repo *repository.Repository,
	exec Executor,
	disc Discoverer,
	l *ledger.Ledger,
	n notifier.Notifier,
	log *logger.Logger,
	conf *Conf,
) *Orchestrator {
	if conf == nil {
		conf = &Conf{PhaseRetryBudget: 3}
	}

	return &Orchestrator{
		repo:     repo,
		exec:     exec,
		disc:     disc,
		ledger:   l,
		notifier: n,
		logger:   log,
		conf:     conf,
	}
}

func (o *Orchestrator) lockIncident(uid string) func() {
	actual, _ := o.locks.LoadOrStore(uid, &sync.Mutex{})
	mu := actual.(*sync.Mutex)
	mu.Lock()

	return mu.Unlock
}

// Advance executes the work for the incident's current phase and computes
// the next phase. It is idempotent with respect to the recorded ledger
// state: re-invoking after a crash resumes from the last durable event
// without re-recording completed work.
func (o *Orchestrator) Advance(ctx context.Context, uid string) error {
	unlock := o.lockIncident(uid)
	defer unlock()

	incident, err := o.repo.Incident.ReadIncident(uid)

	if err != nil {
		return &sherrors.PersistenceError{Op: "load incident", Err: err}
	}

	if incident.State.IsTerminal() {
		return &sherrors.InvalidTransition{From: string(incident.State), To: "any"}
	}

	switch incident.State {
	case models.IncidentStateNew:
		return o.transition(ctx, incident, models.IncidentStateDiscovery, "incident accepted for remediation", nil)

	case models.IncidentStateDiscovery:
		return o.advanceRemotePhase(ctx, incident, models.IncidentStateBaseline, o.runDiscovery)

	case models.IncidentStateBaseline:
		return o.advanceRemotePhase(ctx, incident, models.IncidentStateBackup, o.runBaseline)

	case models.IncidentStateBackup:
		return o.advanceRemotePhase(ctx, incident, models.IncidentStateObservability, o.runBackup)

	case models.IncidentStateObservability:
		if err := o.advanceRemotePhase(ctx, incident, models.IncidentStateFixAttempt, o.runObservability); err != nil {
			return err
		}

		return nil

	case models.IncidentStateFixAttempt:
		return o.advanceFixAttempt(ctx, incident)

	case models.IncidentStateVerify:
		return &sherrors.ValidationError{
			Field:  "state",
			Reason: "incident awaits a verification result; record one instead of advancing",
		}

	case models.IncidentStateRollback:
		return o.advanceRollback(ctx, incident)
	}

	return &sherrors.InvalidTransition{From: string(incident.State), To: "unknown"}
}

// advanceRemotePhase resolves the incident target, opens a session, runs the
// phase work with the local retry budget and commits the transition. Any
// unrecoverable failure escalates rather than leaving the incident stuck.
func (o *Orchestrator) advanceRemotePhase(
	ctx context.Context,
	incident *models.Incident,
	next models.IncidentState,
	work func(ctx context.Context, incident *models.Incident, site *models.Site, runner discovery.Runner) error,
) error {
	phase := incident.State
	start := time.Now()

	if err := o.markPhaseStarted(ctx, incident); err != nil {
		return err
	}

	site, server, err := o.repo.Server.ReadIncidentTarget(incident)

	if err != nil {
		return o.escalateOnFailure(ctx, incident, fmt.Errorf("incident target unresolvable: %w", err))
	}

	err = o.retryPhase(ctx, func(ctx context.Context) error {
		session, err := o.exec.Connect(ctx, server)

		if err != nil {
			return err
		}

		defer o.exec.Disconnect(session)

		runner := &auditedRunner{
			orch:     o,
			session:  session,
			incident: incident,
			serverID: server.ID,
		}

		return work(ctx, incident, site, runner)
	})

	if err != nil {
		return o.escalateOnFailure(ctx, incident, err)
	}

	if next == models.IncidentStateFixAttempt {
		// attempt accounting is checked before a fix cycle is granted; the
		// machine never silently clamps
		if !incident.AttemptsRemaining() {
			return o.escalate(ctx, incident, "fix attempt budget exhausted before remediation could start")
		}

		hasBackups, err := o.ledger.HasBackups(incident.ID)

		if err != nil {
			return err
		}

		if !hasBackups {
			return o.escalate(ctx, incident, "no backup artifact was captured; refusing to attempt a fix")
		}
	}

	duration := time.Since(start)

	o.logger.Info().Msgf("incident %s completed phase %s in %s", incident.UniqueID, phase, duration)

	return o.transitionTimed(ctx, incident, next, fmt.Sprintf("%s phase completed", phase), nil, duration)
}

func (o *Orchestrator) advanceFixAttempt(ctx context.Context, incident *models.Incident) error {
	verifications, err := o.repo.Verification.ListVerificationResults(incident.ID)

	if err != nil {
		return &sherrors.PersistenceError{Op: "list verifications", Err: err}
	}

	if incident.FixAttempts <= len(verifications) {
		return &sherrors.ValidationError{
			Field:  "state",
			Reason: "no unverified fix attempt has been recorded for this cycle",
		}
	}

	return o.transition(ctx, incident, models.IncidentStateVerify, "fix applied, awaiting verification", nil)
}

func (o *Orchestrator) advanceRollback(ctx context.Context, incident *models.Incident) error {
	if err := o.markPhaseStarted(ctx, incident); err != nil {
		return err
	}

	site, server, err := o.repo.Server.ReadIncidentTarget(incident)

	if err != nil {
		return o.escalate(ctx, incident, fmt.Sprintf("rollback impossible: %v", err))
	}

	err = o.retryPhase(ctx, func(ctx context.Context) error {
		session, err := o.exec.Connect(ctx, server)

		if err != nil {
			return err
		}

		defer o.exec.Disconnect(session)

		runner := &auditedRunner{
			orch:     o,
			session:  session,
			incident: incident,
			serverID: server.ID,
		}

		return o.runRollback(ctx, incident, site, runner)
	})

	// a rollback failure is fatal to automation: it is never retried
	// beyond the transport budget, to avoid compounding a bad state
	if err != nil {
		return o.escalate(ctx, incident, fmt.Sprintf("rollback failed: %v", err))
	}

	return o.escalate(ctx, incident, "automation exhausted; prior state restored from backups")
}

// RecordFixAttempt registers one bounded fix cycle. Only legal while the
// incident sits in FIX_ATTEMPT.
func (o *Orchestrator) RecordFixAttempt(ctx context.Context, uid, hypothesis, fixType, description string) error {
	unlock := o.lockIncident(uid)
	defer unlock()

	incident, err := o.repo.Incident.ReadIncident(uid)

	if err != nil {
		return &sherrors.PersistenceError{Op: "load incident", Err: err}
	}

	if incident.State != models.IncidentStateFixAttempt {
		return &sherrors.InvalidTransition{From: string(incident.State), To: string(models.IncidentStateFixAttempt)}
	}

	if incident.FixAttempts+1 > incident.MaxFixAttempts {
		return &sherrors.AttemptLimitExceeded{
			Attempts:    incident.FixAttempts,
			MaxAttempts: incident.MaxFixAttempts,
		}
	}

	incident.FixAttempts++

	data, _ := json.Marshal(map[string]interface{}{
		"attempt":     incident.FixAttempts,
		"hypothesis":  hypothesis,
		"fix_type":    fixType,
		"description": description,
	})

	event := models.NewIncidentEvent(incident.ID, models.EventTypeFixAttempt, incident.State,
		fmt.Sprintf("fix attempt %d of %d", incident.FixAttempts, incident.MaxFixAttempts))
	event.Data = data

	if err := o.repo.Incident.SaveIncidentState(incident, event); err != nil {
		return &sherrors.PersistenceError{Op: "save fix attempt", Err: err}
	}

	o.publish(ctx, notifier.TopicStep, incident, event.Step)

	return nil
}

// RecordVerification closes out the current fix cycle. Only legal in VERIFY.
// Pass resolves the incident; fail retries while attempts remain, otherwise
// moves to rollback.
func (o *Orchestrator) RecordVerification(ctx context.Context, uid string, passed bool, reason string, detail []byte) error {
	unlock := o.lockIncident(uid)
	defer unlock()

	incident, err := o.repo.Incident.ReadIncident(uid)

	if err != nil {
		return &sherrors.PersistenceError{Op: "load incident", Err: err}
	}

	if incident.State != models.IncidentStateVerify {
		return &sherrors.InvalidTransition{From: string(incident.State), To: string(models.IncidentStateVerify)}
	}

	if _, err := o.ledger.RecordVerification(incident.ID, passed, reason, detail, incident.FixAttempts); err != nil {
		return err
	}

	if passed {
		now := time.Now()
		incident.ResolvedAt = &now

		if err := o.transition(ctx, incident, models.IncidentStateFixed, fmt.Sprintf("verification passed: %s", reason), detail); err != nil {
			return err
		}

		o.publish(ctx, notifier.TopicResolved, incident, reason)

		return nil
	}

	if incident.AttemptsRemaining() {
		return o.transition(ctx, incident, models.IncidentStateFixAttempt,
			fmt.Sprintf("verification failed (%s); retrying", reason), detail)
	}

	return o.transition(ctx, incident, models.IncidentStateRollback,
		fmt.Sprintf("verification failed (%s); attempts exhausted, rolling back", reason), detail)
}

// Escalate hands the incident to a human operator. Escalation is reachable
// from any non-terminal state: when automation cannot proceed, the incident
// must never be left un-advancing.
func (o *Orchestrator) Escalate(ctx context.Context, uid, reason string) error {
	unlock := o.lockIncident(uid)
	defer unlock()

	incident, err := o.repo.Incident.ReadIncident(uid)

	if err != nil {
		return &sherrors.PersistenceError{Op: "load incident", Err: err}
	}

	return o.escalate(ctx, incident, reason)
}

func (o *Orchestrator) escalate(ctx context.Context, incident *models.Incident, reason string) error {
	if incident.State.IsTerminal() {
		return &sherrors.InvalidTransition{From: string(incident.State), To: string(models.IncidentStateEscalated)}
	}

	// reasons often embed error text from the remote host
	reason = o.ledger.Scrub(reason)

	now := time.Now()
	incident.EscalatedAt = &now
	incident.EscalationReason = reason

	from := incident.State
	incident.State = models.IncidentStateEscalated

	event := models.NewIncidentEvent(incident.ID, models.EventTypeEscalation, from, reason)

	if err := o.repo.Incident.SaveIncidentState(incident, event); err != nil {
		// revert the in-memory mutation; the transition did not commit
		incident.State = from
		incident.EscalatedAt = nil
		incident.EscalationReason = ""

		return &sherrors.PersistenceError{Op: "save escalation", Err: err}
	}

	o.logger.Warn().Msgf("incident %s escalated: %s", incident.UniqueID, reason)

	o.publish(ctx, notifier.TopicEscalation, incident, reason)

	return nil
}

// escalateOnFailure records the phase failure as a timeline event, then
// escalates with a display-safe reason.
func (o *Orchestrator) escalateOnFailure(ctx context.Context, incident *models.Incident, cause error) error {
	message := o.ledger.Scrub(cause.Error())

	failure := models.NewIncidentEvent(incident.ID, models.EventTypePhaseFailed, incident.State, message)

	if _, err := o.repo.IncidentEvent.CreateEvent(failure); err != nil {
		return &sherrors.PersistenceError{Op: "record phase failure", Err: err}
	}

	return o.escalate(ctx, incident, fmt.Sprintf("%s phase failed: %s", incident.State, message))
}

func (o *Orchestrator) transition(ctx context.Context, incident *models.Incident, to models.IncidentState, step string, data []byte) error {
	return o.transitionTimed(ctx, incident, to, step, data, 0)
}

func (o *Orchestrator) transitionTimed(ctx context.Context, incident *models.Incident, to models.IncidentState, step string, data []byte, duration time.Duration) error {
	from := incident.State

	if !CanTransition(from, to) {
		return &sherrors.InvalidTransition{From: string(from), To: string(to)}
	}

	incident.State = to

	event := models.NewIncidentEvent(incident.ID, models.EventTypeTransition, from, step)
	event.Data = data

	if duration > 0 {
		millis := duration.Milliseconds()
		event.DurationMillis = &millis
	}

	if err := o.repo.Incident.SaveIncidentState(incident, event); err != nil {
		incident.State = from

		return &sherrors.PersistenceError{Op: "save transition", Err: err}
	}

	o.logger.Info().Msgf("incident %s: %s → %s", incident.UniqueID, from, to)

	o.publish(ctx, notifier.TopicTransition, incident, step)

	return nil
}

// markPhaseStarted records a phase start event once. On resume after a
// crash the existing start event is reused, keeping the timeline free of
// duplicates.
func (o *Orchestrator) markPhaseStarted(ctx context.Context, incident *models.Incident) error {
	latest, err := o.repo.IncidentEvent.LatestEventForPhase(incident.ID, incident.State)

	if err == nil && latest.EventType == models.EventTypePhaseStarted {
		o.logger.Info().Msgf("incident %s resuming interrupted %s phase", incident.UniqueID, incident.State)

		return nil
	}

	started := models.NewIncidentEvent(incident.ID, models.EventTypePhaseStarted, incident.State,
		fmt.Sprintf("%s phase started", incident.State))

	if _, err := o.repo.IncidentEvent.CreateEvent(started); err != nil {
		return &sherrors.PersistenceError{Op: "record phase start", Err: err}
	}

	o.publish(ctx, notifier.TopicStep, incident, started.Step)

	return nil
}

// retryPhase retries work on connection-level failures up to the phase
// budget. Every other error class surfaces immediately.
func (o *Orchestrator) retryPhase(ctx context.Context, work func(ctx context.Context) error) error {
	var err error

	for attempt := 0; attempt <= o.conf.PhaseRetryBudget; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		err = work(ctx)

		if err == nil || !sherrors.IsRetryable(err) {
			return err
		}

		o.logger.Warn().Msgf("phase attempt %d failed with retryable error: %v", attempt+1, err)
	}

	return err
}

// publish is fire-and-forget: a dead sink never blocks remediation.
func (o *Orchestrator) publish(ctx context.Context, topic string, incident *models.Incident, step string) {
	payload := map[string]interface{}{
		"incident_id":  incident.UniqueID,
		"state":        incident.State,
		"fix_attempts": incident.FixAttempts,
		"step":         step,
	}

	if err := o.notifier.Publish(ctx, topic, payload); err != nil {
		o.logger.Warn().Msgf("notification on %s failed: %v", topic, err)
	}
}
