package repository

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/wpmend-dev/wpmend-agent/internal/models"
	"github.com/wpmend-dev/wpmend-agent/internal/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/stretchr/testify/assert"
)

func newTestRepository(t *testing.T) *Repository {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "agent.db")), &gorm.Config{})

	if err != nil {
		t.Fatalf("could not open test database: %v", err)
	}

	if err := AutoMigrate(db, false); err != nil {
		t.Fatalf("could not migrate test database: %v", err)
	}

	return NewRepository(db)
}

func TestCreateAndReadIncident(t *testing.T) {
	repo := newTestRepository(t)

	created, err := repo.Incident.CreateIncident(models.NewIncident(models.TriggerTypeManual, models.PriorityHigh, 5))
	assert.NoError(t, err)
	assert.NotEmpty(t, created.UniqueID)

	read, err := repo.Incident.ReadIncident(created.UniqueID)
	assert.NoError(t, err)
	assert.Equal(t, models.IncidentStateNew, read.State)
	assert.Equal(t, 5, read.MaxFixAttempts)
}

func TestReadIncidentNotFound(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.Incident.ReadIncident("missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

// Ensure a state write is never observable without its timeline event.
func TestSaveIncidentStateWritesEventAtomically(t *testing.T) {
	repo := newTestRepository(t)

	incident, err := repo.Incident.CreateIncident(models.NewIncident(models.TriggerTypeAutomatic, models.PriorityMedium, 3))
	assert.NoError(t, err)

	incident.State = models.IncidentStateDiscovery

	event := models.NewIncidentEvent(incident.ID, models.EventTypeTransition, models.IncidentStateNew, "incident accepted for remediation")

	assert.NoError(t, repo.Incident.SaveIncidentState(incident, event))

	read, err := repo.Incident.ReadIncident(incident.UniqueID)
	assert.NoError(t, err)
	assert.Equal(t, models.IncidentStateDiscovery, read.State)
	assert.Len(t, read.Events, 1)
	assert.Equal(t, models.EventTypeTransition, read.Events[0].EventType)
}

func TestListIncidentsFilterByState(t *testing.T) {
	repo := newTestRepository(t)

	for i := 0; i < 3; i++ {
		_, err := repo.Incident.CreateIncident(models.NewIncident(models.TriggerTypeManual, models.PriorityLow, 3))
		assert.NoError(t, err)
	}

	fixed := models.NewIncident(models.TriggerTypeManual, models.PriorityLow, 3)
	fixed.State = models.IncidentStateFixed

	_, err := repo.Incident.CreateIncident(fixed)
	assert.NoError(t, err)

	state := models.IncidentStateNew

	incidents, paginated, err := repo.Incident.ListIncidents(
		&utils.ListIncidentsFilter{State: &state},
		utils.WithLimit(50),
	)

	assert.NoError(t, err)
	assert.Len(t, incidents, 3)
	assert.Equal(t, uint(1), paginated.NumPages)
}

func TestListTerminalIncidentsBefore(t *testing.T) {
	repo := newTestRepository(t)

	old := time.Now().Add(-48 * time.Hour)

	backdate := func(incident *models.Incident) {
		assert.NoError(t, repo.DB.Model(incident).UpdateColumn("updated_at", old).Error)
	}

	oldFixed := models.NewIncident(models.TriggerTypeManual, models.PriorityLow, 3)
	oldFixed.State = models.IncidentStateFixed
	oldFixed, _ = repo.Incident.CreateIncident(oldFixed)
	backdate(oldFixed)

	oldActive := models.NewIncident(models.TriggerTypeManual, models.PriorityLow, 3)
	oldActive.State = models.IncidentStateVerify
	oldActive, _ = repo.Incident.CreateIncident(oldActive)
	backdate(oldActive)

	freshEscalated := models.NewIncident(models.TriggerTypeManual, models.PriorityLow, 3)
	freshEscalated.State = models.IncidentStateEscalated
	_, err := repo.Incident.CreateIncident(freshEscalated)
	assert.NoError(t, err)

	expired, err := repo.Incident.ListTerminalIncidentsBefore(time.Now().Add(-24*time.Hour), 10)

	assert.NoError(t, err)
	assert.Len(t, expired, 1, "only old terminal incidents qualify")
	assert.Equal(t, oldFixed.UniqueID, expired[0].UniqueID)
}

func TestDeleteIncidentRemovesOwnedRecords(t *testing.T) {
	repo := newTestRepository(t)

	incident, err := repo.Incident.CreateIncident(models.NewIncident(models.TriggerTypeManual, models.PriorityLow, 3))
	assert.NoError(t, err)

	_, err = repo.IncidentEvent.CreateEvent(models.NewIncidentEvent(incident.ID, models.EventTypePhaseStarted, models.IncidentStateDiscovery, "discovery phase started"))
	assert.NoError(t, err)

	now := time.Now()

	_, err = repo.Evidence.CreateEvidence(&models.Evidence{
		UniqueID:     "ev-1",
		IncidentID:   incident.ID,
		EvidenceType: models.EvidenceTypeEnvironment,
		Content:      "{}",
		Timestamp:    &now,
	})
	assert.NoError(t, err)

	assert.NoError(t, repo.Incident.DeleteIncident(incident.UniqueID))

	_, err = repo.Incident.ReadIncident(incident.UniqueID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	events, _, err := repo.IncidentEvent.ListEvents(&utils.ListTimelineFilter{IncidentID: &incident.ID})
	assert.NoError(t, err)
	assert.Empty(t, events)

	evidence, err := repo.Evidence.ListEvidence(&utils.ListEvidenceFilter{IncidentID: &incident.ID})
	assert.NoError(t, err)
	assert.Empty(t, evidence)
}

func TestLatestEventForPhase(t *testing.T) {
	repo := newTestRepository(t)

	incident, err := repo.Incident.CreateIncident(models.NewIncident(models.TriggerTypeManual, models.PriorityLow, 3))
	assert.NoError(t, err)

	_, err = repo.IncidentEvent.CreateEvent(models.NewIncidentEvent(incident.ID, models.EventTypePhaseStarted, models.IncidentStateDiscovery, "discovery phase started"))
	assert.NoError(t, err)

	_, err = repo.IncidentEvent.CreateEvent(models.NewIncidentEvent(incident.ID, models.EventTypeTransition, models.IncidentStateDiscovery, "discovery phase completed"))
	assert.NoError(t, err)

	latest, err := repo.IncidentEvent.LatestEventForPhase(incident.ID, models.IncidentStateDiscovery)
	assert.NoError(t, err)
	assert.Equal(t, models.EventTypeTransition, latest.EventType)

	_, err = repo.IncidentEvent.LatestEventForPhase(incident.ID, models.IncidentStateBackup)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestReadIncidentTarget(t *testing.T) {
	repo := newTestRepository(t)

	server, err := repo.Server.CreateServer(&models.Server{
		UniqueID: "srv-1",
		Name:     "web-01",
		Hostname: "web-01.example.com",
		Port:     22,
		Username: "wp-deploy",
		AuthType: models.AuthTypePassword,
	})
	assert.NoError(t, err)

	site := &models.Site{
		UniqueID:      "site-1",
		ServerID:      server.ID,
		Domain:        "example.com",
		WordPressPath: "/var/www/html",
	}
	assert.NoError(t, repo.DB.Create(site).Error)

	incident := models.NewIncident(models.TriggerTypeWebhook, models.PriorityCritical, 3)
	incident.SiteID = site.ID
	incident.ServerID = server.ID

	incident, err = repo.Incident.CreateIncident(incident)
	assert.NoError(t, err)

	gotSite, gotServer, err := repo.Server.ReadIncidentTarget(incident)
	assert.NoError(t, err)
	assert.Equal(t, "example.com", gotSite.Domain)
	assert.Equal(t, "web-01.example.com", gotServer.Hostname)
}
