// Package retention purges terminal incidents, and their owned ledger
// records, after the configured retention window.
package retention

import (
	"time"

	"github.com/wpmend-dev/wpmend-agent/internal/envconf"
	"github.com/wpmend-dev/wpmend-agent/internal/logger"
	"github.com/wpmend-dev/wpmend-agent/internal/repository"
)

type Purger struct {
	repo   *repository.Repository
	logger *logger.Logger

	retention time.Duration
	sweepCap  int
}

func NewPurger(repo *repository.Repository, l *logger.Logger, conf *envconf.RetentionConf) *Purger {
	return &Purger{
		repo:      repo,
		logger:    l,
		retention: time.Duration(conf.RetentionDays) * 24 * time.Hour,
		sweepCap:  int(conf.SweepCap),
	}
}

// Sweep deletes up to the sweep cap of terminal incidents whose last update
// precedes the retention cutoff. Active incidents are never considered, no
// matter how old. Returns the number deleted.
func (p *Purger) Sweep() (int, error) {
	cutoff := time.Now().Add(-p.retention)

	incidents, err := p.repo.Incident.ListTerminalIncidentsBefore(cutoff, p.sweepCap)

	if err != nil {
		return 0, err
	}

	deleted := 0

	for _, incident := range incidents {
		if err := p.repo.Incident.DeleteIncident(incident.UniqueID); err != nil {
			p.logger.Error().Caller().Msgf("retention sweep could not delete incident %s: %v", incident.UniqueID, err)

			continue
		}

		deleted++
	}

	if deleted > 0 {
		p.logger.Info().Msgf("retention sweep removed %d incidents older than %s", deleted, cutoff.Format(time.RFC3339))
	}

	return deleted, nil
}
