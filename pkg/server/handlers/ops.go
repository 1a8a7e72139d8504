package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wpmend-dev/wpmend-agent/internal/logger"
	"github.com/wpmend-dev/wpmend-agent/internal/models"
	"github.com/wpmend-dev/wpmend-agent/internal/repository"
	"github.com/wpmend-dev/wpmend-agent/internal/utils"
	"github.com/wpmend-dev/wpmend-agent/pkg/sshexec"
)

// OpsHandlers serves the internal operator surface. It is read-only and is
// never exposed outside the private network.
type OpsHandlers struct {
	repo   *repository.Repository
	exec   *sshexec.Client
	logger *logger.Logger
}

func NewOpsHandlers(repo *repository.Repository, exec *sshexec.Client, l *logger.Logger) *OpsHandlers {
	return &OpsHandlers{
		repo:   repo,
		exec:   exec,
		logger: l,
	}
}

// GetPoolStats reports the idle session count per server uid.
func (h *OpsHandlers) GetPoolStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"idle_sessions": h.exec.Pool().Stats(),
	})
}

// GetServerEnvironment returns the most recently captured environment
// snapshot for any incident on the given server.
func (h *OpsHandlers) GetServerEnvironment(c *gin.Context) {
	serverUID := c.Param("uid")

	server, err := h.repo.Server.ReadServer(serverUID)

	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "invalid server ID",
		})
		return
	}

	incidents, _, err := h.repo.Incident.ListIncidents(
		&utils.ListIncidentsFilter{ServerID: &server.ID},
		utils.WithSortBy("updated_at"),
		utils.WithOrder(utils.OrderDesc),
	)

	if err != nil {
		h.logger.Error().Caller().Msgf("error listing incidents for server %s: %v", serverUID, err)

		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "internal server error",
		})
		return
	}

	environmentType := models.EvidenceTypeEnvironment

	for _, incident := range incidents {
		evidence, err := h.repo.Evidence.ListEvidence(&utils.ListEvidenceFilter{
			IncidentID:   &incident.ID,
			EvidenceType: &environmentType,
		})

		if err != nil {
			h.logger.Error().Caller().Msgf("error listing evidence for incident %s: %v", incident.UniqueID, err)

			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "internal server error",
			})
			return
		}

		if len(evidence) == 0 {
			continue
		}

		latest := evidence[len(evidence)-1]

		content := latest.Content

		if len(content) > maxEvidenceBytes {
			content = content[:maxEvidenceBytes]
		}

		c.JSON(http.StatusOK, gin.H{
			"server_id":   serverUID,
			"incident_id": incident.UniqueID,
			"captured_at": latest.Timestamp,
			"environment": content,
		})
		return
	}

	c.JSON(http.StatusNotFound, gin.H{
		"error": "no environment snapshot recorded for this server",
	})
}
