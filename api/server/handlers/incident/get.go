package incident

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/wpmend-dev/wpmend-agent/api/server/config"
	"github.com/wpmend-dev/wpmend-agent/api/server/shared"
	"gorm.io/gorm"
)

type GetIncidentHandler struct {
	resultWriter *shared.ResultWriter
	config       *config.Config
}

func NewGetIncidentHandler(config *config.Config) *GetIncidentHandler {
	return &GetIncidentHandler{
		resultWriter: shared.NewResultWriter(config.Logger),
		config:       config,
	}
}

func (h *GetIncidentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	incidentUID := chi.URLParam(r, "uid")

	if incidentUID == "" {
		shared.WriteError(w, r, http.StatusBadRequest, "empty incident id")
		return
	}

	incident, err := h.config.Repository.Incident.ReadIncident(incidentUID)

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			shared.WriteError(w, r, http.StatusNotFound, "no such incident")
			return
		}

		h.config.Logger.Error().Caller().Msgf("could not read incident %s: %v", incidentUID, err)

		shared.WriteError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	res := incident.ToAPIType()

	// target names are resolved here because the meta converter only sees
	// the flat foreign keys
	if site, server, err := h.config.Repository.Server.ReadIncidentTarget(incident); err == nil {
		res.SiteDomain = site.Domain
		res.ServerName = server.Name
	}

	h.resultWriter.WriteResult(w, r, res)
}
