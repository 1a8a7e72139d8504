package incident

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/wpmend-dev/wpmend-agent/api/server/config"
	"github.com/wpmend-dev/wpmend-agent/api/server/shared"
	"github.com/wpmend-dev/wpmend-agent/api/server/types"
	"github.com/wpmend-dev/wpmend-agent/internal/models"
	"github.com/wpmend-dev/wpmend-agent/internal/utils"
	"gorm.io/gorm"
)

type ListTimelineHandler struct {
	decoder      *shared.RequestDecoder
	resultWriter *shared.ResultWriter
	config       *config.Config
}

func NewListTimelineHandler(config *config.Config) *ListTimelineHandler {
	return &ListTimelineHandler{
		decoder:      shared.NewRequestDecoder(config.Logger),
		resultWriter: shared.NewResultWriter(config.Logger),
		config:       config,
	}
}

func (h *ListTimelineHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	incidentUID := chi.URLParam(r, "uid")

	if incidentUID == "" {
		shared.WriteError(w, r, http.StatusBadRequest, "empty incident id")
		return
	}

	req := &types.ListTimelineRequest{
		PaginationRequest: &types.PaginationRequest{},
	}

	if ok := h.decoder.DecodeQuery(w, r, req); !ok {
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

	filter := &utils.ListTimelineFilter{
		IncidentID: &incident.ID,
	}

	if req.EventType != nil {
		eventType := models.EventType(*req.EventType)
		filter.EventType = &eventType
	}

	if req.Phase != nil {
		phase := models.IncidentState(*req.Phase)
		filter.Phase = &phase
	}

	events, paginatedResult, err := h.config.Repository.IncidentEvent.ListEvents(
		filter,
		utils.WithSortBy("id"),
		utils.WithOrder(utils.OrderAsc),
		utils.WithLimit(pageSize),
		utils.WithOffset(req.Page*pageSize),
	)

	if err != nil {
		h.config.Logger.Error().Caller().Msgf("could not list timeline for %s: %v", incidentUID, err)

		shared.WriteError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	res := &types.ListTimelineResponse{
		Events: make([]*types.IncidentEvent, 0, len(events)),
		Pagination: &types.PaginationResponse{
			NumPages:    paginatedResult.NumPages,
			CurrentPage: paginatedResult.CurrentPage,
			NextPage:    paginatedResult.NextPage,
		},
	}

	for _, event := range events {
		res.Events = append(res.Events, event.ToAPIType())
	}

	h.resultWriter.WriteResult(w, r, res)
}
