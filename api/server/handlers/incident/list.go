package incident

import (
	"errors"
	"net/http"

	"github.com/wpmend-dev/wpmend-agent/api/server/config"
	"github.com/wpmend-dev/wpmend-agent/api/server/shared"
	"github.com/wpmend-dev/wpmend-agent/api/server/types"
	"github.com/wpmend-dev/wpmend-agent/internal/models"
	"github.com/wpmend-dev/wpmend-agent/internal/utils"
	"gorm.io/gorm"
)

const pageSize = 50

type ListIncidentsHandler struct {
	decoder      *shared.RequestDecoder
	resultWriter *shared.ResultWriter
	config       *config.Config
}

func NewListIncidentsHandler(config *config.Config) *ListIncidentsHandler {
	return &ListIncidentsHandler{
		decoder:      shared.NewRequestDecoder(config.Logger),
		resultWriter: shared.NewResultWriter(config.Logger),
		config:       config,
	}
}

func (h *ListIncidentsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := &types.ListIncidentsRequest{
		PaginationRequest: &types.PaginationRequest{},
	}

	if ok := h.decoder.DecodeQuery(w, r, req); !ok {
		return
	}

	filter := &utils.ListIncidentsFilter{}

	if req.State != nil {
		state := models.IncidentState(*req.State)
		filter.State = &state
	}

	// a filter naming an unknown site or server matches nothing
	if req.SiteDomain != nil {
		site, err := h.config.Repository.Server.ReadSiteByDomain(*req.SiteDomain)

		if err != nil {
			h.writeEmpty(w, r)
			return
		}

		filter.SiteID = &site.ID
	}

	if req.ServerName != nil {
		server, err := h.config.Repository.Server.ReadServerByName(*req.ServerName)

		if err != nil {
			h.writeEmpty(w, r)
			return
		}

		filter.ServerID = &server.ID
	}

	incidents, paginatedResult, err := h.config.Repository.Incident.ListIncidents(
		filter,
		utils.WithSortBy("updated_at"),
		utils.WithOrder(utils.OrderDesc),
		utils.WithLimit(pageSize),
		utils.WithOffset(req.Page*pageSize),
	)

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		h.config.Logger.Error().Caller().Msgf("could not list incidents: %v", err)

		shared.WriteError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	res := &types.ListIncidentsResponse{
		Incidents: make([]*types.IncidentMeta, 0, len(incidents)),
		Pagination: &types.PaginationResponse{
			NumPages:    paginatedResult.NumPages,
			CurrentPage: paginatedResult.CurrentPage,
			NextPage:    paginatedResult.NextPage,
		},
	}

	siteDomains := map[uint]string{}
	serverNames := map[uint]string{}

	for _, incident := range incidents {
		meta := incident.ToAPITypeMeta()
		meta.SiteDomain = h.siteDomain(siteDomains, incident.SiteID)
		meta.ServerName = h.serverName(serverNames, incident.ServerID)

		res.Incidents = append(res.Incidents, meta)
	}

	h.resultWriter.WriteResult(w, r, res)
}

// siteDomain resolves a site's domain, memoized across one page of results.
func (h *ListIncidentsHandler) siteDomain(cache map[uint]string, id uint) string {
	if domain, ok := cache[id]; ok {
		return domain
	}

	domain := ""

	if site, err := h.config.Repository.Server.ReadSiteByID(id); err == nil {
		domain = site.Domain
	}

	cache[id] = domain

	return domain
}

func (h *ListIncidentsHandler) serverName(cache map[uint]string, id uint) string {
	if name, ok := cache[id]; ok {
		return name
	}

	name := ""

	if server, err := h.config.Repository.Server.ReadServerByID(id); err == nil {
		name = server.Name
	}

	cache[id] = name

	return name
}

func (h *ListIncidentsHandler) writeEmpty(w http.ResponseWriter, r *http.Request) {
	h.resultWriter.WriteResult(w, r, &types.ListIncidentsResponse{
		Incidents:  []*types.IncidentMeta{},
		Pagination: &types.PaginationResponse{},
	})
}
