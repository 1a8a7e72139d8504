package repository

import (
	"github.com/wpmend-dev/wpmend-agent/internal/models"
	"gorm.io/gorm"
)

type ServerRepository struct {
	db *gorm.DB
}

// NewServerRepository returns pointer to repo along with the db
func NewServerRepository(db *gorm.DB) *ServerRepository {
	return &ServerRepository{db}
}

func (r *ServerRepository) CreateServer(server *models.Server) (*models.Server, error) {
	if err := r.db.Create(server).Error; err != nil {
		return nil, err
	}

	return server, nil
}

func (r *ServerRepository) ReadServer(uid string) (*models.Server, error) {
	server := &models.Server{}

	if err := r.db.Where("unique_id = ?", uid).First(server).Error; err != nil {
		return nil, err
	}

	return server, nil
}

func (r *ServerRepository) ReadServerByID(id uint) (*models.Server, error) {
	server := &models.Server{}

	if err := r.db.First(server, id).Error; err != nil {
		return nil, err
	}

	return server, nil
}

func (r *ServerRepository) ReadServerByName(name string) (*models.Server, error) {
	server := &models.Server{}

	if err := r.db.Where("name = ?", name).First(server).Error; err != nil {
		return nil, err
	}

	return server, nil
}

func (r *ServerRepository) ReadSiteByID(id uint) (*models.Site, error) {
	site := &models.Site{}

	if err := r.db.First(site, id).Error; err != nil {
		return nil, err
	}

	return site, nil
}

func (r *ServerRepository) ReadSiteByDomain(domain string) (*models.Site, error) {
	site := &models.Site{}

	if err := r.db.Where("domain = ?", domain).First(site).Error; err != nil {
		return nil, err
	}

	return site, nil
}

// ReadIncidentTarget returns the site and server bound to an incident as a
// flat pair, so core logic never traverses lazy associations.
func (r *ServerRepository) ReadIncidentTarget(incident *models.Incident) (*models.Site, *models.Server, error) {
	site, err := r.ReadSiteByID(incident.SiteID)

	if err != nil {
		return nil, nil, err
	}

	server, err := r.ReadServerByID(incident.ServerID)

	if err != nil {
		return nil, nil, err
	}

	return site, server, nil
}
