package repository

import (
	"github.com/wpmend-dev/wpmend-agent/internal/models"
	"gorm.io/gorm"
)

type CommandExecutionRepository struct {
	db *gorm.DB
}

// NewCommandExecutionRepository returns pointer to repo along with the db
func NewCommandExecutionRepository(db *gorm.DB) *CommandExecutionRepository {
	return &CommandExecutionRepository{db}
}

func (r *CommandExecutionRepository) CreateCommandExecution(cmd *models.CommandExecution) (*models.CommandExecution, error) {
	if err := r.db.Create(cmd).Error; err != nil {
		return nil, err
	}

	return cmd, nil
}

func (r *CommandExecutionRepository) ListCommandExecutions(incidentID uint) ([]*models.CommandExecution, error) {
	var cmds []*models.CommandExecution

	if err := r.db.
		Where("incident_id = ?", incidentID).
		Order("id asc").
		Find(&cmds).Error; err != nil {
		return nil, err
	}

	return cmds, nil
}
