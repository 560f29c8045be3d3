package projects

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"flowvault/internal/domain/workflow"
)

type Project struct {
	ID          string     `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID    string     `gorm:"type:uuid;not null;index" json:"client_id"`
	Name        string     `gorm:"not null" json:"name"`
	Description string     `json:"description,omitempty"`
	Status      string     `gorm:"not null;default:'In Progress'" json:"status"` // Planning | In Progress | Complete | On Hold
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Info        string     `json:"info,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WorkflowStage is one enabled optional stage of a project's workflow.
// Mandatory stages are implicit and never stored.
type WorkflowStage struct {
	ProjectID string            `gorm:"type:uuid;primaryKey" json:"project_id"`
	StageKey  workflow.StageKey `gorm:"primaryKey" json:"stage_key"`
	Position  int               `gorm:"not null" json:"position"`
}

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// EnabledStageKeys loads the project's enabled stage keys in global order.
func EnabledStageKeys(db *gorm.DB, projectID string) ([]workflow.StageKey, error) {
	var rows []WorkflowStage
	if err := db.Where("project_id = ?", projectID).Order("position ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	keys := make([]workflow.StageKey, 0, len(rows))
	for _, r := range rows {
		keys = append(keys, r.StageKey)
	}
	return keys, nil
}

// ReplaceWorkflow rewrites the project's enabled stages. Unknown keys are a
// configuration error; mandatory stages are accepted but not persisted since
// the resolver always includes them.
func ReplaceWorkflow(tx *gorm.DB, projectID string, keys []workflow.StageKey) error {
	if err := tx.Where("project_id = ?", projectID).Delete(&WorkflowStage{}).Error; err != nil {
		return err
	}
	for i, k := range keys {
		stage, ok := workflow.ByKey(k)
		if !ok {
			return workflow.ErrUnknownStage
		}
		if stage.Mandatory {
			continue
		}
		row := WorkflowStage{ProjectID: projectID, StageKey: k, Position: i}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}
