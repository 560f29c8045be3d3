package users

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"flowvault/internal/domain/workflow"
)

// Role names as stored on users. Operators hold exactly one of the stage
// roles (or Multi-Operator); Admin supervises and never performs stage work.
const (
	RoleAdmin         = "Admin"
	RoleClient        = "Client"
	RoleScanning      = "Scanning"
	RoleIndexing      = "Indexing"
	RoleQCSpecialist  = "QC Specialist"
	RoleMultiOperator = "Multi-Operator"
)

type User struct {
	ID       string  `gorm:"type:uuid;primaryKey" json:"id"`
	Name     string  `gorm:"not null" json:"name"`
	Username string  `gorm:"not null;uniqueIndex:idx_users_username" json:"username"`
	Password *string `json:"-"`
	Email    *string `json:"email,omitempty"`
	Role     string  `gorm:"not null" json:"role"`
	Status   string  `gorm:"not null;default:'active'" json:"status"` // active | disabled

	// Client-side users belong to one client organization.
	ClientID *string `gorm:"type:uuid;index" json:"client_id,omitempty"`

	// Operators may be restricted to specific projects. No rows means the
	// user may act on any project.
	Projects []UserProject `gorm:"constraint:OnDelete:CASCADE;" json:"-"`

	DefaultProjectID *string    `gorm:"type:uuid" json:"default_project_id,omitempty"`
	LastLogin        *time.Time `json:"last_login,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type UserProject struct {
	UserID    string `gorm:"type:uuid;primaryKey"`
	ProjectID string `gorm:"type:uuid;primaryKey"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// HoldsStageRole reports whether the user may act as the given stage role.
// Multi-Operator covers all three; Admin covers none (supervision only).
func (u *User) HoldsStageRole(role workflow.Role) bool {
	if u.Role == RoleMultiOperator {
		return role != workflow.RoleNone
	}
	switch role {
	case workflow.RoleScanner:
		return u.Role == RoleScanning
	case workflow.RoleIndexer:
		return u.Role == RoleIndexing
	case workflow.RoleQC:
		return u.Role == RoleQCSpecialist
	}
	return false
}

// AuthorizedForProject reports whether the user may touch books of the given
// project. Users without explicit project rows see every project.
func (u *User) AuthorizedForProject(projectID string) bool {
	if u.Role == RoleAdmin || len(u.Projects) == 0 {
		return true
	}
	for _, p := range u.Projects {
		if p.ProjectID == projectID {
			return true
		}
	}
	return false
}
