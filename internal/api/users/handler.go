package users

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"flowvault/database"
	"flowvault/internal/api/httpx"
	"flowvault/internal/domain/users"
	"flowvault/internal/domain/workflow"
)

// GET /users?role=
func ListUsers(c *gin.Context) {
	if _, ok := httpx.CurrentUser(c); !ok {
		return
	}
	q := database.DB.Model(&users.User{}).Order("name ASC")
	if role := c.Query("role"); role != "" {
		q = q.Where("role = ?", role)
	}
	var list []users.User
	if err := q.Find(&list).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load users"})
		return
	}
	c.JSON(http.StatusOK, list)
}

// GET /users/assignable?role=scanner&project_id=
//
// Candidates for assignment and reassignment dropdowns: active operators who
// hold the stage role and may act on the project. Admins never appear.
func ListAssignable(c *gin.Context) {
	if _, ok := httpx.CurrentUser(c); !ok {
		return
	}
	role := workflow.Role(c.Query("role"))
	if _, ok := workflow.QueueStage(role); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown role"})
		return
	}
	projectID := c.Query("project_id")

	var all []users.User
	if err := database.DB.Preload("Projects").
		Where("status = ? AND role <> ?", "active", users.RoleAdmin).
		Order("name ASC").Find(&all).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load users"})
		return
	}

	out := make([]users.User, 0, len(all))
	for _, u := range all {
		if !u.HoldsStageRole(role) {
			continue
		}
		if projectID != "" && !u.AuthorizedForProject(projectID) {
			continue
		}
		out = append(out, u)
	}
	c.JSON(http.StatusOK, out)
}

// POST /users  -> admin only
func CreateUser(c *gin.Context) {
	if _, ok := httpx.CurrentUser(c); !ok {
		return
	}

	var input struct {
		Name       string   `json:"name" binding:"required"`
		Username   string   `json:"username" binding:"required"`
		Password   string   `json:"password" binding:"required,min=8"`
		Email      string   `json:"email"`
		Role       string   `json:"role" binding:"required"`
		ClientID   *string  `json:"client_id"`
		ProjectIDs []string `json:"project_ids"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch input.Role {
	case users.RoleAdmin, users.RoleClient, users.RoleScanning, users.RoleIndexing,
		users.RoleQCSpecialist, users.RoleMultiOperator:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown role"})
		return
	}
	if input.Role == users.RoleClient && input.ClientID == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Client users need a client_id"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}
	password := string(hashed)

	user := users.User{
		Name:     input.Name,
		Username: input.Username,
		Password: &password,
		Role:     input.Role,
		ClientID: input.ClientID,
		Status:   "active",
	}
	if input.Email != "" {
		user.Email = &input.Email
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		for _, pid := range input.ProjectIDs {
			if err := tx.Create(&users.UserProject{UserID: user.ID, ProjectID: pid}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}
	c.JSON(http.StatusCreated, user)
}

// PUT /users/:id  -> admin only; password and project scope included
func UpdateUser(c *gin.Context) {
	if _, ok := httpx.CurrentUser(c); !ok {
		return
	}

	var input struct {
		Name       string    `json:"name"`
		Password   string    `json:"password"`
		Status     string    `json:"status"`
		ProjectIDs *[]string `json:"project_ids"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user users.User
	if err := database.DB.First(&user, "id = ?", c.Param("id")).Error; err != nil {
		httpx.Error(c, err)
		return
	}

	updates := map[string]any{}
	if input.Name != "" {
		updates["name"] = input.Name
	}
	if input.Status == "active" || input.Status == "disabled" {
		updates["status"] = input.Status
	}
	if input.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
			return
		}
		updates["password"] = string(hashed)
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(&user).Updates(updates).Error; err != nil {
				return err
			}
		}
		if input.ProjectIDs != nil {
			if err := tx.Where("user_id = ?", user.ID).Delete(&users.UserProject{}).Error; err != nil {
				return err
			}
			for _, pid := range *input.ProjectIDs {
				if err := tx.Create(&users.UserProject{UserID: user.ID, ProjectID: pid}).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
		return
	}
	c.JSON(http.StatusOK, user)
}
