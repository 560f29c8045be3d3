package projects

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"flowvault/database"
	"flowvault/internal/api/httpx"
	"flowvault/internal/domain/projects"
	"flowvault/internal/domain/users"
	"flowvault/internal/domain/workflow"
)

// GET /projects
func ListProjects(c *gin.Context) {
	actor, ok := httpx.CurrentUser(c)
	if !ok {
		return
	}

	q := database.DB.Model(&projects.Project{}).Order("created_at DESC")
	if actor.Role == users.RoleClient && actor.ClientID != nil {
		q = q.Where("client_id = ?", *actor.ClientID)
	}

	var list []projects.Project
	if err := q.Find(&list).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load projects"})
		return
	}
	c.JSON(http.StatusOK, list)
}

// GET /projects/:id
func GetProject(c *gin.Context) {
	if _, ok := httpx.CurrentUser(c); !ok {
		return
	}
	var project projects.Project
	if err := database.DB.First(&project, "id = ?", c.Param("id")).Error; err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// POST /projects
func CreateProject(c *gin.Context) {
	if _, ok := httpx.CurrentUser(c); !ok {
		return
	}

	var input struct {
		ClientID    string `json:"client_id" binding:"required"`
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
		Info        string `json:"info"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project := projects.Project{
		ClientID:    input.ClientID,
		Name:        input.Name,
		Description: input.Description,
		Info:        input.Info,
	}
	if err := database.DB.Create(&project).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create project"})
		return
	}
	c.JSON(http.StatusCreated, project)
}

// PUT /projects/:id
func UpdateProject(c *gin.Context) {
	if _, ok := httpx.CurrentUser(c); !ok {
		return
	}

	var input struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Status      string `json:"status"`
		Info        string `json:"info"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var project projects.Project
	if err := database.DB.First(&project, "id = ?", c.Param("id")).Error; err != nil {
		httpx.Error(c, err)
		return
	}

	updates := map[string]any{}
	if input.Name != "" {
		updates["name"] = input.Name
	}
	if input.Description != "" {
		updates["description"] = input.Description
	}
	if input.Status != "" {
		updates["status"] = input.Status
	}
	if input.Info != "" {
		updates["info"] = input.Info
	}
	if err := database.DB.Model(&project).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update project"})
		return
	}
	c.JSON(http.StatusOK, project)
}

// GET /projects/:id/workflow  -> the effective stage sequence
func GetWorkflow(c *gin.Context) {
	if _, ok := httpx.CurrentUser(c); !ok {
		return
	}
	projectID := c.Param("id")
	var project projects.Project
	if err := database.DB.First(&project, "id = ?", projectID).Error; err != nil {
		httpx.Error(c, err)
		return
	}

	enabled, err := projects.EnabledStageKeys(database.DB, projectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load workflow"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"enabled": enabled,
		"stages":  workflow.EffectiveSequence(enabled),
	})
}

// PUT /projects/:id/workflow  -> replace the enabled optional stages
func UpdateWorkflow(c *gin.Context) {
	if _, ok := httpx.CurrentUser(c); !ok {
		return
	}

	var input struct {
		Stages []string `json:"stages" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	projectID := c.Param("id")
	var project projects.Project
	if err := database.DB.First(&project, "id = ?", projectID).Error; err != nil {
		httpx.Error(c, err)
		return
	}

	keys := make([]workflow.StageKey, 0, len(input.Stages))
	for _, s := range input.Stages {
		keys = append(keys, workflow.StageKey(s))
	}
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		return projects.ReplaceWorkflow(tx, projectID, keys)
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}

	enabled, _ := projects.EnabledStageKeys(database.DB, projectID)
	c.JSON(http.StatusOK, gin.H{
		"enabled": enabled,
		"stages":  workflow.EffectiveSequence(enabled),
	})
}
