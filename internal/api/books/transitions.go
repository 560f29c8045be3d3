package books

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"flowvault/database"
	"flowvault/internal/api/httpx"
	"flowvault/internal/domain/books"
	"flowvault/internal/domain/projects"
	"flowvault/internal/domain/workflow"
)

// POST /books/:id/transition
func Transition(c *gin.Context) {
	actor, ok := httpx.CurrentUser(c)
	if !ok {
		return
	}

	var input struct {
		Action      string `json:"action" binding:"required"`
		Note        string `json:"note"`
		Role        string `json:"role"`
		AssigneeID  string `json:"assignee_id"`
		TargetStage string `json:"target_stage"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bookID := c.Param("id")
	var result *books.Book
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var book books.Book
		if err := tx.First(&book, "id = ?", bookID).Error; err != nil {
			return err
		}
		enabled, err := projects.EnabledStageKeys(tx, book.ProjectID)
		if err != nil {
			return err
		}
		result, err = books.ApplyTransition(tx, bookID, actor, enabled, books.TransitionRequest{
			Action:      input.Action,
			Note:        input.Note,
			Role:        workflow.Role(input.Role),
			AssigneeID:  input.AssigneeID,
			TargetStage: workflow.StageKey(input.TargetStage),
		})
		return err
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// POST /books/:id/complete-scan
func CompleteScan(c *gin.Context) {
	actor, ok := httpx.CurrentUser(c)
	if !ok {
		return
	}

	var input struct {
		ActualPageCount int `json:"actual_page_count" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var result *books.Book
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = books.CompleteScan(tx, c.Param("id"), actor, input.ActualPageCount)
		return err
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// POST /books/:id/override  -> admin escape hatch, reason required
func OverrideStatus(c *gin.Context) {
	actor, ok := httpx.CurrentUser(c)
	if !ok {
		return
	}

	var input struct {
		Status string `json:"status" binding:"required"`
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var result *books.Book
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = books.Override(tx, c.Param("id"), actor, input.Status, input.Reason)
		return err
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// POST /books/:id/reassign  -> admin only
func ReassignTask(c *gin.Context) {
	actor, ok := httpx.CurrentUser(c)
	if !ok {
		return
	}

	var input struct {
		Role   string `json:"role" binding:"required"`
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var result *books.Book
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = books.Reassign(tx, c.Param("id"), actor, workflow.Role(input.Role), input.UserID)
		return err
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
