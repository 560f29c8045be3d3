package auditlogs

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"flowvault/database"
	"flowvault/internal/api/httpx"
	"flowvault/internal/domain/audit"
)

// LogDTO is a log row joined with the acting user's display name.
type LogDTO struct {
	audit.Log
	UserName string `json:"user_name"`
}

// GET /audit-logs?book_id=&action=&limit=
func ListLogs(c *gin.Context) {
	if _, ok := httpx.CurrentUser(c); !ok {
		return
	}

	limit := 200
	q := database.DB.Table("logs").
		Select("logs.*, users.name AS user_name").
		Joins("LEFT JOIN users ON users.id = logs.user_id").
		Order("logs.date DESC").
		Limit(limit)
	if bookID := c.Query("book_id"); bookID != "" {
		q = q.Where("logs.book_id = ?", bookID)
	}
	if action := c.Query("action"); action != "" {
		q = q.Where("logs.action = ?", action)
	}

	var list []LogDTO
	if err := q.Scan(&list).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load audit trail"})
		return
	}
	c.JSON(http.StatusOK, list)
}
