package queues

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"flowvault/database"
	"flowvault/internal/api/httpx"
	"flowvault/internal/domain/books"
	"flowvault/internal/domain/users"
	"flowvault/internal/domain/workflow"
)

// GET /queues/:role?project_id=
//
// The queue holds books waiting in the role's claim stage that are either
// unassigned or assigned to the caller; started holds the caller's work in
// progress. Admins see everything in both stages.
func GetQueue(c *gin.Context) {
	actor, ok := httpx.CurrentUser(c)
	if !ok {
		return
	}

	role := workflow.Role(c.Param("role"))
	queueStage, ok2 := workflow.QueueStage(role)
	if !ok2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown role"})
		return
	}
	if actor.Role != users.RoleAdmin && !actor.HoldsStageRole(role) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Permission denied"})
		return
	}
	startedStage, _ := workflow.StartedStage(role)
	userCol := map[workflow.Role]string{
		workflow.RoleScanner: "scanner_user_id",
		workflow.RoleIndexer: "indexer_user_id",
		workflow.RoleQC:      "qc_user_id",
	}[role]

	projectID := c.Query("project_id")
	scope := func(status string) *gorm.DB {
		q := database.DB.Model(&books.Book{}).Where("status = ?", status)
		if projectID != "" {
			q = q.Where("project_id = ?", projectID)
		}
		// Operators restricted to specific projects never see the rest.
		if actor.Role != users.RoleAdmin && len(actor.Projects) > 0 {
			ids := make([]string, len(actor.Projects))
			for i, p := range actor.Projects {
				ids[i] = p.ProjectID
			}
			q = q.Where("project_id IN ?", ids)
		}
		return q
	}

	var queue, started []books.Book
	queueQ := scope(queueStage.Status)
	startedQ := scope(startedStage.Status)
	if actor.Role != users.RoleAdmin {
		queueQ = queueQ.Where("("+userCol+" IS NULL OR "+userCol+" = ?)", actor.ID)
		startedQ = startedQ.Where(userCol+" = ?", actor.ID)
	}
	// High before Medium before Low, oldest first within a priority.
	priorityOrder := "CASE priority WHEN 'High' THEN 0 WHEN 'Medium' THEN 1 ELSE 2 END, created_at ASC"
	if err := queueQ.Order(priorityOrder).Find(&queue).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load queue"})
		return
	}
	if err := startedQ.Order("created_at ASC").Find(&started).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load queue"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"queue": queue, "started": started})
}
