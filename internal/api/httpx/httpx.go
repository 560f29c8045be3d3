package httpx

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"flowvault/database"
	"flowvault/internal/domain/users"
	"flowvault/internal/domain/workflow"
)

// CurrentUser loads the authenticated user from the token claims set by the
// auth middleware. Aborts with 401 when the token does not map to an active
// user.
func CurrentUser(c *gin.Context) (*users.User, bool) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return nil, false
	}
	var user users.User
	if err := database.DB.Preload("Projects").First(&user, "id = ?", userID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return nil, false
	}
	if user.Status != "active" {
		c.JSON(http.StatusForbidden, gin.H{"error": "Account disabled"})
		return nil, false
	}
	return &user, true
}

// Error maps domain errors onto HTTP responses. Conflicts and illegal
// transitions both come back as 409 so clients refetch and retry.
func Error(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, workflow.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "Permission denied"})
	case errors.Is(err, workflow.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "Transition not allowed from the current status"})
	case errors.Is(err, workflow.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "The book changed underneath you, reload and retry"})
	case errors.Is(err, workflow.ErrUnknownStage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown workflow stage"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}
