package clients

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"flowvault/database"
	"flowvault/internal/api/httpx"
	"flowvault/internal/domain/clients"
)

// GET /clients
func ListClients(c *gin.Context) {
	if _, ok := httpx.CurrentUser(c); !ok {
		return
	}
	var list []clients.Client
	if err := database.DB.Order("name ASC").Find(&list).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load clients"})
		return
	}
	c.JSON(http.StatusOK, list)
}

// GET /clients/:id
func GetClient(c *gin.Context) {
	if _, ok := httpx.CurrentUser(c); !ok {
		return
	}
	var client clients.Client
	if err := database.DB.First(&client, "id = ?", c.Param("id")).Error; err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

type clientInput struct {
	Name         string `json:"name" binding:"required"`
	ContactEmail string `json:"contact_email"`
	ContactPhone string `json:"contact_phone"`
	Address      string `json:"address"`
	Website      string `json:"website"`
	Info         string `json:"info"`
}

// POST /clients
func CreateClient(c *gin.Context) {
	if _, ok := httpx.CurrentUser(c); !ok {
		return
	}
	var input clientInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	client := clients.Client{
		Name:         input.Name,
		ContactEmail: input.ContactEmail,
		ContactPhone: input.ContactPhone,
		Address:      input.Address,
		Website:      input.Website,
		Info:         input.Info,
	}
	if err := database.DB.Create(&client).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create client"})
		return
	}
	c.JSON(http.StatusCreated, client)
}

// PUT /clients/:id
func UpdateClient(c *gin.Context) {
	if _, ok := httpx.CurrentUser(c); !ok {
		return
	}
	var input clientInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var client clients.Client
	if err := database.DB.First(&client, "id = ?", c.Param("id")).Error; err != nil {
		httpx.Error(c, err)
		return
	}
	if err := database.DB.Model(&client).Updates(map[string]any{
		"name":          input.Name,
		"contact_email": input.ContactEmail,
		"contact_phone": input.ContactPhone,
		"address":       input.Address,
		"website":       input.Website,
		"info":          input.Info,
	}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update client"})
		return
	}
	c.JSON(http.StatusOK, client)
}

// GET /clients/:id/rejection-tags
func ListRejectionTags(c *gin.Context) {
	if _, ok := httpx.CurrentUser(c); !ok {
		return
	}
	var list []clients.RejectionTag
	if err := database.DB.Where("client_id = ?", c.Param("id")).Order("label ASC").Find(&list).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load rejection tags"})
		return
	}
	c.JSON(http.StatusOK, list)
}

// POST /clients/:id/rejection-tags
func CreateRejectionTag(c *gin.Context) {
	if _, ok := httpx.CurrentUser(c); !ok {
		return
	}
	var input struct {
		Label       string `json:"label" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tag := clients.RejectionTag{
		ClientID:    c.Param("id"),
		Label:       input.Label,
		Description: input.Description,
	}
	if err := database.DB.Create(&tag).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create rejection tag"})
		return
	}
	c.JSON(http.StatusCreated, tag)
}

// DELETE /rejection-tags/:tagId
func DeleteRejectionTag(c *gin.Context) {
	if _, ok := httpx.CurrentUser(c); !ok {
		return
	}
	res := database.DB.Delete(&clients.RejectionTag{}, "id = ?", c.Param("tagId"))
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete rejection tag"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Rejection tag deleted"})
}
