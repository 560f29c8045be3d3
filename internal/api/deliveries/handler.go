package deliveries

import (
	"math/rand"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"flowvault/database"
	"flowvault/internal/api/httpx"
	"flowvault/internal/domain/batches"
	"flowvault/internal/domain/users"
)

// Sampling randomness is package state so tests can pin the seed.
var rng = rand.New(rand.NewSource(time.Now().UnixNano()))

// GET /deliveries?client_id=&status=
func ListDeliveries(c *gin.Context) {
	actor, ok := httpx.CurrentUser(c)
	if !ok {
		return
	}

	q := database.DB.Model(&batches.DeliveryBatch{}).Preload("Items").Order("creation_date DESC")
	if actor.Role == users.RoleClient && actor.ClientID != nil {
		q = q.Where("client_id = ?", *actor.ClientID)
	} else if clientID := c.Query("client_id"); clientID != "" {
		q = q.Where("client_id = ?", clientID)
	}
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var list []batches.DeliveryBatch
	if err := q.Find(&list).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load deliveries"})
		return
	}
	c.JSON(http.StatusOK, list)
}

// GET /deliveries/:id
func GetDelivery(c *gin.Context) {
	actor, ok := httpx.CurrentUser(c)
	if !ok {
		return
	}

	var batch batches.DeliveryBatch
	if err := database.DB.Preload("Items").First(&batch, "id = ?", c.Param("id")).Error; err != nil {
		httpx.Error(c, err)
		return
	}
	if actor.Role == users.RoleClient && (actor.ClientID == nil || *actor.ClientID != batch.ClientID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Permission denied"})
		return
	}
	c.JSON(http.StatusOK, batch)
}

// POST /deliveries
func CreateDelivery(c *gin.Context) {
	actor, ok := httpx.CurrentUser(c)
	if !ok {
		return
	}

	var input struct {
		ClientID string   `json:"client_id" binding:"required"`
		BookIDs  []string `json:"book_ids" binding:"required,min=1"`
		Info     string   `json:"info"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var batch *batches.DeliveryBatch
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		batch, err = batches.CreateDelivery(tx, actor, input.ClientID, input.BookIDs, input.Info)
		return err
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, batch)
}

// POST /deliveries/:id/distribute
func Distribute(c *gin.Context) {
	actor, ok := httpx.CurrentUser(c)
	if !ok {
		return
	}

	var input struct {
		Percent      int      `json:"percent" binding:"required,min=1,max=100"`
		ValidatorIDs []string `json:"validator_ids" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var batch *batches.DeliveryBatch
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		batch, err = batches.Distribute(tx, actor, c.Param("id"), input.Percent, input.ValidatorIDs, rng)
		return err
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

// PUT /deliveries/items/:itemId  -> one validator verdict
func DecideItem(c *gin.Context) {
	actor, ok := httpx.CurrentUser(c)
	if !ok {
		return
	}

	var input struct {
		Decision string `json:"decision" binding:"required"`
		Reason   string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var item *batches.DeliveryBatchItem
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		item, err = batches.DecideItem(tx, actor, c.Param("itemId"), input.Decision, input.Reason)
		return err
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// POST /deliveries/:id/finalize
func Finalize(c *gin.Context) {
	actor, ok := httpx.CurrentUser(c)
	if !ok {
		return
	}

	var input struct {
		Mode string `json:"mode" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var batch *batches.DeliveryBatch
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		batch, err = batches.FinalizeDelivery(tx, actor, c.Param("id"), input.Mode)
		return err
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}
