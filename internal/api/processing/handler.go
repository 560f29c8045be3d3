package processing

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"flowvault/database"
	"flowvault/internal/api/httpx"
	"flowvault/internal/domain/batches"
)

// GET /processing
func ListBatches(c *gin.Context) {
	if _, ok := httpx.CurrentUser(c); !ok {
		return
	}
	q := database.DB.Model(&batches.ProcessingBatch{}).Preload("Items").Order("start_time DESC")
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	var list []batches.ProcessingBatch
	if err := q.Find(&list).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load processing batches"})
		return
	}
	c.JSON(http.StatusOK, list)
}

// GET /processing/:id  -> batch plus run statistics
func GetBatch(c *gin.Context) {
	if _, ok := httpx.CurrentUser(c); !ok {
		return
	}
	var batch batches.ProcessingBatch
	if err := database.DB.Preload("Items").First(&batch, "id = ?", c.Param("id")).Error; err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batch": batch, "stats": batches.Stats(&batch)})
}

// POST /processing
func CreateBatch(c *gin.Context) {
	actor, ok := httpx.CurrentUser(c)
	if !ok {
		return
	}

	var input struct {
		BookIDs []string `json:"book_ids" binding:"required,min=1"`
		Info    string   `json:"info"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var batch *batches.ProcessingBatch
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		batch, err = batches.CreateProcessingBatch(tx, actor, input.BookIDs, input.Info)
		return err
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, batch)
}

// PUT /processing/:id  -> batch-level worker report
func UpdateBatch(c *gin.Context) {
	actor, ok := httpx.CurrentUser(c)
	if !ok {
		return
	}

	var input struct {
		Status   string   `json:"status"`
		Progress *float64 `json:"progress"`
		Info     string   `json:"info"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var batch *batches.ProcessingBatch
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		batch, err = batches.UpdateProcessingBatch(tx, actor, c.Param("id"), batches.BatchUpdate{
			Status:   input.Status,
			Progress: input.Progress,
			Info:     input.Info,
		})
		return err
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

// PUT /processing/items/:itemId  -> worker report
func UpdateItem(c *gin.Context) {
	actor, ok := httpx.CurrentUser(c)
	if !ok {
		return
	}

	var input struct {
		Status             string `json:"status" binding:"required"`
		ProcessedPageCount *int   `json:"processed_page_count"`
		Info               string `json:"info"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var batch *batches.ProcessingBatch
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		batch, err = batches.UpdateProcessingItem(tx, actor, c.Param("itemId"), batches.ItemUpdate{
			Status:             input.Status,
			ProcessedPageCount: input.ProcessedPageCount,
			Info:               input.Info,
		})
		return err
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}
