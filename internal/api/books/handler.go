package books

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"flowvault/database"
	"flowvault/internal/api/httpx"
	"flowvault/internal/domain/audit"
	"flowvault/internal/domain/batches"
	"flowvault/internal/domain/books"
	"flowvault/internal/domain/projects"
	"flowvault/internal/domain/users"
)

// GET /books?project_id=&status=
func ListBooks(c *gin.Context) {
	actor, ok := httpx.CurrentUser(c)
	if !ok {
		return
	}

	q := database.DB.Model(&books.Book{}).Order("created_at DESC")
	if actor.Role == users.RoleClient && actor.ClientID != nil {
		q = q.Where("client_id = ?", *actor.ClientID)
	}
	if projectID := c.Query("project_id"); projectID != "" {
		q = q.Where("project_id = ?", projectID)
	}
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var list []books.Book
	if err := q.Find(&list).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load books"})
		return
	}
	c.JSON(http.StatusOK, list)
}

// GET /books/:id
func GetBook(c *gin.Context) {
	actor, ok := httpx.CurrentUser(c)
	if !ok {
		return
	}

	var book books.Book
	if err := database.DB.First(&book, "id = ?", c.Param("id")).Error; err != nil {
		httpx.Error(c, err)
		return
	}
	if actor.Role == users.RoleClient && (actor.ClientID == nil || *actor.ClientID != book.ClientID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Permission denied"})
		return
	}

	var pages []books.Page
	database.DB.Where("book_id = ?", book.ID).Order("position ASC").Find(&pages)

	c.JSON(http.StatusOK, gin.H{"book": book, "pages": pages})
}

type bookInput struct {
	Name              string `json:"name" binding:"required"`
	ExpectedPageCount int    `json:"expected_page_count"`
	Priority          string `json:"priority"`
	Author            string `json:"author"`
	ISBN              string `json:"isbn"`
	PublicationYear   *int   `json:"publication_year"`
	Info              string `json:"info"`
}

func (in bookInput) toBook(project *projects.Project) books.Book {
	priority := in.Priority
	if priority == "" {
		priority = "Medium"
	}
	return books.Book{
		ProjectID:         project.ID,
		ClientID:          project.ClientID,
		Name:              in.Name,
		ExpectedPageCount: in.ExpectedPageCount,
		Priority:          priority,
		Author:            in.Author,
		ISBN:              in.ISBN,
		PublicationYear:   in.PublicationYear,
		Info:              in.Info,
	}
}

// POST /books
func CreateBook(c *gin.Context) {
	actor, ok := httpx.CurrentUser(c)
	if !ok {
		return
	}

	var input struct {
		ProjectID string `json:"project_id" binding:"required"`
		bookInput
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var project projects.Project
	if err := database.DB.First(&project, "id = ?", input.ProjectID).Error; err != nil {
		httpx.Error(c, err)
		return
	}

	book := input.bookInput.toBook(&project)
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&book).Error; err != nil {
			return err
		}
		return audit.Append(tx, audit.Entry{
			Action:  "Book Registered",
			Details: "Book \"" + book.Name + "\" registered in project \"" + project.Name + "\".",
			UserID:  actor.ID,
			BookID:  book.ID,
		})
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create book"})
		return
	}
	c.JSON(http.StatusCreated, book)
}

// POST /books/import  -> bulk registration of a client's shipment manifest
func ImportBooks(c *gin.Context) {
	actor, ok := httpx.CurrentUser(c)
	if !ok {
		return
	}

	var input struct {
		ProjectID string      `json:"project_id" binding:"required"`
		Books     []bookInput `json:"books" binding:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var project projects.Project
	if err := database.DB.First(&project, "id = ?", input.ProjectID).Error; err != nil {
		httpx.Error(c, err)
		return
	}

	created := make([]books.Book, 0, len(input.Books))
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		for _, in := range input.Books {
			book := in.toBook(&project)
			if err := tx.Create(&book).Error; err != nil {
				return err
			}
			created = append(created, book)
		}
		return audit.Append(tx, audit.Entry{
			Action:  "Books Imported",
			Details: "Shipment manifest imported into project \"" + project.Name + "\".",
			UserID:  actor.ID,
		})
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to import books"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"count": len(created), "books": created})
}

// PUT /books/:id  -> metadata only, never status
func UpdateBook(c *gin.Context) {
	_, ok := httpx.CurrentUser(c)
	if !ok {
		return
	}

	var input bookInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var book books.Book
	if err := database.DB.First(&book, "id = ?", c.Param("id")).Error; err != nil {
		httpx.Error(c, err)
		return
	}

	updates := map[string]any{
		"name":                input.Name,
		"expected_page_count": input.ExpectedPageCount,
		"author":              input.Author,
		"isbn":                input.ISBN,
		"publication_year":    input.PublicationYear,
		"info":                input.Info,
	}
	if input.Priority != "" {
		updates["priority"] = input.Priority
	}
	if err := database.DB.Model(&book).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update book"})
		return
	}
	c.JSON(http.StatusOK, book)
}

// DELETE /books/:id  -> admin only, takes pages, batch items and audit trail
// with it
func DeleteBook(c *gin.Context) {
	actor, ok := httpx.CurrentUser(c)
	if !ok {
		return
	}

	var book books.Book
	if err := database.DB.First(&book, "id = ?", c.Param("id")).Error; err != nil {
		httpx.Error(c, err)
		return
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("book_id = ?", book.ID).Delete(&books.Page{}).Error; err != nil {
			return err
		}
		if err := tx.Where("book_id = ?", book.ID).Delete(&batches.DeliveryBatchItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("book_id = ?", book.ID).Delete(&batches.ProcessingBatchItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("book_id = ?", book.ID).Delete(&audit.Log{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&book).Error; err != nil {
			return err
		}
		// The deletion itself is still recorded, against the actor only, so
		// the entry survives the cascade above.
		return audit.Append(tx, audit.Entry{
			Action:  "Book Deleted",
			Details: "Book \"" + book.Name + "\" and its history were removed by " + actor.Name + ".",
			UserID:  actor.ID,
		})
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete book"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Book deleted"})
}
