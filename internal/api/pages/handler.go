package pages

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"flowvault/database"
	"flowvault/internal/api/httpx"
	"flowvault/internal/domain/audit"
	"flowvault/internal/domain/books"
)

// GET /pages?book_id=
func ListPages(c *gin.Context) {
	if _, ok := httpx.CurrentUser(c); !ok {
		return
	}
	bookID := c.Query("book_id")
	if bookID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "book_id is required"})
		return
	}
	var list []books.Page
	if err := database.DB.Where("book_id = ?", bookID).Order("position ASC").Find(&list).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load pages"})
		return
	}
	c.JSON(http.StatusOK, list)
}

// PUT /pages/:id  -> review annotations: flag, comment, rejection tags
func UpdatePage(c *gin.Context) {
	actor, ok := httpx.CurrentUser(c)
	if !ok {
		return
	}

	var input struct {
		Flag        *string  `json:"flag"`
		FlagComment *string  `json:"flag_comment"`
		Tags        []string `json:"tags"`
		ImageURL    *string  `json:"image_url"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var page books.Page
	if err := database.DB.First(&page, "id = ?", c.Param("id")).Error; err != nil {
		httpx.Error(c, err)
		return
	}

	updates := map[string]any{}
	if input.Flag != nil {
		switch *input.Flag {
		case books.FlagNone, books.FlagInfo, books.FlagWarning, books.FlagError:
			updates["flag"] = *input.Flag
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown flag level"})
			return
		}
		updates["flag_comment"] = input.FlagComment
	}
	if input.Tags != nil {
		raw, _ := json.Marshal(input.Tags)
		updates["tags"] = string(raw)
	}
	if input.ImageURL != nil {
		updates["image_url"] = *input.ImageURL
	}
	if len(updates) == 0 {
		c.JSON(http.StatusOK, page)
		return
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&page).Updates(updates).Error; err != nil {
			return err
		}
		if input.Flag != nil && *input.Flag != books.FlagNone {
			return audit.Append(tx, audit.Entry{
				Action:  "Page Flagged",
				Details: "Page \"" + page.Name + "\" flagged as " + *input.Flag + ".",
				UserID:  actor.ID,
				BookID:  page.BookID,
				PageID:  page.ID,
			})
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update page"})
		return
	}
	c.JSON(http.StatusOK, page)
}

// POST /books/:id/pages  -> insert a replacement page during correction
func AddPage(c *gin.Context) {
	actor, ok := httpx.CurrentUser(c)
	if !ok {
		return
	}

	var input struct {
		Name     string `json:"name"`
		Position *int   `json:"position"`
		ImageURL string `json:"image_url"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var book books.Book
	if err := database.DB.First(&book, "id = ?", c.Param("id")).Error; err != nil {
		httpx.Error(c, err)
		return
	}

	var page books.Page
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		position := 0
		if input.Position != nil {
			position = *input.Position
		} else {
			var max int
			tx.Model(&books.Page{}).Where("book_id = ?", book.ID).
				Select("COALESCE(MAX(position), 0)").Scan(&max)
			position = max + 1
		}
		name := input.Name
		if name == "" {
			name = book.Name
		}
		page = books.Page{
			BookID:   book.ID,
			ClientID: book.ClientID,
			Name:     name,
			Status:   book.Status,
			Position: position,
			ImageURL: input.ImageURL,
		}
		if err := tx.Create(&page).Error; err != nil {
			return err
		}
		if err := tx.Model(&books.Book{}).Where("id = ?", book.ID).
			Update("expected_page_count", gorm.Expr("expected_page_count + 1")).Error; err != nil {
			return err
		}
		return audit.Append(tx, audit.Entry{
			Action:  "Page Added",
			Details: "Page \"" + page.Name + "\" added to book \"" + book.Name + "\".",
			UserID:  actor.ID,
			BookID:  book.ID,
			PageID:  page.ID,
		})
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add page"})
		return
	}
	c.JSON(http.StatusCreated, page)
}

// DELETE /pages/:id
func DeletePage(c *gin.Context) {
	actor, ok := httpx.CurrentUser(c)
	if !ok {
		return
	}

	var page books.Page
	if err := database.DB.First(&page, "id = ?", c.Param("id")).Error; err != nil {
		httpx.Error(c, err)
		return
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&page).Error; err != nil {
			return err
		}
		if err := tx.Model(&books.Book{}).Where("id = ? AND expected_page_count > 0", page.BookID).
			Update("expected_page_count", gorm.Expr("expected_page_count - 1")).Error; err != nil {
			return err
		}
		return audit.Append(tx, audit.Entry{
			Action:  "Page Removed",
			Details: "Page \"" + page.Name + "\" was removed.",
			UserID:  actor.ID,
			BookID:  page.BookID,
		})
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete page"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Page deleted"})
}
