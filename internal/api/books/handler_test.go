package books_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"flowvault/database"
	booksapi "flowvault/internal/api/books"
	"flowvault/internal/domain/audit"
	"flowvault/internal/domain/books"
	"flowvault/internal/domain/clients"
	"flowvault/internal/domain/projects"
	"flowvault/internal/domain/users"
)

type deleteFixture struct {
	router *gin.Engine
	db     *gorm.DB
	admin  users.User
	book   books.Book
}

func setupDelete(t *testing.T) *deleteFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	database.DB = db

	f := &deleteFixture{db: db}
	client := clients.Client{Name: "Museum"}
	require.NoError(t, db.Create(&client).Error)
	project := projects.Project{ClientID: client.ID, Name: "Letters"}
	require.NoError(t, db.Create(&project).Error)
	f.admin = users.User{Name: "Ada", Username: "ada", Role: users.RoleAdmin}
	require.NoError(t, db.Create(&f.admin).Error)

	f.book = books.Book{ProjectID: project.ID, ClientID: client.ID, Name: "Deeds Vol. 3", Status: "Storage"}
	require.NoError(t, db.Create(&f.book).Error)
	for i := 1; i <= 2; i++ {
		page := books.Page{BookID: f.book.ID, ClientID: client.ID, Name: "p", Status: f.book.Status, Position: i}
		require.NoError(t, db.Create(&page).Error)
	}
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return audit.Append(tx, audit.Entry{Action: "Scanning Finished", UserID: f.admin.ID, BookID: f.book.ID})
	}))

	f.router = gin.New()
	// Stand-in for the jwt middleware: the test names the caller directly.
	f.router.DELETE("/books/:id", func(c *gin.Context) {
		c.Set("user_id", c.GetHeader("X-Test-User"))
		booksapi.DeleteBook(c)
	})
	return f
}

func TestDeleteBookCascades(t *testing.T) {
	f := setupDelete(t)

	req := httptest.NewRequest(http.MethodDelete, "/books/"+f.book.ID, nil)
	req.Header.Set("X-Test-User", f.admin.ID)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var n int64
	require.NoError(t, f.db.Model(&books.Book{}).Where("id = ?", f.book.ID).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, f.db.Model(&books.Page{}).Where("book_id = ?", f.book.ID).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, f.db.Model(&audit.Log{}).Where("book_id = ?", f.book.ID).Count(&n).Error)
	assert.Zero(t, n)

	// The deletion record commits with the cascade and outlives the book.
	var logs []audit.Log
	require.NoError(t, f.db.Where("action = ?", "Book Deleted").Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Nil(t, logs[0].BookID)
	assert.Equal(t, f.admin.ID, logs[0].UserID)
}
