package queues_test

import (
	"encoding/json"
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
	queuesapi "flowvault/internal/api/queues"
	"flowvault/internal/domain/books"
	"flowvault/internal/domain/clients"
	"flowvault/internal/domain/projects"
	"flowvault/internal/domain/users"
)

type queueFixture struct {
	router  *gin.Engine
	db      *gorm.DB
	client  clients.Client
	project projects.Project
	scanner users.User
	other   users.User
}

func setup(t *testing.T) *queueFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	database.DB = db

	f := &queueFixture{db: db}
	f.client = clients.Client{Name: "Museum"}
	require.NoError(t, db.Create(&f.client).Error)
	f.project = projects.Project{ClientID: f.client.ID, Name: "Letters"}
	require.NoError(t, db.Create(&f.project).Error)
	f.scanner = users.User{Name: "Sam", Username: "sam", Role: users.RoleScanning}
	f.other = users.User{Name: "Sal", Username: "sal", Role: users.RoleScanning}
	require.NoError(t, db.Create(&f.scanner).Error)
	require.NoError(t, db.Create(&f.other).Error)

	f.router = gin.New()
	// Stand-in for the jwt middleware: the test names the caller directly.
	f.router.GET("/queues/:role", func(c *gin.Context) {
		c.Set("user_id", c.GetHeader("X-Test-User"))
		queuesapi.GetQueue(c)
	})
	return f
}

func (f *queueFixture) addBook(t *testing.T, name, status string, assignee *string) {
	t.Helper()
	b := books.Book{
		ProjectID:     f.project.ID,
		ClientID:      f.client.ID,
		Name:          name,
		Status:        status,
		ScannerUserID: assignee,
	}
	require.NoError(t, f.db.Create(&b).Error)
}

func (f *queueFixture) get(t *testing.T, userID, role string) (int, map[string][]books.Book) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/queues/"+role, nil)
	req.Header.Set("X-Test-User", userID)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var body map[string][]books.Book
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w.Code, body
}

func TestQueueShowsClaimableAndOwnBooks(t *testing.T) {
	f := setup(t)
	f.addBook(t, "unclaimed", "To Scan", nil)
	f.addBook(t, "mine", "To Scan", &f.scanner.ID)
	f.addBook(t, "someone elses", "To Scan", &f.other.ID)
	f.addBook(t, "in progress", "Scanning Started", &f.scanner.ID)
	f.addBook(t, "their progress", "Scanning Started", &f.other.ID)
	f.addBook(t, "elsewhere", "Storage", nil)

	code, body := f.get(t, f.scanner.ID, "scanner")
	require.Equal(t, http.StatusOK, code)

	queueNames := []string{}
	for _, b := range body["queue"] {
		queueNames = append(queueNames, b.Name)
	}
	assert.ElementsMatch(t, []string{"unclaimed", "mine"}, queueNames)

	require.Len(t, body["started"], 1)
	assert.Equal(t, "in progress", body["started"][0].Name)
}

func TestQueueRejectsForeignRole(t *testing.T) {
	f := setup(t)
	code, _ := f.get(t, f.scanner.ID, "qc")
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = f.get(t, f.scanner.ID, "janitor")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestQueueHonorsProjectRestrictions(t *testing.T) {
	f := setup(t)
	restricted := users.User{
		Name: "Rita", Username: "rita", Role: users.RoleScanning,
		Projects: []users.UserProject{{ProjectID: "00000000-0000-0000-0000-000000000001"}},
	}
	require.NoError(t, f.db.Create(&restricted).Error)

	f.addBook(t, "visible to sam only", "To Scan", nil)

	code, body := f.get(t, restricted.ID, "scanner")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["queue"])
}
