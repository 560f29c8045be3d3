package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowvault/internal/app/http/middleware"
)

func postJSON(t *testing.T, body string) map[string]interface{} {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.SanitizeAndCleanInputMiddleware())

	var got map[string]interface{}
	r.POST("/echo", func(c *gin.Context) {
		require.NoError(t, c.ShouldBindJSON(&got))
		c.JSON(http.StatusOK, got)
	})

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return got
}

func TestSanitizeStripsMarkupFromFlatFields(t *testing.T) {
	got := postJSON(t, `{"name": "<script>alert(1)</script>Deeds", "count": 3}`)
	assert.Equal(t, "Deeds", got["name"])
	assert.EqualValues(t, 3, got["count"])
}

func TestSanitizeWalksNestedBodies(t *testing.T) {
	got := postJSON(t, `{
		"project_id": "p1",
		"books": [
			{"name": "<b>Vol. 1</b>", "info": "clean"},
			{"name": "Vol. 2 <img src=x onerror=alert(1)>"}
		]
	}`)
	list := got["books"].([]interface{})
	first := list[0].(map[string]interface{})
	second := list[1].(map[string]interface{})
	assert.Equal(t, "Vol. 1", first["name"])
	assert.Equal(t, "clean", first["info"])
	assert.Equal(t, "Vol. 2 ", second["name"])
}

func TestSanitizeRejectsMalformedJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.SanitizeAndCleanInputMiddleware())
	r.POST("/echo", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSanitizeSkipsReads(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.SanitizeAndCleanInputMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
