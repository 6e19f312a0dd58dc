package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func serve(handler gin.HandlerFunc, method, origin string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(handler)
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.OPTIONS("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(method, "/", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCORSAllowList(t *testing.T) {
	handler := New([]string{"https://timetable.example.edu/"})

	allowed := serve(handler, http.MethodGet, "https://timetable.example.edu")
	assert.Equal(t, "https://timetable.example.edu", allowed.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, allowed.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")

	denied := serve(handler, http.MethodGet, "https://evil.example.com")
	assert.Empty(t, denied.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, denied.Code)
}

func TestCORSAllowAllAndPreflight(t *testing.T) {
	handler := New(nil)

	rec := serve(handler, http.MethodGet, "")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	preflight := serve(handler, http.MethodOptions, "https://any.example.org")
	assert.Equal(t, http.StatusNoContent, preflight.Code)
	assert.Equal(t, "https://any.example.org", preflight.Header().Get("Access-Control-Allow-Origin"))
}
