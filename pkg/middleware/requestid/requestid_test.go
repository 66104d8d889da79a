package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func serve(header string) (*httptest.ResponseRecorder, string) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	var seen string
	r.GET("/", func(c *gin.Context) {
		seen = Value(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(HeaderKey, header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w, seen
}

func TestGeneratesUUID(t *testing.T) {
	w, seen := serve("")
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
	assert.Equal(t, seen, w.Header().Get(HeaderKey))
}

func TestKeepsClientID(t *testing.T) {
	_, seen := serve("trace-123")
	assert.Equal(t, "trace-123", seen)
}

func TestReplacesUnusableClientID(t *testing.T) {
	for _, header := range []string{strings.Repeat("a", 200), "has space", "tab\there"} {
		_, seen := serve(header)
		assert.NotEqual(t, header, seen)
		_, err := uuid.Parse(seen)
		assert.NoError(t, err, header)
	}
}
