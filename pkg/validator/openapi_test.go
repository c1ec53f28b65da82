package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calma/backend/internal/api"
	"calma/backend/pkg/errors"
)

func TestEmbeddedDocumentLoads(t *testing.T) {
	_, err := New(api.OpenAPIDocument)
	require.NoError(t, err)
}

func TestMiddlewareRejectsInvalidBodies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	v, err := New(api.OpenAPIDocument)
	require.NoError(t, err)

	r := gin.New()
	r.Use(errors.ErrorHandler(), v.Middleware())
	r.POST("/api/v1/games/math/rounds", func(c *gin.Context) { c.Status(http.StatusCreated) })
	r.GET("/unlisted", func(c *gin.Context) { c.Status(http.StatusOK) })

	post := func(body string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/games/math/rounds", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Profile-ID", "p1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusCreated, post(`{"difficulty":"Pro","operation":"+"}`))
	assert.Equal(t, http.StatusBadRequest, post(`{"difficulty":"Experto","operation":"+"}`))
	assert.Equal(t, http.StatusBadRequest, post(`{"operation":"+"}`))

	req := httptest.NewRequest(http.MethodGet, "/unlisted", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
