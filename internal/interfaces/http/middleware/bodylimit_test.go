package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type statusChange struct {
	Status string `json:"status" binding:"required"`
}

type rangeRequest struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
}

func bodyLimitRouter(limit int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), BodyLimit(limit))

	contracts := router.Group("/api/v1/obligations/contracts/:id")
	contracts.PATCH("/status", func(c *gin.Context) {
		var req statusChange
		if err := c.ShouldBindJSON(&req); err != nil {
			c.String(http.StatusBadRequest, err.Error())
			return
		}
		c.JSON(http.StatusOK, req)
	})
	contracts.POST("/materialize", func(c *gin.Context) {
		var req rangeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.String(http.StatusRequestEntityTooLarge, "range payload over %d bytes", tooLarge.Limit)
				return
			}
			c.String(http.StatusBadRequest, err.Error())
			return
		}
		c.JSON(http.StatusCreated, req)
	})
	contracts.GET("/ledger", func(c *gin.Context) {
		c.String(http.StatusOK, "[]")
	})
	return router
}

func TestBodyLimit(t *testing.T) {
	const contract = "/api/v1/obligations/contracts/7b1c2a9e-4f0d-4c55-9a57-0b6f3f1d2e11"

	t.Run("status change within limit reaches the handler", func(t *testing.T) {
		router := bodyLimitRouter(64)
		req := httptest.NewRequest(http.MethodPatch, contract+"/status", strings.NewReader(`{"status":"suspended"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"suspended"`)
	})

	t.Run("declared length over limit is rejected before binding", func(t *testing.T) {
		router := bodyLimitRouter(64)
		body := `{"from":"2024-01","to":"2024-12","note":"` + strings.Repeat("x", 100) + `"}`
		req := httptest.NewRequest(http.MethodPost, contract+"/materialize", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(RequestIDHeader, "req-materialize-1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Contains(t, w.Body.String(), "ERR_BODY_TOO_LARGE")
		assert.Contains(t, w.Body.String(), "req-materialize-1")
	})

	t.Run("ledger reads carry no body", func(t *testing.T) {
		router := bodyLimitRouter(8)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, contract+"/ledger", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("streamed payload fails while binding", func(t *testing.T) {
		router := bodyLimitRouter(32)
		body := `{"from":"2024-01","to":"2024-12","note":"` + strings.Repeat("x", 100) + `"}`
		req := httptest.NewRequest(http.MethodPost, contract+"/materialize", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.ContentLength = -1
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Equal(t, "range payload over 32 bytes", w.Body.String())
	})
}
