// Package handlers contains HTTP request handlers for the phone library and the watch agent.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

// HealthHandler handles health check requests
func HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
	})
}

// NewHealthCheckHandler reports healthy only while check succeeds
func NewHealthCheckHandler(check func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := check(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, HealthResponse{
				Status:   "unavailable",
				Database: err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, HealthResponse{
			Status:   "ok",
			Database: "ok",
		})
	}
}
