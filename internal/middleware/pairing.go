// Package middleware provides gin middleware shared by the HTTP servers.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sebasr/bpmetrics/internal/auth"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// DeviceIDKey is the context key for the paired device's ID
const DeviceIDKey ContextKey = "device_id"

// PairingMiddleware admits requests carrying a valid pairing token
type PairingMiddleware struct {
	pairing *auth.PairingService
}

// NewPairingMiddleware creates a new pairing middleware
func NewPairingMiddleware(pairing *auth.PairingService) *PairingMiddleware {
	return &PairingMiddleware{pairing: pairing}
}

// Required returns a middleware that requires a valid pairing token.
// Returns 401 Unauthorized if the token is missing or invalid.
func (m *PairingMiddleware) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := m.extractAndValidateToken(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": err.Error(),
			})
			c.Abort()
			return
		}

		c.Set(string(DeviceIDKey), claims.DeviceID)
		c.Next()
	}
}

func (m *PairingMiddleware) extractAndValidateToken(c *gin.Context) (*auth.Claims, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil, errors.New("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, errors.New("invalid authorization header format")
	}

	tokenString := parts[1]
	if tokenString == "" {
		return nil, errors.New("missing token")
	}

	return m.pairing.Validate(tokenString)
}

// GetDeviceID retrieves the paired device's ID from the context
func GetDeviceID(c *gin.Context) (string, error) {
	deviceID, exists := c.Get(string(DeviceIDKey))
	if !exists {
		return "", errors.New("device not paired")
	}

	id, ok := deviceID.(string)
	if !ok || id == "" {
		return "", errors.New("invalid device ID format")
	}

	return id, nil
}
