package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sebasr/bpmetrics/internal/models"
	"github.com/sebasr/bpmetrics/internal/repository"
)

// DeviceHandler handles paired device requests
type DeviceHandler struct {
	deviceRepo repository.DeviceRepository
	now        func() time.Time
}

// NewDeviceHandler creates a new device handler
func NewDeviceHandler(deviceRepo repository.DeviceRepository) *DeviceHandler {
	return &DeviceHandler{
		deviceRepo: deviceRepo,
		now:        time.Now,
	}
}

// ListDevices retrieves every device that has delivered a record
// GET /api/v1/devices
func (h *DeviceHandler) ListDevices(c *gin.Context) {
	devices, err := h.deviceRepo.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to retrieve devices",
		})
		return
	}

	now := h.now()
	response := make([]*models.DeviceResponse, len(devices))
	for i, device := range devices {
		response[i] = device.ToResponse(now)
	}

	c.JSON(http.StatusOK, gin.H{
		"devices": response,
		"total":   len(response),
	})
}

// GetDevice retrieves a single device
// GET /api/v1/devices/:id
func (h *DeviceHandler) GetDevice(c *gin.Context) {
	device, err := h.deviceRepo.GetByDeviceID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrDeviceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "device_not_found",
				"message": "Device not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to retrieve device",
		})
		return
	}

	c.JSON(http.StatusOK, device.ToResponse(h.now()))
}
