package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sebasr/bpmetrics/internal/ingest"
	"github.com/sebasr/bpmetrics/internal/middleware"
	"github.com/sebasr/bpmetrics/internal/transport"
	"github.com/sebasr/bpmetrics/internal/wire"
)

// MaxPayloadBytes bounds the body accepted on the transport ingress
const MaxPayloadBytes = 1 << 20

// TransportHandler receives payloads the watch sends over HTTP
type TransportHandler struct {
	handler transport.Handler
}

// NewTransportHandler creates a handler delivering payloads to handler
func NewTransportHandler(handler transport.Handler) *TransportHandler {
	return &TransportHandler{handler: handler}
}

// Receive hands the request body to the transport handler under the path
// that follows the ingress prefix
// POST /api/v1/transport/*path
func (h *TransportHandler) Receive(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, MaxPayloadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Failed to read payload",
		})
		return
	}
	if len(payload) > MaxPayloadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error":   "payload_too_large",
			"message": "Payload exceeds the maximum size",
		})
		return
	}

	ctx := c.Request.Context()
	if deviceID, err := middleware.GetDeviceID(c); err == nil {
		ctx = ingest.WithDeviceID(ctx, deviceID)
	}

	err = h.handler.HandleMessage(ctx, c.Param("path"), payload)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
	case errors.Is(err, ingest.ErrUnknownPath):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "unknown_path",
			"message": err.Error(),
		})
	case errors.Is(err, wire.ErrMalformedPayload), errors.Is(err, wire.ErrUnsupportedVersion):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "malformed_payload",
			"message": err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to store record",
		})
	}
}
