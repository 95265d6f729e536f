package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sebasr/bpmetrics/internal/library"
	"github.com/sebasr/bpmetrics/internal/models"
	"github.com/sebasr/bpmetrics/internal/repository"
)

// Library is the record library served over HTTP
type Library interface {
	List(ctx context.Context) ([]*models.LibraryRecord, error)
	Get(ctx context.Context, id int64) (*models.LibraryRecord, error)
	Rename(ctx context.Context, id int64, title string) (*models.LibraryRecord, error)
	DeleteAll(ctx context.Context) (int64, error)
	SeedSamples(ctx context.Context) ([]*models.LibraryRecord, error)
	Watch() (<-chan []*models.LibraryRecord, func())
}

// LibraryHandler handles record library requests
type LibraryHandler struct {
	library Library
	logger  *log.Logger
}

// NewLibraryHandler creates a new library handler
func NewLibraryHandler(lib Library, logger *log.Logger) *LibraryHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &LibraryHandler{library: lib, logger: logger}
}

// RenameRequest represents the record rename request body
type RenameRequest struct {
	Title string `json:"title" binding:"required"`
}

// ListRecords retrieves every record, newest first
// GET /api/v1/records
func (h *LibraryHandler) ListRecords(c *gin.Context) {
	records, err := h.library.List(c.Request.Context())
	if err != nil {
		h.logger.Printf("Library: list failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to retrieve records",
		})
		return
	}

	c.JSON(http.StatusOK, recordsResponse(records))
}

// GetRecord retrieves a single record with its points
// GET /api/v1/records/:id
func (h *LibraryHandler) GetRecord(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}

	rec, err := h.library.Get(c.Request.Context(), id)
	if err != nil {
		h.recordError(c, err, "Failed to retrieve record")
		return
	}

	c.JSON(http.StatusOK, rec.ToResponse())
}

// RenameRecord changes a record's title
// PATCH /api/v1/records/:id
func (h *LibraryHandler) RenameRecord(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}

	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	rec, err := h.library.Rename(c.Request.Context(), id, req.Title)
	if err != nil {
		if errors.Is(err, library.ErrInvalidTitle) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_title",
				"message": err.Error(),
			})
			return
		}
		h.recordError(c, err, "Failed to rename record")
		return
	}

	c.JSON(http.StatusOK, rec.ToResponse())
}

// DeleteAllRecords empties the library
// DELETE /api/v1/records
func (h *LibraryHandler) DeleteAllRecords(c *gin.Context) {
	deleted, err := h.library.DeleteAll(c.Request.Context())
	if err != nil {
		h.logger.Printf("Library: delete all failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to delete records",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// SeedSamples stores the sample records
// POST /api/v1/records/samples
func (h *LibraryHandler) SeedSamples(c *gin.Context) {
	records, err := h.library.SeedSamples(c.Request.Context())
	if err != nil {
		h.logger.Printf("Library: seeding samples failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to seed sample records",
		})
		return
	}

	c.JSON(http.StatusCreated, recordsResponse(records))
}

// StreamRecords sends the current record list as a server-sent event, then
// a new event every time the library changes
// GET /api/v1/records/stream
func (h *LibraryHandler) StreamRecords(c *gin.Context) {
	updates, cancel := h.library.Watch()
	defer cancel()

	ctx := c.Request.Context()
	c.Stream(func(_ io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case records, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("records", recordsResponse(records))
			return true
		}
	})
}

func (h *LibraryHandler) recordError(c *gin.Context, err error, message string) {
	if errors.Is(err, repository.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "record_not_found",
			"message": "Record not found",
		})
		return
	}
	h.logger.Printf("Library: %s: %v", message, err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "internal_error",
		"message": message,
	})
}

func recordID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_record_id",
			"message": "Invalid record ID format",
		})
		return 0, false
	}
	return id, true
}

func recordsResponse(records []*models.LibraryRecord) gin.H {
	response := make([]*models.LibraryRecordResponse, len(records))
	for i, rec := range records {
		response[i] = rec.ToResponse()
	}
	return gin.H{
		"records": response,
		"total":   len(response),
	}
}
