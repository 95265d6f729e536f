package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sebasr/bpmetrics/internal/models"
	"github.com/sebasr/bpmetrics/internal/session"
)

// Session is the watch recording session controlled over HTTP
type Session interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (*models.WatchRecord, error)
	Snapshot() session.Snapshot
	WatchSnapshot() (<-chan session.Snapshot, func())
}

// RecordSummary describes a finalized record without its points
type RecordSummary struct {
	ID         string      `json:"id"`
	Date       models.Date `json:"date"`
	StartTime  int64       `json:"startTime"`
	EndTime    int64       `json:"endTime"`
	DurationMs int64       `json:"durationMs"`
	Points     int         `json:"points"`
}

// SessionHandler handles watch session requests
type SessionHandler struct {
	session Session
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(s Session) *SessionHandler {
	return &SessionHandler{session: s}
}

// GetSession returns the current session status
// GET /api/v1/session
func (h *SessionHandler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.Snapshot())
}

// StartSession starts recording
// POST /api/v1/session/start
func (h *SessionHandler) StartSession(c *gin.Context) {
	if err := h.session.Start(c.Request.Context()); err != nil {
		sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.session.Snapshot())
}

// StopSession stops recording and returns a summary of the finalized record,
// or a null record when nothing was recorded
// POST /api/v1/session/stop
func (h *SessionHandler) StopSession(c *gin.Context) {
	rec, err := h.session.Stop(c.Request.Context())
	if err != nil {
		sessionError(c, err)
		return
	}

	var summary *RecordSummary
	if rec != nil {
		summary = &RecordSummary{
			ID:         rec.ID.String(),
			Date:       rec.Date,
			StartTime:  rec.StartTime,
			EndTime:    rec.EndTime,
			DurationMs: rec.Duration(),
			Points:     len(rec.DataPoints),
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"session": h.session.Snapshot(),
		"record":  summary,
	})
}

// StreamSession sends the session status as server-sent events
// GET /api/v1/session/stream
func (h *SessionHandler) StreamSession(c *gin.Context) {
	updates, cancel := h.session.WatchSnapshot()
	defer cancel()

	ctx := c.Request.Context()
	c.Stream(func(_ io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case snap, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("session", snap)
			return true
		}
	})
}

func sessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "invalid_transition",
			"message": err.Error(),
		})
	case errors.Is(err, session.ErrStopped):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "session_stopped",
			"message": err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
	}
}
