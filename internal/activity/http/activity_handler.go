// Package http provides HTTP handlers for the activity log.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alexfok/gate-controller/internal/activity/domain"
	"github.com/alexfok/gate-controller/internal/activity/usecase"
	"github.com/alexfok/gate-controller/internal/httputil"
	"github.com/alexfok/gate-controller/internal/storage"
)

// maxActivityLimit caps a single listing request.
const maxActivityLimit = 1000

// ActivityHandler handles HTTP requests for the activity log.
type ActivityHandler struct {
	recorder *usecase.Recorder
	store    *storage.FileStore
	logger   *slog.Logger
}

// NewActivityHandler creates an activity handler.
func NewActivityHandler(recorder *usecase.Recorder, store *storage.FileStore, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{
		recorder: recorder,
		store:    store,
		logger:   logger,
	}
}

// ListHandler returns activity entries, most recent first.
// GET /v1/activity?limit=N&type=token_detected
func (h *ActivityHandler) ListHandler(c *gin.Context) {
	limit, err := httputil.ParseLimit(c, maxActivityLimit)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	eventType := domain.EventType(c.Query("type"))
	entries := h.recorder.Entries(limit, eventType)

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// ClearHandler empties the activity log.
// DELETE /v1/activity
func (h *ActivityHandler) ClearHandler(c *gin.Context) {
	h.recorder.Clear()
	c.Status(http.StatusNoContent)
}

// suppressRequest is the suppress-mode toggle payload.
type suppressRequest struct {
	Suppress *bool `json:"suppress" binding:"required"`
}

// GetSuppressHandler reports the current suppress-mode setting.
// GET /v1/activity/suppress
func (h *ActivityHandler) GetSuppressHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"suppress": h.recorder.Suppress()})
}

// SetSuppressHandler toggles suppress mode and persists the setting.
// PUT /v1/activity/suppress
func (h *ActivityHandler) SetSuppressHandler(c *gin.Context) {
	var req suppressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := h.store.SaveLoggingSettings(storage.LoggingSettings{SuppressDetections: *req.Suppress}); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	h.recorder.SetSuppress(*req.Suppress)

	c.JSON(http.StatusOK, gin.H{"suppress": *req.Suppress})
}
