// Package http provides HTTP handlers for gate control operations.
package http

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alexfok/gate-controller/internal/ble"
	"github.com/alexfok/gate-controller/internal/gate/usecase"
	"github.com/alexfok/gate-controller/internal/httputil"
	"github.com/alexfok/gate-controller/internal/storage"
)

// GateHandler handles HTTP requests for manual gate control and scanning.
type GateHandler struct {
	gate     *usecase.SessionGate
	scanner  ble.Scanner
	tokens   usecase.TokenReader
	settings func() storage.GateSettings
	logger   *slog.Logger
}

// NewGateHandler creates a gate handler.
func NewGateHandler(
	gate *usecase.SessionGate,
	scanner ble.Scanner,
	tokens usecase.TokenReader,
	settings func() storage.GateSettings,
	logger *slog.Logger,
) *GateHandler {
	return &GateHandler{
		gate:     gate,
		scanner:  scanner,
		tokens:   tokens,
		settings: settings,
		logger:   logger,
	}
}

// OpenHandler opens the gate on manual request.
// POST /v1/gate/open
// Returns 200 with the resulting state, 503 when the actuator refused.
func (h *GateHandler) OpenHandler(c *gin.Context) {
	if err := h.gate.RequestOpen(c.Request.Context(), "manual request"); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{"gate_state": h.gate.State()})
}

// CloseHandler closes the gate on manual request.
// POST /v1/gate/close
func (h *GateHandler) CloseHandler(c *gin.Context) {
	if err := h.gate.RequestClose(c.Request.Context(), "manual request"); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{"gate_state": h.gate.State()})
}

// StatusHandler returns the composite gate status snapshot.
// GET /v1/gate/status
func (h *GateHandler) StatusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.gate.Status(c.Request.Context()))
}

// ScanHandler runs a manual full-area scan and returns every visible device,
// beacons tagged separately. Registration tooling only; the decision engine
// never consumes this.
// POST /v1/scan
func (h *GateHandler) ScanHandler(c *gin.Context) {
	devices, err := h.scanner.ListNearby(c.Request.Context(), h.settings().ScanDuration())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{"devices": devices})
}

// EventsHandler streams live gate events (token detections, opens, closes)
// to the dashboard as server-sent events. The stream ends when the client
// disconnects; a slow client misses events rather than stalling the engine.
// GET /v1/events
func (h *GateHandler) EventsHandler(c *gin.Context) {
	events, unsubscribe := h.gate.Subscribe()
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(string(event.Type), event)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// SystemStatusHandler returns the dashboard snapshot: gate status plus
// registry counts and the tokens currently in range.
// GET /v1/status
func (h *GateHandler) SystemStatusHandler(c *gin.Context) {
	status := h.gate.Status(c.Request.Context())

	tokens, err := h.tokens.List(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	inRange := make([]string, 0)
	for id := range h.gate.TokensInRange() {
		inRange = append(inRange, id)
	}

	c.JSON(http.StatusOK, gin.H{
		"gate":              status,
		"tokens_registered": len(tokens),
		"tokens_in_range":   inRange,
	})
}
