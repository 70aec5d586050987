// Package http provides HTTP handlers for token registry operations.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alexfok/gate-controller/internal/httputil"
	"github.com/alexfok/gate-controller/internal/token/http/dto"
	"github.com/alexfok/gate-controller/internal/token/usecase"
	customValidation "github.com/alexfok/gate-controller/internal/validation"
)

// ActivityRecorder records registry changes in the activity log.
type ActivityRecorder interface {
	RecordTokenRegistered(tokenID, tokenName string)
	RecordTokenUnregistered(tokenID, tokenName string)
}

// InRangeProvider reports which token ids were recently observed, for
// annotating listings.
type InRangeProvider interface {
	TokensInRange() map[string]time.Time
}

// TokenHandler handles HTTP requests for the token registry.
type TokenHandler struct {
	tokenUseCase usecase.UseCase
	recorder     ActivityRecorder
	inRange      InRangeProvider
	logger       *slog.Logger
}

// NewTokenHandler creates a token handler. inRange may be nil, in which case
// listings are never annotated.
func NewTokenHandler(
	tokenUseCase usecase.UseCase,
	recorder ActivityRecorder,
	inRange InRangeProvider,
	logger *slog.Logger,
) *TokenHandler {
	return &TokenHandler{
		tokenUseCase: tokenUseCase,
		recorder:     recorder,
		inRange:      inRange,
		logger:       logger,
	}
}

// RegisterHandler registers a new token.
// POST /v1/tokens
// Returns 201 Created, 409 on a duplicate (after normalization), 422 on
// invalid input.
func (h *TokenHandler) RegisterHandler(c *gin.Context) {
	var req dto.RegisterTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	token, err := h.tokenUseCase.Register(c.Request.Context(), dto.ToRegisterTokenInput(req))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	h.recorder.RecordTokenRegistered(token.ID, token.Name)
	c.JSON(http.StatusCreated, dto.MapTokenToResponse(token))
}

// ListHandler lists registered tokens in insertion order.
// GET /v1/tokens
// Each token is annotated with whether it was observed within the idle
// timeout, when live scan data is available.
func (h *TokenHandler) ListHandler(c *gin.Context) {
	tokens, err := h.tokenUseCase.List(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	var seen map[string]time.Time
	if h.inRange != nil {
		seen = h.inRange.TokensInRange()
	}

	responses := make([]dto.TokenResponse, 0, len(tokens))
	for _, token := range tokens {
		if seen == nil {
			responses = append(responses, dto.MapTokenToResponse(token))
			continue
		}
		_, inRange := seen[token.ID]
		responses = append(responses, dto.MapTokenToAnnotatedResponse(token, inRange))
	}

	c.JSON(http.StatusOK, gin.H{"tokens": responses})
}

// GetHandler returns a single token by id (any separator style accepted).
// GET /v1/tokens/:id
func (h *TokenHandler) GetHandler(c *gin.Context) {
	token, err := h.tokenUseCase.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapTokenToResponse(token))
}

// UpdateHandler updates a token's name or enabled flag.
// PUT /v1/tokens/:id
func (h *TokenHandler) UpdateHandler(c *gin.Context) {
	var req dto.UpdateTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	token, err := h.tokenUseCase.Update(c.Request.Context(), dto.ToUpdateTokenInput(c.Param("id"), req))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapTokenToResponse(token))
}

// DeleteHandler unregisters a token.
// DELETE /v1/tokens/:id
// Returns 204 No Content, 404 when the id is unknown.
func (h *TokenHandler) DeleteHandler(c *gin.Context) {
	token, err := h.tokenUseCase.Unregister(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	h.recorder.RecordTokenUnregistered(token.ID, token.Name)
	c.Status(http.StatusNoContent)
}
