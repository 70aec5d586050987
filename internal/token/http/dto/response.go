package dto

import (
	"time"

	"github.com/alexfok/gate-controller/internal/token/domain"
)

// TokenResponse represents a registered token in API responses. InRange is
// only populated on listings annotated with live scan data.
type TokenResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	InRange   *bool     `json:"in_range,omitempty"`
}

// MapTokenToResponse converts a domain token to an API response.
func MapTokenToResponse(token *domain.Token) TokenResponse {
	return TokenResponse{
		ID:        token.ID,
		Name:      token.Name,
		Enabled:   token.Enabled,
		CreatedAt: token.CreatedAt,
	}
}

// MapTokenToAnnotatedResponse converts a domain token to an API response with
// the live in-range annotation set.
func MapTokenToAnnotatedResponse(token *domain.Token, inRange bool) TokenResponse {
	response := MapTokenToResponse(token)
	response.InRange = &inRange
	return response
}
