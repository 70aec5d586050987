// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"

	"github.com/alexfok/gate-controller/internal/token/usecase"
)

// RegisterTokenRequest contains the parameters for registering a token.
type RegisterTokenRequest struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled *bool  `json:"enabled"`
}

// Validate checks the request structure. Identifier format rules are enforced
// by the use case after normalization.
func (r *RegisterTokenRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ID, validation.Required),
		validation.Field(&r.Name, validation.Required),
	)
}

// ToRegisterTokenInput converts the request to a use case input.
func ToRegisterTokenInput(r RegisterTokenRequest) usecase.RegisterTokenInput {
	return usecase.RegisterTokenInput{
		ID:      r.ID,
		Name:    r.Name,
		Enabled: r.Enabled,
	}
}

// UpdateTokenRequest contains the mutable token fields. Absent fields are
// left untouched.
type UpdateTokenRequest struct {
	Name    *string `json:"name"`
	Enabled *bool   `json:"enabled"`
}

// Validate checks that the update carries at least one field.
func (r *UpdateTokenRequest) Validate() error {
	if r.Name == nil && r.Enabled == nil {
		return validation.NewError(
			"validation_empty_update",
			"at least one of name or enabled must be provided",
		)
	}
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.NilOrNotEmpty),
	)
}

// ToUpdateTokenInput converts the request to a use case input.
func ToUpdateTokenInput(id string, r UpdateTokenRequest) usecase.UpdateTokenInput {
	return usecase.UpdateTokenInput{
		ID:      id,
		Name:    r.Name,
		Enabled: r.Enabled,
	}
}
