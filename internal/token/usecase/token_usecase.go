// Package usecase implements the token registry business logic.
package usecase

import (
	"context"
	"time"

	validation "github.com/jellydator/validation"

	"github.com/alexfok/gate-controller/internal/token/domain"
	appValidation "github.com/alexfok/gate-controller/internal/validation"
)

// RegisterTokenInput contains the input data for token registration.
type RegisterTokenInput struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled *bool  `json:"enabled"`
}

// UpdateTokenInput contains the input data for a token update.
// Nil fields are left unchanged.
type UpdateTokenInput struct {
	ID      string  `json:"id"`
	Name    *string `json:"name"`
	Enabled *bool   `json:"enabled"`
}

// UseCase defines the interface for token registry operations.
type UseCase interface {
	Register(ctx context.Context, input RegisterTokenInput) (*domain.Token, error)
	Update(ctx context.Context, input UpdateTokenInput) (*domain.Token, error)
	Unregister(ctx context.Context, id string) (*domain.Token, error)
	Get(ctx context.Context, id string) (*domain.Token, error)
	List(ctx context.Context) ([]*domain.Token, error)
}

// TokenRepository defines token repository operations.
type TokenRepository interface {
	Create(ctx context.Context, token *domain.Token) error
	Update(ctx context.Context, token *domain.Token) error
	Delete(ctx context.Context, id string) (*domain.Token, error)
	GetByID(ctx context.Context, id string) (*domain.Token, error)
	List(ctx context.Context) ([]*domain.Token, error)
}

// TokenUseCase handles token registry business logic. All identifiers are
// normalized at this boundary; the repository only ever sees normalized ids.
type TokenUseCase struct {
	tokenRepo TokenRepository
}

// NewTokenUseCase creates a new TokenUseCase.
func NewTokenUseCase(tokenRepo TokenRepository) *TokenUseCase {
	return &TokenUseCase{tokenRepo: tokenRepo}
}

// validateRegisterTokenInput validates registration input after normalization.
func (uc *TokenUseCase) validateRegisterTokenInput(id string, input RegisterTokenInput) error {
	err := validation.Errors{
		"id": validation.Validate(id,
			validation.Required.ErrorObject(validation.NewError("validation_required", "id is required")),
			appValidation.NormalizedIdentifier,
			validation.Length(2, 64).Error("id must be between 2 and 64 characters after normalization"),
		),
		"name": validation.Validate(input.Name,
			validation.Required.ErrorObject(validation.NewError("validation_required", "name is required")),
			appValidation.NotBlank,
			validation.Length(1, 255).Error("name must be between 1 and 255 characters"),
		),
	}.Filter()
	return appValidation.WrapValidationError(err)
}

// Register registers a new token. The id is normalized before uniqueness is
// checked, so ids differing only by case or separators collide.
func (uc *TokenUseCase) Register(ctx context.Context, input RegisterTokenInput) (*domain.Token, error) {
	id := domain.NormalizeID(input.ID)

	if err := uc.validateRegisterTokenInput(id, input); err != nil {
		return nil, err
	}

	enabled := true
	if input.Enabled != nil {
		enabled = *input.Enabled
	}

	token := &domain.Token{
		ID:        id,
		Name:      input.Name,
		Enabled:   enabled,
		CreatedAt: time.Now().UTC(),
	}

	if err := uc.tokenRepo.Create(ctx, token); err != nil {
		return nil, err
	}

	return token, nil
}

// Update merges the provided fields into an existing token.
func (uc *TokenUseCase) Update(ctx context.Context, input UpdateTokenInput) (*domain.Token, error) {
	id := domain.NormalizeID(input.ID)
	if id == "" {
		return nil, domain.ErrIDRequired
	}

	token, err := uc.tokenRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		if err := appValidation.WrapValidationError(validation.Validate(*input.Name,
			appValidation.NotBlank,
			validation.Length(1, 255).Error("name must be between 1 and 255 characters"),
		)); err != nil {
			return nil, err
		}
		token.Name = *input.Name
	}
	if input.Enabled != nil {
		token.Enabled = *input.Enabled
	}

	if err := uc.tokenRepo.Update(ctx, token); err != nil {
		return nil, err
	}

	return token, nil
}

// Unregister removes a token from the registry and returns the removed token.
// Removal is a single repository call, so there is no lookup-then-delete
// window for concurrent callers to race.
func (uc *TokenUseCase) Unregister(ctx context.Context, id string) (*domain.Token, error) {
	normalized := domain.NormalizeID(id)
	if normalized == "" {
		return nil, domain.ErrIDRequired
	}
	return uc.tokenRepo.Delete(ctx, normalized)
}

// Get looks up a token by identifier, ignoring case and separators.
func (uc *TokenUseCase) Get(ctx context.Context, id string) (*domain.Token, error) {
	normalized := domain.NormalizeID(id)
	if normalized == "" {
		return nil, domain.ErrIDRequired
	}
	return uc.tokenRepo.GetByID(ctx, normalized)
}

// List returns all registered tokens in insertion order.
func (uc *TokenUseCase) List(ctx context.Context) ([]*domain.Token, error) {
	return uc.tokenRepo.List(ctx)
}
