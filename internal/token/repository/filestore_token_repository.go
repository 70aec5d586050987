// Package repository implements token persistence over the flat-file store.
package repository

import (
	"context"

	"github.com/alexfok/gate-controller/internal/storage"
	"github.com/alexfok/gate-controller/internal/token/domain"
)

// FileStoreTokenRepository persists tokens through the YAML file store.
// The store keeps tokens in insertion order; ids are expected to be
// normalized by the caller before they reach the repository.
type FileStoreTokenRepository struct {
	store *storage.FileStore
}

// NewFileStoreTokenRepository creates a new FileStoreTokenRepository.
func NewFileStoreTokenRepository(store *storage.FileStore) *FileStoreTokenRepository {
	return &FileStoreTokenRepository{store: store}
}

// Create inserts a new token. Returns ErrTokenAlreadyExists if a record with
// the same id is present. Nothing is persisted on failure.
func (r *FileStoreTokenRepository) Create(_ context.Context, token *domain.Token) error {
	records := r.store.Tokens()
	for _, record := range records {
		if record.ID == token.ID {
			return domain.ErrTokenAlreadyExists
		}
	}

	records = append(records, toRecord(token))
	return r.store.SaveTokens(records)
}

// Update replaces the stored record matching the token's id.
// Returns ErrTokenNotFound if no record matches.
func (r *FileStoreTokenRepository) Update(_ context.Context, token *domain.Token) error {
	records := r.store.Tokens()
	for i, record := range records {
		if record.ID == token.ID {
			records[i] = toRecord(token)
			return r.store.SaveTokens(records)
		}
	}
	return domain.ErrTokenNotFound
}

// Delete removes the record with the given id and returns the removed token.
// Returns ErrTokenNotFound if no record matches.
func (r *FileStoreTokenRepository) Delete(_ context.Context, id string) (*domain.Token, error) {
	records := r.store.Tokens()
	for i, record := range records {
		if record.ID == id {
			records = append(records[:i], records[i+1:]...)
			if err := r.store.SaveTokens(records); err != nil {
				return nil, err
			}
			return fromRecord(record), nil
		}
	}
	return nil, domain.ErrTokenNotFound
}

// GetByID returns the token with the given id, or ErrTokenNotFound.
func (r *FileStoreTokenRepository) GetByID(_ context.Context, id string) (*domain.Token, error) {
	for _, record := range r.store.Tokens() {
		if record.ID == id {
			return fromRecord(record), nil
		}
	}
	return nil, domain.ErrTokenNotFound
}

// List returns all tokens in insertion order.
func (r *FileStoreTokenRepository) List(_ context.Context) ([]*domain.Token, error) {
	records := r.store.Tokens()
	tokens := make([]*domain.Token, 0, len(records))
	for _, record := range records {
		tokens = append(tokens, fromRecord(record))
	}
	return tokens, nil
}

func toRecord(token *domain.Token) storage.TokenRecord {
	return storage.TokenRecord{
		ID:        token.ID,
		Name:      token.Name,
		Enabled:   token.Enabled,
		CreatedAt: token.CreatedAt,
	}
}

func fromRecord(record storage.TokenRecord) *domain.Token {
	return &domain.Token{
		ID:        record.ID,
		Name:      record.Name,
		Enabled:   record.Enabled,
		CreatedAt: record.CreatedAt,
	}
}
